// Package webhook provides the outbound HTTP call node. The rendered body is
// posted to the configured URL and the response is merged into the payload.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/template"
)

const defaultTimeoutSeconds = 30

type Handler struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration

	client *http.Client
}

func NewHandler(config map[string]any) (*Handler, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second

	if raw, ok := config["timeout"].(string); ok && raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", raw, err)
		}

		timeout = parsed
	}

	return &Handler{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Body:    body,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (h *Handler) Execute(ctx context.Context, req protocol.DispatchRequest, logger *slog.Logger) (*protocol.DispatchResult, error) {
	logger = logger.With("module", "webhook_node", "node_id", req.Node.ID, "url", h.URL, "method", h.Method)

	url, err := template.RenderWithExecution(h.URL, req.Execution)
	if err != nil {
		return nil, fmt.Errorf("failed to render webhook url: %w", err)
	}

	var bodyReader io.Reader

	if h.Body != "" {
		rendered, err := template.RenderWithExecution(h.Body, req.Execution)
		if err != nil {
			return nil, fmt.Errorf("failed to render webhook body: %w", err)
		}

		encoded, err := json.Marshal(rendered)
		if err != nil {
			return nil, fmt.Errorf("failed to encode webhook body: %w", err)
		}

		bodyReader = strings.NewReader(string(encoded))
	}

	httpReq, err := http.NewRequestWithContext(ctx, h.Method, fmt.Sprintf("%v", url), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	for k, v := range h.Headers {
		httpReq.Header.Set(k, v)
	}

	logger.Debug("Calling webhook")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook call failed: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close webhook response body", "error", closeErr)
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	output := map[string]any{
		"webhook_status": resp.StatusCode,
	}

	var decoded any
	if err := json.Unmarshal(responseBody, &decoded); err == nil {
		output["webhook_response"] = decoded
	} else if len(responseBody) > 0 {
		output["webhook_response"] = string(responseBody)
	}

	return &protocol.DispatchResult{Output: output}, nil
}
