// Package web provides the REST API handlers for workflow management,
// execution triggering and lead membership control.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/leadflow/leadflow/pkg/metrics"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/registry"
	"github.com/leadflow/leadflow/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	leadService      *services.Lead
	metricsStore     metrics.Store
	validator        *validator.Validate
	registry         *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	leadService *services.Lead,
	metricsStore metrics.Store,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		leadService:      leadService,
		metricsStore:     metricsStore,
		validator:        validator,
		registry:         registry,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !repOk {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetNodeTypes lists the registered node types and their config schemas.
func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	types := h.registry.NodeTypes()

	response := make([]fiber.Map, 0, len(types))

	for _, nodeType := range types {
		schema, _ := h.registry.Schema(nodeType)
		response = append(response, fiber.Map{
			"type":   nodeType,
			"schema": schema,
		})
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req := services.ListWorkflowsRequest{
		Owner: c.Query("owner"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		req.Status = &status
	}

	if c.Query("include_archived") == "true" {
		req.IncludeArchived = true
	}

	workflows, err := h.workflowService.ListWorkflows(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:      req.Name,
		Type:      req.Type,
		Priority:  req.Priority,
		Owner:     req.Owner,
		Variables: req.Variables,
		Triggers:  req.Triggers,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflowDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.UpdateDefinition(c.Context(), id, req.Definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	return h.lifecycle(c, h.workflowService.Activate)
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	return h.lifecycle(c, h.workflowService.Pause)
}

func (h *APIHandlers) ArchiveWorkflow(c fiber.Ctx) error {
	return h.lifecycle(c, h.workflowService.Archive)
}

func (h *APIHandlers) lifecycle(c fiber.Ctx, op func(ctx context.Context, id string) (*models.Workflow, error)) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := op(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// GetWorkflowMetrics serves the aggregated counters for a workflow.
func (h *APIHandlers) GetWorkflowMetrics(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.workflowService.FetchByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	workflowMetrics, err := h.metricsStore.Get(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflow_id":      id,
		"execution_count":  workflowMetrics.ExecutionCount,
		"success_count":    workflowMetrics.SuccessCount,
		"failure_count":    workflowMetrics.FailureCount,
		"average_duration": workflowMetrics.AverageDuration().String(),
	})
}

func (h *APIHandlers) TriggerExecution(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req TriggerExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executionService.Trigger(c.Context(), services.TriggerRequest{
		WorkflowID: workflowID,
		LeadID:     req.LeadID,
		UserID:     req.UserID,
		Payload:    req.Payload,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	executions, err := h.executionService.ListByWorkflow(c.Context(), workflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("executionId")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// GetExecutionLogs serves the ordered audit trail of an execution.
func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	id := c.Params("executionId")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	logs, err := h.executionService.Logs(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"logs": logs})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("executionId")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.executionService.Cancel(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) EnrollLead(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req EnrollLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	lead, err := h.leadService.Enroll(c.Context(), workflowID, req.LeadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(lead)
}

func (h *APIHandlers) GetLeads(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	leads, err := h.leadService.ListByWorkflow(c.Context(), workflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"leads": leads})
}

func (h *APIHandlers) PauseLead(c fiber.Ctx) error {
	return h.leadTransition(c, h.leadService.Pause)
}

func (h *APIHandlers) ResumeLead(c fiber.Ctx) error {
	return h.leadTransition(c, h.leadService.Resume)
}

func (h *APIHandlers) RemoveLead(c fiber.Ctx) error {
	return h.leadTransition(c, h.leadService.Remove)
}

func (h *APIHandlers) leadTransition(c fiber.Ctx, op func(ctx context.Context, workflowID, leadID string) (*models.WorkflowLead, error)) error {
	workflowID := c.Params("id")
	leadID := c.Params("leadId")

	if workflowID == "" || leadID == "" {
		return badRequest(c, "Workflow ID and lead ID are required")
	}

	lead, err := op(c.Context(), workflowID, leadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(lead)
}
