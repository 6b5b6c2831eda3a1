// Package metrics maintains per-workflow execution counters as a read model
// derived from the event stream. Counters are never mutated inline by the
// walker; the aggregator applies deltas asynchronously.
package metrics

import (
	"context"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// Delta is one increment to a workflow's counters.
type Delta struct {
	Executions int64
	Successes  int64
	Failures   int64
	Duration   time.Duration
}

// Store accumulates and serves workflow metrics.
type Store interface {
	Apply(ctx context.Context, workflowID string, delta Delta) error
	Get(ctx context.Context, workflowID string) (*models.WorkflowMetrics, error)
}
