package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
)

// Aggregator folds execution lifecycle events into the metrics store. It
// subscribes to the same stream the worker produces, so counters converge
// without any synchronous coupling to the walker.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

func NewAggregator(store Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger.With("module", "metrics_aggregator"),
	}
}

// Register binds the aggregator's handlers to the event bus.
func (a *Aggregator) Register(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.ExecutionStartedEvent, a.handleStarted); err != nil {
		return fmt.Errorf("failed to register started handler: %w", err)
	}

	if err := bus.Handle(events.ExecutionCompletedEvent, a.handleCompleted); err != nil {
		return fmt.Errorf("failed to register completed handler: %w", err)
	}

	if err := bus.Handle(events.ExecutionFailedEvent, a.handleFailed); err != nil {
		return fmt.Errorf("failed to register failed handler: %w", err)
	}

	return nil
}

func (a *Aggregator) handleStarted(ctx context.Context, event any) error {
	started, ok := event.(*events.ExecutionStarted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return a.apply(ctx, started.WorkflowID, Delta{Executions: 1})
}

func (a *Aggregator) handleCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.ExecutionCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return a.apply(ctx, completed.WorkflowID, Delta{Successes: 1, Duration: completed.Duration})
}

func (a *Aggregator) handleFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.ExecutionFailed)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return a.apply(ctx, failed.WorkflowID, Delta{Failures: 1, Duration: failed.Duration})
}

func (a *Aggregator) apply(ctx context.Context, workflowID string, delta Delta) error {
	if err := a.store.Apply(ctx, workflowID, delta); err != nil {
		a.logger.ErrorContext(ctx, "Failed to apply metrics delta",
			"workflow_id", workflowID, "error", err)

		return err
	}

	return nil
}
