package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/lock"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/otelhelper"
	"github.com/leadflow/leadflow/pkg/protocol"
	"github.com/leadflow/leadflow/pkg/registry"
)

// visitLeaseTTL bounds one visit. A crashed holder frees the execution after
// the TTL and the dispatcher retries from the last durably advanced state.
const visitLeaseTTL = 30 * time.Second

// Outcome classifies what one visit did.
type Outcome string

const (
	// OutcomeAdvanced means the execution moved to its next node and another
	// visit should be dispatched.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeDeferred means a delay node scheduled a re-visit at ResumeAt.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeHalted means the visit intentionally did nothing: the execution
	// is terminal, not yet due, or its lead is not eligible.
	OutcomeHalted    Outcome = "halted"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// VisitResult reports the outcome of one visit plus the events the caller
// should publish.
type VisitResult struct {
	Outcome   Outcome
	Execution *models.WorkflowExecution
	Events    []eventbus.Event
}

// Walker drives executions through their pinned graphs, one short synchronous
// visit at a time. The external dispatcher (worker) invokes Visit and
// schedules re-visits; the walker itself never blocks on delays or retries
// failed dispatches.
type Walker struct {
	executions  *Executions
	memberships *Memberships
	store       *DefinitionStore
	journal     *Journal
	registry    *registry.Registry
	locks       lock.Locker
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewWalker(
	executions *Executions,
	memberships *Memberships,
	store *DefinitionStore,
	journal *Journal,
	reg *registry.Registry,
	locks lock.Locker,
	logger *slog.Logger,
) *Walker {
	return &Walker{
		executions:  executions,
		memberships: memberships,
		store:       store,
		journal:     journal,
		registry:    reg,
		locks:       locks,
		tracer:      otel.Tracer("leadflow/walker"),
		logger:      logger.With("module", "walker"),
	}
}

// Visit performs one iteration of the step algorithm: check eligibility,
// resolve the current node from the pinned snapshot, dispatch its action,
// write the audit entries and advance or terminate the execution.
//
// Log writes happen before the state mutations they describe, so the audit
// trail is always a conservative superset of committed state. Infrastructure
// errors (log or repository failures) are returned to the caller with the
// step uncommitted and safe to retry; they never mark the execution failed.
func (w *Walker) Visit(ctx context.Context, executionID string) (*VisitResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "walker.visit",
		attribute.String(otelhelper.ExecutionIDKey, executionID))
	defer span.End()

	lease, err := w.locks.Acquire(ctx, lock.ExecutionKey(executionID), visitLeaseTTL)
	if err != nil {
		if lock.IsHeld(err) {
			return nil, fmt.Errorf("execution %s: %w", executionID, ErrVisitContended)
		}

		return nil, fmt.Errorf("failed to acquire execution lease: %w", err)
	}

	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			w.logger.ErrorContext(ctx, "Failed to release execution lease", "error", releaseErr)
		}
	}()

	execution, err := w.executions.Get(ctx, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	logger := w.logger.With(
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"lead_id", execution.LeadID,
	)

	result, err := w.visit(ctx, execution, logger)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return result, err
}

func (w *Walker) visit(ctx context.Context, execution *models.WorkflowExecution, logger *slog.Logger) (*VisitResult, error) {
	// A second call on a terminal execution is a no-op, not an error, to
	// tolerate retry-after-crash dispatching.
	if execution.IsTerminal() {
		return &VisitResult{Outcome: OutcomeHalted, Execution: execution}, nil
	}

	if execution.CancelRequested {
		return w.cancel(ctx, execution, logger)
	}

	eligible, err := w.memberships.IsEligibleToRun(ctx, execution.WorkflowID, execution.LeadID)
	if err != nil {
		return nil, err
	}

	if !eligible {
		// Intentional halt: the execution row stays untouched and no log
		// entry is written for the skipped step.
		logger.InfoContext(ctx, "Lead not eligible, halting visit")

		return &VisitResult{Outcome: OutcomeHalted, Execution: execution}, nil
	}

	now := time.Now().UTC()
	if execution.ResumeAt != nil {
		if now.Before(*execution.ResumeAt) {
			return &VisitResult{Outcome: OutcomeDeferred, Execution: execution}, nil
		}

		execution.ResumeAt = nil
	}

	var visitEvents []eventbus.Event

	if execution.Status == models.ExecutionStatusPending {
		execution.Status = models.ExecutionStatusRunning
		execution.StartedAt = &now

		if err := w.executions.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to start execution: %w", err)
		}

		started := events.ExecutionStarted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			VersionID:   execution.VersionID,
			LeadID:      execution.LeadID,
		}
		visitEvents = append(visitEvents, started)
	}

	version, err := w.store.Pinned(ctx, execution.VersionID)
	if err != nil {
		return nil, err
	}

	if execution.CurrentNodeID == nil {
		return w.fail(ctx, execution, "", "execution has no current node", visitEvents, logger)
	}

	node, ok := version.Node(*execution.CurrentNodeID)
	if !ok {
		return w.fail(ctx, execution, *execution.CurrentNodeID,
			fmt.Sprintf("node %s not found in version %d", *execution.CurrentNodeID, version.VersionNumber),
			visitEvents, logger)
	}

	if execution.StepCount >= version.Definition.StepLimit() {
		return w.fail(ctx, execution, node.ID,
			fmt.Sprintf("%v after %d steps", ErrLoopLimitExceeded, execution.StepCount),
			visitEvents, logger)
	}

	execution.StepCount++

	if err := w.journal.Append(ctx, execution, node.ID, models.LogEventEntered, node.Name); err != nil {
		// Log-before-effect: the step is not committed, safe to retry.
		return nil, err
	}

	logger = logger.With("node_id", node.ID, "node_type", node.Type, "step", execution.StepCount)
	logger.InfoContext(ctx, "Visiting node")

	// Save-time validation rejects ambiguous edges; data written before that
	// existed is still refused here rather than silently picking an edge.
	if node.HasAmbiguousEdges() {
		return w.fail(ctx, execution, node.ID,
			fmt.Sprintf("node %s: %v", node.ID, ErrAmbiguousNodeEdges), visitEvents, logger)
	}

	handler, err := w.registry.CreateHandler(string(node.Type), node.Config)
	if err != nil {
		return w.fail(ctx, execution, node.ID, err.Error(), visitEvents, logger)
	}

	dispatch, err := handler.Execute(ctx, protocol.DispatchRequest{Node: node, Execution: execution}, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Node dispatch failed", "error", err)

		return w.fail(ctx, execution, node.ID, err.Error(), visitEvents, logger)
	}

	switch {
	case dispatch.DeferUntil != nil:
		return w.deferVisit(ctx, execution, node, dispatch.DeferUntil, visitEvents, logger)
	case dispatch.Branch != nil:
		return w.branch(ctx, execution, node, *dispatch.Branch, visitEvents, logger)
	default:
		return w.act(ctx, execution, node, dispatch.Output, visitEvents, logger)
	}
}

// Run drives an execution visit by visit until it reaches a non-advancing
// outcome, accumulating the events of every visit. Deferred and halted
// outcomes return control to the dispatcher.
func (w *Walker) Run(ctx context.Context, executionID string) (*VisitResult, error) {
	var collected []eventbus.Event

	for {
		result, err := w.Visit(ctx, executionID)
		if err != nil {
			return nil, err
		}

		collected = append(collected, result.Events...)
		result.Events = collected

		if result.Outcome != OutcomeAdvanced {
			return result, nil
		}
	}
}

func (w *Walker) branch(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode, branch bool, visitEvents []eventbus.Event, logger *slog.Logger) (*VisitResult, error) {
	if err := w.journal.Append(ctx, execution, node.ID, models.LogEventConditionResult, strconv.FormatBool(branch)); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Condition evaluated", "result", branch)

	return w.advanceOrComplete(ctx, execution, node, node.BranchSuccessor(branch), nil, visitEvents, logger)
}

func (w *Walker) act(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode, output map[string]any, visitEvents []eventbus.Event, logger *slog.Logger) (*VisitResult, error) {
	execution.MergePayload(output)

	if err := w.journal.Append(ctx, execution, node.ID, models.LogEventActionResult, "dispatched"); err != nil {
		return nil, err
	}

	return w.advanceOrComplete(ctx, execution, node, node.Successor(), output, visitEvents, logger)
}

func (w *Walker) deferVisit(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode, resumeAt *time.Time, visitEvents []eventbus.Event, logger *slog.Logger) (*VisitResult, error) {
	if err := w.journal.Append(ctx, execution, node.ID, models.LogEventActionResult,
		"deferred until "+resumeAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}

	next := node.Successor()
	if next == nil {
		// A trailing delay has nothing to resume into.
		return w.complete(ctx, execution, node, visitEvents, logger)
	}

	execution.ResumeAt = resumeAt

	if err := w.executions.Advance(ctx, execution, *next, nil); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Execution deferred", "resume_at", resumeAt, "next_node_id", *next)

	deferred := events.ExecutionDeferred{
		BaseEvent:   events.NewBaseEvent(events.ExecutionDeferredEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		ResumeAt:    *resumeAt,
	}

	return &VisitResult{
		Outcome:   OutcomeDeferred,
		Execution: execution,
		Events:    append(visitEvents, deferred),
	}, nil
}

func (w *Walker) advanceOrComplete(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode, next *string, output map[string]any, visitEvents []eventbus.Event, logger *slog.Logger) (*VisitResult, error) {
	if next == nil {
		return w.complete(ctx, execution, node, visitEvents, logger)
	}

	if err := w.executions.Advance(ctx, execution, *next, output); err != nil {
		return nil, err
	}

	stepAvailable := events.ExecutionStepAvailable{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      *next,
	}

	return &VisitResult{
		Outcome:   OutcomeAdvanced,
		Execution: execution,
		Events:    append(visitEvents, stepAvailable),
	}, nil
}

func (w *Walker) complete(ctx context.Context, execution *models.WorkflowExecution, node *models.WorkflowNode, visitEvents []eventbus.Event, logger *slog.Logger) (*VisitResult, error) {
	if err := w.executions.Complete(ctx, execution); err != nil {
		return nil, err
	}

	if err := w.memberships.RecordLastNode(ctx, execution.WorkflowID, execution.LeadID, node.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to record last node on membership", "error", err)
	}

	logger.InfoContext(ctx, "Execution completed", "steps", execution.StepCount)

	completed := events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		LeadID:      execution.LeadID,
		Duration:    execution.Duration(),
	}

	return &VisitResult{
		Outcome:   OutcomeCompleted,
		Execution: execution,
		Events:    append(visitEvents, completed),
	}, nil
}

func (w *Walker) fail(ctx context.Context, execution *models.WorkflowExecution, nodeID, message string, visitEvents []eventbus.Event, logger *slog.Logger) (*VisitResult, error) {
	// The error entry is written before the status mutation so the trail
	// records the failure even if the terminal write is retried.
	if err := w.journal.Append(ctx, execution, nodeID, models.LogEventError, message); err != nil {
		return nil, err
	}

	if err := w.executions.Fail(ctx, execution, message); err != nil {
		return nil, err
	}

	logger.ErrorContext(ctx, "Execution failed", "node_id", nodeID, "error_message", message)

	failed := events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		LeadID:      execution.LeadID,
		NodeID:      nodeID,
		Error:       message,
		Duration:    execution.Duration(),
	}

	return &VisitResult{
		Outcome:   OutcomeFailed,
		Execution: execution,
		Events:    append(visitEvents, failed),
	}, nil
}

func (w *Walker) cancel(ctx context.Context, execution *models.WorkflowExecution, logger *slog.Logger) (*VisitResult, error) {
	execution.Status = models.ExecutionStatusCancelled
	execution.ResumeAt = nil

	if err := w.executions.persistence.ExecutionRepository().Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to cancel execution: %w", err)
	}

	logger.InfoContext(ctx, "Execution cancelled")

	cancelled := events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		LeadID:      execution.LeadID,
	}

	return &VisitResult{
		Outcome:   OutcomeCancelled,
		Execution: execution,
		Events:    []eventbus.Event{cancelled},
	}, nil
}
