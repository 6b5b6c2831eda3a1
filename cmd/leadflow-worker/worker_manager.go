package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/lock"
	"github.com/leadflow/leadflow/pkg/metrics"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/registry"
	"github.com/leadflow/leadflow/pkg/services"
	"github.com/leadflow/leadflow/pkg/sources/schedule"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// resumePollInterval bounds how late a deferred execution resumes after its
// ResumeAt passes.
const resumePollInterval = 10 * time.Second

const resumePollBatch = 100

type WorkerManager struct {
	id           string
	logger       *slog.Logger
	persistence  persistence.Persistence
	registry     *registry.Registry
	eventBus     eventbus.EventBus
	locker       lock.Locker
	metricsStore metrics.Store

	walker    *workflow.Walker
	scheduler *schedule.Scheduler

	mu         sync.Mutex
	visitSlots map[string]chan struct{}
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	locker lock.Locker,
	metricsStore metrics.Store,
	logger *slog.Logger,
	registry *registry.Registry,
) *WorkerManager {
	logger = logger.With("module", "leadflow-worker", "worker_id", id)

	memberships := workflow.NewMemberships(persistence.LeadRepository(), logger)
	definitions := workflow.NewDefinitionStore(persistence)
	journal := workflow.NewJournal(persistence.LogRepository())
	executions := workflow.NewExecutions(persistence, memberships, definitions, locker, logger)

	walker := workflow.NewWalker(executions, memberships, definitions, journal, registry, locker, logger)
	executionService := services.NewExecution(executions, journal, eventBus, logger)

	return &WorkerManager{
		id:           id,
		logger:       logger,
		persistence:  persistence,
		registry:     registry,
		eventBus:     eventBus,
		locker:       locker,
		metricsStore: metricsStore,
		walker:       walker,
		scheduler:    schedule.NewScheduler(persistence, executionService, logger),
		visitSlots:   make(map[string]chan struct{}),
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.ExecutionStepAvailableEvent, w.handleExecutionStepAvailable)
	if err != nil {
		return err
	}

	aggregator := metrics.NewAggregator(w.metricsStore, w.logger)

	err = aggregator.Register(w.eventBus)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.scheduler.Start(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to start scheduler", "error", err)

		return err
	}

	pollerCtx, cancelPoller := context.WithCancel(ctx)
	defer cancelPoller()

	go w.resumePoller(pollerCtx)

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	if err := w.scheduler.Stop(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
	}

	return nil
}

func (w *WorkerManager) handleExecutionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", requested.WorkflowID,
		"execution_id", requested.ExecutionID,
		"lead_id", requested.LeadID,
		"event_id", requested.ID,
	)
	logger.InfoContext(ctx, "Processing execution requested event")

	return w.visit(ctx, logger, requested.WorkflowID, requested.ExecutionID)
}

func (w *WorkerManager) handleExecutionStepAvailable(ctx context.Context, event any) error {
	stepEvent, ok := event.(*events.ExecutionStepAvailable)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionStepAvailable")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", stepEvent.WorkflowID,
		"execution_id", stepEvent.ExecutionID,
		"node_id", stepEvent.NodeID,
		"event_id", stepEvent.ID,
	)
	logger.InfoContext(ctx, "Processing execution step available event")

	return w.visit(ctx, logger, stepEvent.WorkflowID, stepEvent.ExecutionID)
}

// visit performs one walker visit and publishes the resulting events. An
// advancing visit publishes its own step available event, so the walk
// continues one message at a time and any worker can pick up the next step.
func (w *WorkerManager) visit(ctx context.Context, logger *slog.Logger, workflowID, executionID string) error {
	release, err := w.acquireVisitSlot(ctx, workflowID)
	if err != nil {
		if workflow.IsTransient(err) {
			logger.InfoContext(ctx, "Workflow at concurrency limit, retrying", "error", err)
		}

		return err
	}
	defer release()

	result, err := w.walker.Visit(ctx, executionID)
	if err != nil {
		if workflow.IsTransient(err) {
			logger.InfoContext(ctx, "Execution visit contended, retrying", "error", err)

			return err
		}

		logger.ErrorContext(ctx, "Failed to visit execution", "error", err)

		return err
	}

	for _, event := range result.Events {
		publishErr := w.eventBus.Publish(ctx, workflowID, event)
		if publishErr != nil {
			logger.ErrorContext(ctx, "Failed to publish execution event", "error", publishErr, "event", event)

			return publishErr
		}
	}

	logger.InfoContext(ctx, "Execution visit finished", "outcome", result.Outcome)

	return nil
}

// acquireVisitSlot bounds concurrent visits per workflow on this worker to
// the workflow's priority-derived ceiling. The channel capacity is fixed
// when the workflow is first visited here; a priority change takes effect
// after a worker restart.
func (w *WorkerManager) acquireVisitSlot(ctx context.Context, workflowID string) (func(), error) {
	w.mu.Lock()
	slots, ok := w.visitSlots[workflowID]
	w.mu.Unlock()

	if !ok {
		wf, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("resolving workflow %s: %w", workflowID, err)
		}

		w.mu.Lock()
		slots, ok = w.visitSlots[workflowID]
		if !ok {
			slots = make(chan struct{}, wf.MaxConcurrentExecutions())
			w.visitSlots[workflowID] = slots
		}
		w.mu.Unlock()
	}

	select {
	case slots <- struct{}{}:
		return func() { <-slots }, nil
	default:
		return nil, fmt.Errorf("workflow %s: %w", workflowID, workflow.ErrWorkflowSaturated)
	}
}

// resumePoller re-dispatches deferred executions whose ResumeAt has passed.
// Publishing a step available event instead of visiting inline keeps resume
// work load-balanced across workers.
func (w *WorkerManager) resumePoller(ctx context.Context) {
	ticker := time.NewTicker(resumePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.resumeDue(ctx)
		}
	}
}

func (w *WorkerManager) resumeDue(ctx context.Context) {
	due, err := w.persistence.ExecutionRepository().ListDueForResume(ctx, time.Now().UTC(), resumePollBatch)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to list executions due for resume", "error", err)

		return
	}

	for _, execution := range due {
		stepAvailable := events.ExecutionStepAvailable{
			BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
		}
		stepAvailable.WorkerID = w.id

		if err := w.eventBus.Publish(ctx, execution.WorkflowID, stepAvailable); err != nil {
			w.logger.ErrorContext(ctx, "Failed to publish resume event",
				"execution_id", execution.ID, "error", err)
		}
	}
}
