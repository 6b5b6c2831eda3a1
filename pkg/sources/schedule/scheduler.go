// Package schedule turns workflow schedule triggers into execution requests
// using cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/services"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// syncInterval controls how often the scheduler re-reads trigger definitions
// so activations and pauses take effect without a restart.
const syncInterval = time.Minute

// Scheduler runs cron jobs for every schedule trigger of every active
// workflow. A fire requests one execution per active lead membership;
// ineligible leads and leads with an execution already in flight are skipped.
type Scheduler struct {
	persistence persistence.Persistence
	executions  *services.Execution
	logger      *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID // trigger ID -> cron entry
	done    chan struct{}
}

func NewScheduler(p persistence.Persistence, executions *services.Execution, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: p,
		executions:  executions,
		logger:      logger.With("module", "scheduler"),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		entries: make(map[string]cron.EntryID),
		done:    make(chan struct{}),
	}
}

// Start syncs trigger definitions, starts the cron runner and keeps the job
// table in sync until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.cron.Start()

	go s.syncLoop(ctx)

	return nil
}

// Stop halts the cron runner and the sync loop. Running jobs finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.done)

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Failed to sync schedule triggers", "error", err)
			}
		}
	}
}

// Sync reconciles cron entries with the schedule triggers of currently active
// workflows.
func (s *Scheduler) Sync(ctx context.Context) error {
	active := models.WorkflowStatusActive

	workflows, err := s.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Status: &active,
	})
	if err != nil {
		return fmt.Errorf("failed to list active workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool)

	for _, wf := range workflows {
		if !wf.Type.Capabilities().Scheduling {
			continue
		}

		for _, trigger := range wf.Triggers {
			if trigger.Type != "schedule" {
				continue
			}

			wanted[trigger.ID] = true

			if _, registered := s.entries[trigger.ID]; registered {
				continue
			}

			if err := s.register(ctx, wf, trigger); err != nil {
				s.logger.ErrorContext(ctx, "Failed to register schedule trigger",
					"workflow_id", wf.ID, "trigger_id", trigger.ID, "error", err)
			}
		}
	}

	for triggerID, entryID := range s.entries {
		if !wanted[triggerID] {
			s.cron.Remove(entryID)
			delete(s.entries, triggerID)
		}
	}

	return nil
}

func (s *Scheduler) register(ctx context.Context, wf *models.Workflow, trigger *models.WorkflowTrigger) error {
	expr, _ := trigger.Configuration["cron"].(string)
	if expr == "" {
		return errors.New("schedule trigger requires a cron expression")
	}

	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	workflowID := wf.ID
	triggerID := trigger.ID

	entryID, err := s.cron.AddFunc(expr, func() {
		s.fire(context.Background(), workflowID, triggerID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entries[triggerID] = entryID
	s.logger.InfoContext(ctx, "Registered schedule trigger",
		"workflow_id", workflowID, "trigger_id", triggerID, "cron", expr)

	return nil
}

func (s *Scheduler) fire(ctx context.Context, workflowID, triggerID string) {
	logger := s.logger.With("workflow_id", workflowID, "trigger_id", triggerID)
	logger.InfoContext(ctx, "Schedule trigger fired")

	leads, err := s.persistence.LeadRepository().ListByWorkflow(ctx, workflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list workflow leads", "error", err)

		return
	}

	payload := map[string]any{
		"trigger_id": triggerID,
		"fired_at":   time.Now().UTC().Format(time.RFC3339),
	}

	for _, lead := range leads {
		if !lead.IsEligibleToRun() {
			continue
		}

		_, err := s.executions.Trigger(ctx, services.TriggerRequest{
			WorkflowID: workflowID,
			LeadID:     lead.LeadID,
			Payload:    payload,
		})
		if err != nil {
			// A lead already mid-run keeps its current execution.
			if errors.Is(err, workflow.ErrLeadExecutionInFlight) {
				continue
			}

			logger.ErrorContext(ctx, "Failed to trigger execution",
				"lead_id", lead.LeadID, "error", err)
		}
	}
}
