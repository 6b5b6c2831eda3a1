package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
	"github.com/leadflow/leadflow/pkg/lock"
	"github.com/leadflow/leadflow/pkg/models"
	"github.com/leadflow/leadflow/pkg/persistence/file"
	"github.com/leadflow/leadflow/pkg/registry"
	"github.com/leadflow/leadflow/pkg/workflow"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

type executionServiceFixture struct {
	workflows *Workflow
	service   *Execution
	leads     *Lead
	publisher *recordingPublisher
}

func newExecutionServiceFixture(t *testing.T) *executionServiceFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	persistence := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	memberships := workflow.NewMemberships(persistence.LeadRepository(), logger)
	definitions := workflow.NewDefinitionStore(persistence)
	journal := workflow.NewJournal(persistence.LogRepository())
	executions := workflow.NewExecutions(persistence, memberships, definitions, lock.NewMemoryLocker(), logger)

	publisher := &recordingPublisher{}

	return &executionServiceFixture{
		workflows: NewWorkflow(persistence, workflow.NewValidator(reg)),
		service:   NewExecution(executions, journal, publisher, logger),
		leads:     NewLead(memberships, persistence.LeadRepository(), persistence.ExecutionRepository(), publisher, logger),
		publisher: publisher,
	}
}

func (f *executionServiceFixture) activateWorkflow(t *testing.T) *models.Workflow {
	t.Helper()

	ctx := context.Background()

	created, err := f.workflows.Create(ctx, &models.Workflow{Name: "Welcome Sequence"})
	require.NoError(t, err)

	_, err = f.workflows.UpdateDefinition(ctx, created.ID, linearDefinition())
	require.NoError(t, err)

	activated, err := f.workflows.Activate(ctx, created.ID)
	require.NoError(t, err)

	return activated
}

func TestExecutionService_TriggerPublishesRequested(t *testing.T) {
	f := newExecutionServiceFixture(t)
	ctx := context.Background()

	wf := f.activateWorkflow(t)

	execution, err := f.service.Trigger(ctx, TriggerRequest{
		WorkflowID: wf.ID,
		LeadID:     "lead-1",
		Payload:    map[string]any{"origin": "signup"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)

	published := f.publisher.published()
	require.Len(t, published, 1)

	requested, ok := published[0].(events.ExecutionRequested)
	require.True(t, ok)
	assert.Equal(t, execution.ID, requested.ExecutionID)
	assert.Equal(t, "lead-1", requested.LeadID)
	assert.Equal(t, "signup", requested.TriggerData["origin"])
}

func TestExecutionService_TriggerRequiresLeadID(t *testing.T) {
	f := newExecutionServiceFixture(t)

	_, err := f.service.Trigger(context.Background(), TriggerRequest{WorkflowID: "wf-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeadIDRequired))
	assert.True(t, IsValidationError(err))
}

func TestExecutionService_CancelNudgesWorker(t *testing.T) {
	f := newExecutionServiceFixture(t)
	ctx := context.Background()

	wf := f.activateWorkflow(t)

	execution, err := f.service.Trigger(ctx, TriggerRequest{WorkflowID: wf.ID, LeadID: "lead-1"})
	require.NoError(t, err)

	require.NoError(t, f.service.Cancel(ctx, execution.ID))

	stored, err := f.service.FetchByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.True(t, stored.CancelRequested)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)

	published := f.publisher.published()
	require.Len(t, published, 2)

	step, ok := published[1].(events.ExecutionStepAvailable)
	require.True(t, ok)
	assert.Equal(t, execution.ID, step.ExecutionID)
}

func TestExecutionService_LogsRequireExistingExecution(t *testing.T) {
	f := newExecutionServiceFixture(t)

	_, err := f.service.Logs(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestLeadService_PauseResumePublishEvents(t *testing.T) {
	f := newExecutionServiceFixture(t)
	ctx := context.Background()

	wf := f.activateWorkflow(t)

	_, err := f.leads.Enroll(ctx, wf.ID, "lead-1")
	require.NoError(t, err)

	paused, err := f.leads.Pause(ctx, wf.ID, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusPaused, paused.Status)

	resumed, err := f.leads.Resume(ctx, wf.ID, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusActive, resumed.Status)

	published := f.publisher.published()
	require.Len(t, published, 2)
	assert.Equal(t, events.LeadPausedEvent, published[0].GetType())
	assert.Equal(t, events.LeadResumedEvent, published[1].GetType())
}

func TestLeadService_ResumeRedispatchesInFlightExecution(t *testing.T) {
	f := newExecutionServiceFixture(t)
	ctx := context.Background()

	wf := f.activateWorkflow(t)

	execution, err := f.service.Trigger(ctx, TriggerRequest{WorkflowID: wf.ID, LeadID: "lead-1"})
	require.NoError(t, err)

	_, err = f.leads.Pause(ctx, wf.ID, "lead-1")
	require.NoError(t, err)

	_, err = f.leads.Resume(ctx, wf.ID, "lead-1")
	require.NoError(t, err)

	// Resuming the lead re-enqueues the halted execution so a worker picks
	// it up again; the LeadResumed event alone moves nothing.
	published := f.publisher.published()
	require.Len(t, published, 4)
	assert.Equal(t, events.LeadResumedEvent, published[2].GetType())

	step, ok := published[3].(events.ExecutionStepAvailable)
	require.True(t, ok)
	assert.Equal(t, execution.ID, step.ExecutionID)
}

func TestLeadService_ResumeWithoutExecutionPublishesNoStep(t *testing.T) {
	f := newExecutionServiceFixture(t)
	ctx := context.Background()

	wf := f.activateWorkflow(t)

	_, err := f.leads.Enroll(ctx, wf.ID, "lead-1")
	require.NoError(t, err)

	_, err = f.leads.Pause(ctx, wf.ID, "lead-1")
	require.NoError(t, err)

	_, err = f.leads.Resume(ctx, wf.ID, "lead-1")
	require.NoError(t, err)

	published := f.publisher.published()
	require.Len(t, published, 2)
	assert.Equal(t, events.LeadResumedEvent, published[1].GetType())
}

func TestLeadService_EnrollRequiresLeadID(t *testing.T) {
	f := newExecutionServiceFixture(t)

	_, err := f.leads.Enroll(context.Background(), "wf-1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeadIDRequired))
}
