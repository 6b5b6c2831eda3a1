package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/channels/gochannel"
	"github.com/leadflow/leadflow/pkg/events"
)

func newTestBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	return NewWatermillEventBus(pub, sub)
}

func TestWatermillEventBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received []*events.ExecutionRequested
	)

	err := bus.Handle(events.ExecutionRequestedEvent, func(_ context.Context, event any) error {
		requested, ok := event.(*events.ExecutionRequested)
		if !ok {
			t.Errorf("unexpected event payload %T", event)

			return nil
		}

		mu.Lock()
		received = append(received, requested)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.ExecutionRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionRequestedEvent, "wf-1"),
		ExecutionID: "exec-1",
		LeadID:      "lead-1",
		TriggerData: map[string]any{"origin": "signup"},
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", sent))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "exec-1", received[0].ExecutionID)
	assert.Equal(t, "lead-1", received[0].LeadID)
	assert.Equal(t, "wf-1", received[0].WorkflowID)
	assert.Equal(t, "signup", received[0].TriggerData["origin"])

	require.NoError(t, bus.Close())
}

func TestWatermillEventBus_UnhandledEventsAreAcked(t *testing.T) {
	bus := newTestBus(t)

	handled := make(chan struct{}, 1)

	err := bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, _ any) error {
		handled <- struct{}{}

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// An event nobody subscribed to is dropped without wedging the stream.
	require.NoError(t, bus.Publish(ctx, "wf-1", events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
	}))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.ExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
	}))

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("completed event was never handled")
	}

	require.NoError(t, bus.Close())
}

func TestWatermillEventBus_RejectsDuplicateHandlers(t *testing.T) {
	bus := newTestBus(t)

	handler := func(_ context.Context, _ any) error { return nil }

	require.NoError(t, bus.Handle(events.ExecutionRequestedEvent, handler))

	err := bus.Handle(events.ExecutionRequestedEvent, handler)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerRegistered)
}
