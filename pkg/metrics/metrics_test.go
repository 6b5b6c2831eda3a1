package metrics

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow/pkg/channels/gochannel"
	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/events"
)

func TestMemoryStore_ApplyAccumulates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "wf-1", Delta{Executions: 1}))
	require.NoError(t, store.Apply(ctx, "wf-1", Delta{Successes: 1, Duration: 2 * time.Second}))
	require.NoError(t, store.Apply(ctx, "wf-1", Delta{Failures: 1, Duration: 4 * time.Second}))

	m, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.ExecutionCount)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, 6*time.Second, m.TotalDuration)
	assert.Equal(t, 3*time.Second, m.AverageDuration())
}

func TestMemoryStore_GetUnknownWorkflowIsZero(t *testing.T) {
	store := NewMemoryStore()

	m, err := store.Get(context.Background(), "unknown")
	require.NoError(t, err)

	assert.Zero(t, m.ExecutionCount)
	assert.Zero(t, m.TotalDuration)
	assert.Zero(t, m.AverageDuration())
}

func TestMemoryStore_NegativeDurationIgnored(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, "wf-1", Delta{Successes: 1, Duration: -time.Second}))

	m, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Zero(t, m.TotalDuration)
}

func TestAggregator_FoldsLifecycleEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	store := NewMemoryStore()
	aggregator := NewAggregator(store, logger)

	require.NoError(t, aggregator.Register(bus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	publish := func(event eventbus.Event) {
		require.NoError(t, bus.Publish(ctx, "wf-1", event))
	}

	publish(events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
		ExecutionID: "exec-1",
	})
	publish(events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
		ExecutionID: "exec-1",
		Duration:    time.Second,
	})
	publish(events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, "wf-1"),
		ExecutionID: "exec-2",
		Duration:    3 * time.Second,
	})

	require.Eventually(t, func() bool {
		m, err := store.Get(ctx, "wf-1")
		if err != nil {
			return false
		}

		return m.ExecutionCount == 1 && m.SuccessCount == 1 && m.FailureCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	m, err := store.Get(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, m.TotalDuration)
	assert.Equal(t, 2*time.Second, m.AverageDuration())

	require.NoError(t, bus.Close())
}
