package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// MemoryStore keeps counters in process memory. Suited to single-node
// deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*models.WorkflowMetrics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*models.WorkflowMetrics),
	}
}

func (s *MemoryStore) Apply(_ context.Context, workflowID string, delta Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.counters[workflowID]
	if !ok {
		m = &models.WorkflowMetrics{}
		s.counters[workflowID] = m
	}

	m.ExecutionCount += delta.Executions
	m.SuccessCount += delta.Successes
	m.FailureCount += delta.Failures
	m.TotalDuration += normalizeDuration(delta.Duration)

	return nil
}

func (s *MemoryStore) Get(_ context.Context, workflowID string) (*models.WorkflowMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.counters[workflowID]
	if !ok {
		return &models.WorkflowMetrics{}, nil
	}

	copied := *m

	return &copied, nil
}

var _ Store = (*MemoryStore)(nil)

// normalizeDuration guards against sub-millisecond jitter turning into
// negative totals when deltas arrive out of order.
func normalizeDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}

	return d
}
