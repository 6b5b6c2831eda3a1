package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadflow/leadflow/pkg/models"
)

const redisKeyPrefix = "leadflow:metrics:"

const (
	fieldExecutions = "execution_count"
	fieldSuccesses  = "success_count"
	fieldFailures   = "failure_count"
	fieldDurationMS = "total_duration_ms"
)

// RedisStore accumulates counters in a Redis hash per workflow, shared across
// worker instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Apply(ctx context.Context, workflowID string, delta Delta) error {
	key := redisKeyPrefix + workflowID

	pipe := s.client.Pipeline()

	if delta.Executions != 0 {
		pipe.HIncrBy(ctx, key, fieldExecutions, delta.Executions)
	}

	if delta.Successes != 0 {
		pipe.HIncrBy(ctx, key, fieldSuccesses, delta.Successes)
	}

	if delta.Failures != 0 {
		pipe.HIncrBy(ctx, key, fieldFailures, delta.Failures)
	}

	if d := normalizeDuration(delta.Duration); d > 0 {
		pipe.HIncrBy(ctx, key, fieldDurationMS, d.Milliseconds())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply metrics delta: %w", err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, workflowID string) (*models.WorkflowMetrics, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+workflowID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	m := &models.WorkflowMetrics{
		ExecutionCount: parseCounter(fields[fieldExecutions]),
		SuccessCount:   parseCounter(fields[fieldSuccesses]),
		FailureCount:   parseCounter(fields[fieldFailures]),
	}
	m.TotalDuration = time.Duration(parseCounter(fields[fieldDurationMS])) * time.Millisecond

	return m, nil
}

var _ Store = (*RedisStore)(nil)

func parseCounter(raw string) int64 {
	if raw == "" {
		return 0
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return value
}
