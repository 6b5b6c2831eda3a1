package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/leadflow/leadflow/pkg/metrics"
)

// NewMetricsStore builds the per-workflow metrics store. An empty redisURL
// selects the in-memory store; multi-process deployments need Redis so the
// API reads the counters the workers write.
func NewMetricsStore(redisURL string) metrics.Store {
	if redisURL == "" {
		return metrics.NewMemoryStore()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return metrics.NewRedisStore(redis.NewClient(opts))
}
