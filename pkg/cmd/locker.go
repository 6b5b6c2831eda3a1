package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/leadflow/leadflow/pkg/lock"
)

// NewLocker builds the distributed locker. An empty redisURL selects the
// in-process locker, suited to single-node deployments.
func NewLocker(redisURL string) lock.Locker {
	if redisURL == "" {
		return lock.NewMemoryLocker()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return lock.NewRedisLocker(redis.NewClient(opts))
}
