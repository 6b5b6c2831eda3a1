// Package lock provides mutual-exclusion leases for executions and lead
// memberships. One visit of an execution holds its lease from step 1 through
// step 6; contention is transient and the visit is simply retried later.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld indicates the lease is currently held by another owner.
var ErrLockHeld = errors.New("lock already held")

// ErrLeaseExpired indicates a release attempt on a lease no longer owned.
var ErrLeaseExpired = errors.New("lease expired or not owned")

// Lease is a held lock that must be released when the protected work ends.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires named leases with a TTL so a crashed holder cannot wedge an
// execution forever.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// IsHeld checks if an error indicates transient lock contention.
func IsHeld(err error) bool {
	return errors.Is(err, ErrLockHeld)
}

// ExecutionKey names the lease serializing visits of one execution.
func ExecutionKey(executionID string) string {
	return "execution:" + executionID
}

// LeadKey names the lease serializing execution creation per (workflow, lead).
func LeadKey(workflowID, leadID string) string {
	return "lead:" + workflowID + ":" + leadID
}
