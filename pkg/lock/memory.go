package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token  string
	expiry time.Time
}

// MemoryLocker is a process-local Locker for tests and single-process
// deployments.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryEntry)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, held := l.leases[key]; held && entry.expiry.After(now) {
		return nil, ErrLockHeld
	}

	token := uuid.New().String()
	l.leases[key] = memoryEntry{token: token, expiry: now.Add(ttl)}

	return &memoryLease{locker: l, key: key, token: token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

// Release deletes the lease only while this token still owns it, so a lease
// that expired and was re-acquired is never released by the original holder.
func (l *memoryLease) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	entry, held := l.locker.leases[l.key]
	if !held || entry.token != l.token {
		return ErrLeaseExpired
	}

	delete(l.locker.leases, l.key)

	return nil
}
