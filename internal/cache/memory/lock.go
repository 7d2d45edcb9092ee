package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// LockManager serializes work on a key within a single process. The TTL acts
// as a safety valve: a lock whose holder never released it (a leaked goroutine
// or a panic swallowed upstream) becomes reclaimable after expiry.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]time.Time)}
}

// Acquire obtains the lock for key or returns domain.ErrLockHeld if it is
// held and not yet expired. The returned unlock is safe to call repeatedly.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	now := time.Now()

	lm.mu.Lock()
	if exp, held := lm.locks[key]; held && now.Before(exp) {
		lm.mu.Unlock()
		return nil, domain.ErrLockHeld
	}
	expiry := now.Add(ttl)
	lm.locks[key] = expiry
	lm.mu.Unlock()

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		// Only delete if this is still our acquisition: a later holder may
		// have reclaimed the key after our TTL expired.
		if exp, held := lm.locks[key]; held && exp.Equal(expiry) {
			delete(lm.locks, key)
		}
	}
	return unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
