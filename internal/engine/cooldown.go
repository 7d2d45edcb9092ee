package engine

import (
	"sync"
	"time"
)

// Cooldown suppresses repeated open attempts for a position after an
// insufficient-balance failure. It is safe for concurrent use.
type Cooldown struct {
	failed map[string]time.Time // position address -> failure time
	ttl    time.Duration
	mu     sync.Mutex
}

// NewCooldown creates a Cooldown with the given suppression window.
func NewCooldown(ttl time.Duration) *Cooldown {
	return &Cooldown{
		failed: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Allowed reports whether an attempt may proceed for the key. An expired
// failure record is cleared on the way through.
func (c *Cooldown) Allowed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	failedAt, ok := c.failed[key]
	if !ok {
		return true
	}
	if time.Since(failedAt) >= c.ttl {
		delete(c.failed, key)
		return true
	}
	return false
}

// MarkFailure records a failure for the key, starting its suppression window.
func (c *Cooldown) MarkFailure(key string) {
	c.mu.Lock()
	c.failed[key] = time.Now()
	c.mu.Unlock()
}

// Clear drops the failure record for a key, re-enabling attempts immediately.
func (c *Cooldown) Clear(key string) {
	c.mu.Lock()
	delete(c.failed, key)
	c.mu.Unlock()
}

// Cleanup removes expired entries. Called periodically by the monitor loop to
// keep the map bounded.
func (c *Cooldown) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, ts := range c.failed {
		if now.Sub(ts) >= c.ttl {
			delete(c.failed, key)
		}
	}
}
