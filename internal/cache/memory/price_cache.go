// Package memory provides in-process implementations of the cache interfaces,
// used when no shared Redis is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

type priceEntry struct {
	price float64
	ts    time.Time
}

// PriceCache is a mutex-guarded map of pool address to latest price.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]priceEntry
}

func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]priceEntry)}
}

func (pc *PriceCache) SetPrice(_ context.Context, poolAddress string, price float64, ts time.Time) error {
	pc.mu.Lock()
	pc.entries[poolAddress] = priceEntry{price: price, ts: ts}
	pc.mu.Unlock()
	return nil
}

// GetPrice returns domain.ErrNotFound when the pool has never been cached.
func (pc *PriceCache) GetPrice(_ context.Context, poolAddress string) (float64, time.Time, error) {
	pc.mu.RLock()
	e, ok := pc.entries[poolAddress]
	pc.mu.RUnlock()
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
