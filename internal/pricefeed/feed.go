// Package pricefeed serves pool USD prices through a short-TTL cache with a
// two-level source chain: an authoritative REST price source first, then a
// price derived from the pool's active bin.
package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/bounds"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Feed caches and serves pool prices. Concurrency-safe as long as the
// injected cache is.
type Feed struct {
	source domain.PriceSource
	pools  domain.PoolDataProvider
	cache  domain.PriceCache
	ttl    time.Duration
	log    *slog.Logger
}

func New(source domain.PriceSource, pools domain.PoolDataProvider, cache domain.PriceCache, ttl time.Duration, log *slog.Logger) *Feed {
	return &Feed{
		source: source,
		pools:  pools,
		cache:  cache,
		ttl:    ttl,
		log:    log.With("component", "pricefeed"),
	}
}

// GetPrice returns a USD price for the pool. A cache entry younger than the
// TTL is served as-is. On a miss the primary source is queried; a missing,
// zero, or implausibly small (<=1) value falls through to the bin-derived
// price. Whichever value is used is written back to the cache. When every
// source fails, the last cached value is served regardless of age; with no
// cached value at all the error wraps domain.ErrStalePrice and is retryable.
func (f *Feed) GetPrice(ctx context.Context, poolAddress string) (float64, error) {
	if price, ts, err := f.cache.GetPrice(ctx, poolAddress); err == nil && time.Since(ts) < f.ttl {
		return price, nil
	}

	price, srcErr := f.source.GetUSDPrice(ctx, poolAddress)
	if srcErr == nil {
		if price > 1 {
			f.store(ctx, poolAddress, price)
			return price, nil
		}
		srcErr = fmt.Errorf("implausible price %g: %w", price, domain.ErrNoPrice)
	}

	active, binErr := f.pools.GetActiveBin(ctx, poolAddress)
	if binErr == nil {
		derived := bounds.PriceOfBin(active.BinID, active.BinStep)
		f.log.Debug("primary price source unusable, using bin-derived price",
			"pool", poolAddress, "price", derived, "source_err", srcErr)
		f.store(ctx, poolAddress, derived)
		return derived, nil
	}

	if price, ts, err := f.cache.GetPrice(ctx, poolAddress); err == nil {
		f.log.Warn("all price sources failed, serving stale cached price",
			"pool", poolAddress, "age", time.Since(ts), "source_err", srcErr, "bin_err", binErr)
		return price, nil
	}

	return 0, fmt.Errorf("pricefeed: %s: %w (source: %v; active bin: %v)",
		poolAddress, domain.ErrStalePrice, srcErr, binErr)
}

func (f *Feed) store(ctx context.Context, poolAddress string, price float64) {
	if err := f.cache.SetPrice(ctx, poolAddress, price, time.Now()); err != nil {
		f.log.Warn("price cache write failed", "pool", poolAddress, "error", err)
	}
}
