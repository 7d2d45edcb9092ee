package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each pool's
// price is stored as a hash at key "price:{poolAddress}" with fields "price"
// and "ts" (Unix nanosecond timestamp). Sharing the hash across bot instances
// lets a fleet hedging different wallets reuse one set of price lookups.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(poolAddress string) string {
	return "price:" + poolAddress
}

// SetPrice stores the latest price and timestamp for a pool.
func (pc *PriceCache) SetPrice(ctx context.Context, poolAddress string, price float64, ts time.Time) error {
	key := priceKey(poolAddress)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", poolAddress, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a pool.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, poolAddress string) (float64, time.Time, error) {
	key := priceKey(poolAddress)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", poolAddress, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", poolAddress, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", poolAddress, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
