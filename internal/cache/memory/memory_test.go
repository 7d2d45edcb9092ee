package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

func TestPriceCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := NewPriceCache()

	if _, _, err := pc.GetPrice(ctx, "pool1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty cache: err = %v, want ErrNotFound", err)
	}

	ts := time.Now()
	if err := pc.SetPrice(ctx, "pool1", 142.5, ts); err != nil {
		t.Fatal(err)
	}
	price, gotTS, err := pc.GetPrice(ctx, "pool1")
	if err != nil {
		t.Fatal(err)
	}
	if price != 142.5 || !gotTS.Equal(ts) {
		t.Fatalf("got (%g, %s), want (142.5, %s)", price, gotTS, ts)
	}
}

func TestLockManagerExclusion(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	unlock, err := lm.Acquire(ctx, "pos1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lm.Acquire(ctx, "pos1", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second acquire: err = %v, want ErrLockHeld", err)
	}

	// Unrelated keys are independent.
	unlock2, err := lm.Acquire(ctx, "pos2", time.Minute)
	if err != nil {
		t.Fatalf("unrelated key blocked: %v", err)
	}
	unlock2()

	unlock()
	unlock() // idempotent

	if _, err := lm.Acquire(ctx, "pos1", time.Minute); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestLockManagerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	staleUnlock, err := lm.Acquire(ctx, "pos1", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	// Expired lock is reclaimable without being released.
	if _, err := lm.Acquire(ctx, "pos1", time.Minute); err != nil {
		t.Fatalf("expired lock not reclaimable: %v", err)
	}

	// The stale holder's unlock must not release the new holder's lock.
	staleUnlock()
	if _, err := lm.Acquire(ctx, "pos1", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("stale unlock released live lock: err = %v", err)
	}
}
