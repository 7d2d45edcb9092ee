package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/bounds"
	"github.com/alanyoungcy/dlmmbot/internal/cache/memory"
	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newFakeStore(positions ...domain.Position) *fakeStore {
	s := &fakeStore{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		s.positions[p.PositionAddress] = p
	}
	return s
}

func (s *fakeStore) Load(context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, addr string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[addr]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) Save(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	s.positions[pos.PositionAddress] = pos
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Remove(_ context.Context, addr string) error {
	s.mu.Lock()
	delete(s.positions, addr)
	s.mu.Unlock()
	return nil
}

type fakeFeed struct{ price float64 }

func (f *fakeFeed) GetPrice(context.Context, string) (float64, error) { return f.price, nil }

type fakePools struct {
	active    domain.ActiveBin
	activeErr error
	binsErr   error
}

func (p *fakePools) GetActiveBin(context.Context, string) (domain.ActiveBin, error) {
	if p.activeErr != nil {
		return domain.ActiveBin{}, p.activeErr
	}
	return p.active, nil
}

func (p *fakePools) GetPositionBins(context.Context, string, string, string) ([]domain.PositionBin, error) {
	if p.binsErr != nil {
		return nil, p.binsErr
	}
	return []domain.PositionBin{{BinID: 0, AmountX: 1, AmountY: 1}}, nil
}

type fakeLiquidity struct{}

func (fakeLiquidity) BuildOpenPosition(_ context.Context, req domain.OpenPositionRequest) (domain.TxCandidate, error) {
	return domain.TxCandidate{Base64: "open", PositionAddress: "pos2"}, nil
}

func (fakeLiquidity) BuildClosePosition(context.Context, string, string, string) (domain.TxCandidate, error) {
	return domain.TxCandidate{Base64: "close"}, nil
}

type fakeExec struct {
	mu        sync.Mutex
	submitted []string
	onSubmit  func(tx domain.TxCandidate)
	err       error
}

func (e *fakeExec) Submit(_ context.Context, tx domain.TxCandidate) (string, error) {
	e.mu.Lock()
	e.submitted = append(e.submitted, tx.Base64)
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	if e.onSubmit != nil {
		e.onSubmit(tx)
	}
	return "sig-" + tx.Base64, nil
}

type fakeBalances struct {
	mu      sync.Mutex
	amounts map[string]uint64
}

func (b *fakeBalances) GetBalance(_ context.Context, _, mint string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.amounts[mint], nil
}

func (b *fakeBalances) set(mint string, amount uint64) {
	b.mu.Lock()
	b.amounts[mint] = amount
	b.mu.Unlock()
}

const (
	baseMint  = "BaseMint1111111111111111111111111111111111"
	quoteMint = "QuoteMint111111111111111111111111111111111"
)

func monitoredPosition() domain.Position {
	return domain.Position{
		PoolAddress:     "pool1",
		PositionAddress: "pos1",
		Owner:           "wallet1",
		BaseMint:        baseMint,
		QuoteMint:       quoteMint,
		BaseDecimals:    9,
		QuoteDecimals:   6,
		InitialPrice:    100,
		CurrentPrice:    100,
		LowerBoundPrice: 90,
		UpperBoundPrice: 110,
		MinBinID:        -20,
		MaxBinID:        19,
		BinStep:         25,
		Status:          domain.PositionStatusActive,
		InitialAmountX:  1_000_000_000,
		InitialAmountY:  100_000_000,
	}
}

func testMonitor(store *fakeStore, feed *fakeFeed, pools *fakePools, exec *fakeExec, balances *fakeBalances, risk config.RiskConfig) *Monitor {
	log := testLog()
	mcfg := config.Defaults().Monitoring
	mcfg.BalancePollAttempts = 3
	mcfg.BalancePollInterval.Duration = time.Millisecond
	return NewMonitor(MonitorDeps{
		Store:     store,
		Feed:      feed,
		Decider:   NewDecider(risk, log),
		Pools:     pools,
		Liquidity: fakeLiquidity{},
		Exec:      exec,
		Balances:  balances,
		Bounds:    bounds.NewCalculator(log),
		Locks:     memory.NewLockManager(),
		Cooldown:  NewCooldown(time.Hour),
		Cfg:       mcfg,
		Log:       log,
	})
}

func TestProcessKeepUpdatesPrice(t *testing.T) {
	store := newFakeStore(monitoredPosition())
	exec := &fakeExec{}
	m := testMonitor(store, &fakeFeed{price: 101}, &fakePools{}, exec, &fakeBalances{amounts: map[string]uint64{}}, config.Defaults().Risk)

	if err := m.process(context.Background(), mustGet(t, store, "pos1")); err != nil {
		t.Fatal(err)
	}
	pos := mustGet(t, store, "pos1")
	if pos.CurrentPrice != 101 {
		t.Fatalf("current price = %g, want 101", pos.CurrentPrice)
	}
	if len(exec.submitted) != 0 {
		t.Fatalf("unexpected transactions: %v", exec.submitted)
	}
}

func TestProcessExternallyClosedPosition(t *testing.T) {
	store := newFakeStore(monitoredPosition())
	pools := &fakePools{binsErr: domain.ErrPositionNotFound}
	m := testMonitor(store, &fakeFeed{price: 101}, pools, &fakeExec{}, &fakeBalances{amounts: map[string]uint64{}}, config.Defaults().Risk)

	if err := m.process(context.Background(), mustGet(t, store, "pos1")); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, store, "pos1").Status; got != domain.PositionStatusClosed {
		t.Fatalf("status = %s, want closed", got)
	}
}

func TestProcessLowerBreachClosesAndReplaces(t *testing.T) {
	store := newFakeStore(monitoredPosition())
	balances := &fakeBalances{amounts: map[string]uint64{}}
	exec := &fakeExec{}
	// The freed tokens land in the wallet once the close confirms. Observed
	// base is below the funding snapshot, so the replacement is capped by it.
	exec.onSubmit = func(tx domain.TxCandidate) {
		if tx.Base64 == "close" {
			balances.set(baseMint, 900_000_000)
			balances.set(quoteMint, 150_000_000)
		}
	}
	pools := &fakePools{active: domain.ActiveBin{BinID: -30, BinStep: 25}}
	m := testMonitor(store, &fakeFeed{price: 89}, pools, exec, balances, config.Defaults().Risk)

	if err := m.process(context.Background(), mustGet(t, store, "pos1")); err != nil {
		t.Fatal(err)
	}

	if len(exec.submitted) != 2 || exec.submitted[0] != "close" || exec.submitted[1] != "open" {
		t.Fatalf("submitted = %v, want [close open]", exec.submitted)
	}
	if got := mustGet(t, store, "pos1").Status; got != domain.PositionStatusClosed {
		t.Fatalf("old status = %s, want closed", got)
	}

	newPos := mustGet(t, store, "pos2")
	if newPos.Status != domain.PositionStatusActive {
		t.Fatalf("new status = %s, want active", newPos.Status)
	}
	// Range is centered on the new active bin with the derived interval.
	if newPos.MinBinID != -50 || newPos.MaxBinID != -10 {
		t.Fatalf("new range = [%d,%d], want [-50,-10]", newPos.MinBinID, newPos.MaxBinID)
	}
	if newPos.InitialPrice != 89 {
		t.Fatalf("new initial price = %g, want 89", newPos.InitialPrice)
	}
	if newPos.LowerBoundPrice >= 89 || newPos.UpperBoundPrice <= 89 {
		t.Fatalf("bounds [%g,%g] do not straddle the open price", newPos.LowerBoundPrice, newPos.UpperBoundPrice)
	}
	// min(requested, observed) on each leg.
	if newPos.InitialAmountX != 900_000_000 {
		t.Fatalf("amountX = %d, want observed 900000000", newPos.InitialAmountX)
	}
	if newPos.InitialAmountY != 100_000_000 {
		t.Fatalf("amountY = %d, want requested 100000000", newPos.InitialAmountY)
	}
}

func TestProcessOpenWithoutCloseFailsFastAndCoolsDown(t *testing.T) {
	store := newFakeStore(monitoredPosition())
	// Above the upper bound without take profit: successor without closing.
	// The wallet is empty, so the open must fail fast.
	balances := &fakeBalances{amounts: map[string]uint64{}}
	exec := &fakeExec{}
	pools := &fakePools{active: domain.ActiveBin{BinID: 40, BinStep: 25}}
	risk := config.RiskConfig{StopLossPercent: 5, TakeProfitPercent: 50, FeeCheckPercent: 0}
	m := testMonitor(store, &fakeFeed{price: 111}, pools, exec, balances, risk)

	err := m.process(context.Background(), mustGet(t, store, "pos1"))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if len(exec.submitted) != 0 {
		t.Fatalf("no transaction should be submitted, got %v", exec.submitted)
	}

	// The cool-down suppresses the retry even though funds are now there.
	balances.set(baseMint, 2_000_000_000)
	balances.set(quoteMint, 200_000_000)
	if err := m.process(context.Background(), mustGet(t, store, "pos1")); err != nil {
		t.Fatal(err)
	}
	if len(exec.submitted) != 0 {
		t.Fatalf("cool-down did not suppress the retry, got %v", exec.submitted)
	}
}

func TestProcessReadOnlyExecutesNothing(t *testing.T) {
	store := newFakeStore(monitoredPosition())
	exec := &fakeExec{}
	m := testMonitor(store, &fakeFeed{price: 50}, &fakePools{active: domain.ActiveBin{BinID: 0, BinStep: 25}}, exec, &fakeBalances{amounts: map[string]uint64{}}, config.Defaults().Risk)
	m.deps.ReadOnly = true

	if err := m.process(context.Background(), mustGet(t, store, "pos1")); err != nil {
		t.Fatal(err)
	}
	if len(exec.submitted) != 0 {
		t.Fatalf("read-only mode submitted transactions: %v", exec.submitted)
	}
	// The price refresh is still persisted.
	if got := mustGet(t, store, "pos1").CurrentPrice; got != 50 {
		t.Fatalf("current price = %g, want 50", got)
	}
}

func TestProcessRepairsMissingBounds(t *testing.T) {
	pos := monitoredPosition()
	pos.LowerBoundPrice = 0
	pos.UpperBoundPrice = 0
	store := newFakeStore(pos)
	// The active bin read fails, so the repair falls back to the midpoint
	// approximation over the stored bin range.
	pools := &fakePools{activeErr: errors.New("rpc down")}
	m := testMonitor(store, &fakeFeed{price: 100}, pools, &fakeExec{}, &fakeBalances{amounts: map[string]uint64{}}, config.Defaults().Risk)

	if err := m.process(context.Background(), mustGet(t, store, "pos1")); err != nil {
		t.Fatal(err)
	}
	got := mustGet(t, store, "pos1")
	if got.LowerBoundPrice <= 0 || got.UpperBoundPrice <= got.LowerBoundPrice {
		t.Fatalf("bounds not repaired: [%g,%g]", got.LowerBoundPrice, got.UpperBoundPrice)
	}
	if got.LowerBoundPrice >= 100 || got.UpperBoundPrice <= 100 {
		t.Fatalf("bounds [%g,%g] do not straddle the current price", got.LowerBoundPrice, got.UpperBoundPrice)
	}
	if got.Status != domain.PositionStatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestWaitForFreedBalanceGivesUp(t *testing.T) {
	store := newFakeStore(monitoredPosition())
	m := testMonitor(store, &fakeFeed{price: 89}, &fakePools{}, &fakeExec{}, &fakeBalances{amounts: map[string]uint64{}}, config.Defaults().Risk)

	_, _, err := m.waitForFreedBalance(context.Background(), mustGet(t, store, "pos1"), 0, 0)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want wrapped ErrInsufficientBalance", err)
	}
	if !strings.Contains(err.Error(), "3 polls") {
		t.Fatalf("error should mention the poll budget: %v", err)
	}
}

func mustGet(t *testing.T, store *fakeStore, addr string) domain.Position {
	t.Helper()
	pos, err := store.Get(context.Background(), addr)
	if err != nil {
		t.Fatalf("get %s: %v", addr, err)
	}
	return pos
}
