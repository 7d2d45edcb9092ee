package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/bounds"
	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
	"github.com/alanyoungcy/dlmmbot/internal/hedge"
)

// MonitorDeps bundles everything the monitor loop orchestrates.
type MonitorDeps struct {
	Store     domain.PositionStore
	Feed      hedge.PriceGetter
	Decider   *Decider
	Pools     domain.PoolDataProvider
	Liquidity domain.LiquidityManager
	Exec      domain.ExecutionService
	Balances  domain.BalanceReader
	Bounds    *bounds.Calculator
	Locks     domain.LockManager
	Cooldown  *Cooldown
	// Hedger is nil when hedging is disabled or the bot runs read-only.
	Hedger *hedge.Supervisor
	// Notifier is optional.
	Notifier hedge.Notifier
	Cfg      config.MonitoringConfig
	Log      *slog.Logger
	// ReadOnly logs decisions without executing them (monitor mode).
	ReadOnly bool
}

// Monitor walks all active positions once per interval, executes the decision
// for each, and keeps hedge runners in sync with the position set.
type Monitor struct {
	deps MonitorDeps
	log  *slog.Logger
	// scanning guards against a slow scan overlapping the next tick.
	scanning atomic.Bool
}

// lockTTL bounds how long a position lock can outlive a crashed holder. The
// close/wait/reopen sequence is the longest critical section.
const lockTTL = 5 * time.Minute

func NewMonitor(deps MonitorDeps) *Monitor {
	return &Monitor{deps: deps, log: deps.Log.With("component", "monitor")}
}

// Run blocks until ctx is cancelled, scanning at the configured interval. It
// arms hedge runners for already-persisted active positions before the first
// scan so a restart resumes hedging without waiting a full interval.
func (m *Monitor) Run(ctx context.Context) error {
	if positions, err := m.deps.Store.Load(ctx); err != nil {
		m.log.Warn("initial position load failed", "error", err)
	} else {
		for _, pos := range positions {
			if pos.Status == domain.PositionStatusActive {
				m.ensureHedging(ctx, pos)
			}
		}
	}

	ticker := time.NewTicker(m.deps.Cfg.Interval.Duration)
	defer ticker.Stop()

	m.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			if m.deps.Hedger != nil {
				m.deps.Hedger.StopAll()
			}
			return ctx.Err()
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

// scan processes every active position sequentially. If the previous scan is
// still in flight the tick is skipped rather than queued.
func (m *Monitor) scan(ctx context.Context) {
	if !m.scanning.CompareAndSwap(false, true) {
		m.log.Warn("previous scan still running, skipping tick")
		return
	}
	defer m.scanning.Store(false)

	m.deps.Cooldown.Cleanup()

	positions, err := m.deps.Store.Load(ctx)
	if err != nil {
		m.log.Error("position load failed", "error", err)
		return
	}

	for _, pos := range positions {
		if pos.Status != domain.PositionStatusActive {
			continue
		}
		if err := m.process(ctx, pos); err != nil {
			// One position's failure never blocks the rest of the scan.
			m.log.Error("position processing failed",
				"position", pos.PositionAddress, "pool", pos.PoolAddress, "error", err)
			m.notify(ctx, "error", "Position processing failed",
				fmt.Sprintf("%s: %v", pos.PositionAddress, err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Monitor) process(ctx context.Context, pos domain.Position) error {
	unlock, err := m.deps.Locks.Acquire(ctx, pos.PositionAddress, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			m.log.Debug("position locked elsewhere, skipping", "position", pos.PositionAddress)
			return nil
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer unlock()

	// Reconcile with chain state first: a position closed out-of-band is
	// terminal regardless of what the price says.
	if _, err := m.deps.Pools.GetPositionBins(ctx, pos.PoolAddress, pos.PositionAddress, pos.Owner); err != nil {
		if errors.Is(err, domain.ErrPositionNotFound) {
			return m.markClosedExternally(ctx, pos)
		}
		m.log.Warn("position bin read failed, continuing on price alone",
			"position", pos.PositionAddress, "error", err)
	}

	price, err := m.deps.Feed.GetPrice(ctx, pos.PoolAddress)
	if err != nil {
		// Retryable: next tick gets another chance.
		m.log.Warn("price unavailable, skipping position this tick",
			"position", pos.PositionAddress, "error", err)
		return nil
	}

	if pos.LowerBoundPrice <= 0 || pos.UpperBoundPrice <= 0 {
		m.repairBounds(ctx, &pos, price)
	}

	decision := m.deps.Decider.Evaluate(&pos, price, false)
	lvl := slog.LevelInfo
	if decision.Action == domain.ActionNone {
		lvl = slog.LevelDebug
	}
	m.log.Log(ctx, lvl, "decision",
		"position", pos.PositionAddress, "action", decision.Action,
		"reason", decision.Reason, "price", price)

	pos.CurrentPrice = price
	pos.UpdatedAt = time.Now().UTC()
	if err := m.deps.Store.Save(ctx, pos); err != nil {
		return fmt.Errorf("save position: %w", err)
	}

	if m.deps.ReadOnly {
		return nil
	}

	switch decision.Action {
	case domain.ActionKeep, domain.ActionNone, domain.ActionHedge:
		m.ensureHedging(ctx, pos)
		return nil
	case domain.ActionClose:
		return m.closePosition(ctx, &pos, decision.Reason)
	case domain.ActionOpenNew:
		if decision.ShouldCloseOld {
			return m.closeAndReplace(ctx, pos, price, decision.NewPosition)
		}
		return m.openAdditional(ctx, pos, price, decision.NewPosition)
	default:
		return fmt.Errorf("unknown action %q", decision.Action)
	}
}

// repairBounds fills in missing USD bounds for a position adopted without
// them, such as a row imported from an older schema. The exact path needs the
// pool's active bin; when that read fails the midpoint approximation over the
// stored bin range is close enough to make decisions against.
func (m *Monitor) repairBounds(ctx context.Context, pos *domain.Position, price float64) {
	var b bounds.Bounds
	active, err := m.deps.Pools.GetActiveBin(ctx, pos.PoolAddress)
	if err == nil {
		b, err = m.deps.Bounds.USD(pos.MinBinID, pos.MaxBinID, active.BinID, active.BinStep, price)
	} else {
		b, err = m.deps.Bounds.USDFallback(pos.MinBinID, pos.MaxBinID, pos.BinStep, price)
	}
	if err != nil {
		m.log.Warn("bound repair failed", "position", pos.PositionAddress, "error", err)
		return
	}
	pos.LowerBoundPrice = b.Lower
	pos.UpperBoundPrice = b.Upper
	m.log.Info("repaired missing price bounds",
		"position", pos.PositionAddress, "lower", b.Lower, "upper", b.Upper)
}

// ensureHedging arms a hedge runner for the position if none is running.
// Start would reset the in-memory accumulator, so an armed runner is left
// alone.
func (m *Monitor) ensureHedging(ctx context.Context, pos domain.Position) {
	if m.deps.Hedger == nil {
		return
	}
	if slices.Contains(m.deps.Hedger.Running(), pos.PositionAddress) {
		return
	}
	m.deps.Hedger.Start(ctx, pos)
}

func (m *Monitor) markClosedExternally(ctx context.Context, pos domain.Position) error {
	m.log.Info("position closed externally", "position", pos.PositionAddress)
	if m.deps.Hedger != nil {
		m.deps.Hedger.Stop(pos.PositionAddress)
	}
	pos.Status = domain.PositionStatusClosed
	pos.UpdatedAt = time.Now().UTC()
	if err := m.deps.Store.Save(ctx, pos); err != nil {
		return fmt.Errorf("save externally closed position: %w", err)
	}
	m.notify(ctx, "position_closed", "Position closed externally", pos.PositionAddress)
	return nil
}

func (m *Monitor) closePosition(ctx context.Context, pos *domain.Position, reason string) error {
	tx, err := m.deps.Liquidity.BuildClosePosition(ctx, pos.PoolAddress, pos.PositionAddress, pos.Owner)
	if err != nil {
		return fmt.Errorf("build close: %w", err)
	}
	sig, err := m.deps.Exec.Submit(ctx, tx)
	if err != nil {
		var simErr *domain.SimulationError
		if errors.As(err, &simErr) {
			m.log.Error("close transaction failed simulation",
				"position", pos.PositionAddress, "logs", simErr.Logs)
		}
		return fmt.Errorf("submit close: %w", err)
	}

	if m.deps.Hedger != nil {
		m.deps.Hedger.Stop(pos.PositionAddress)
	}
	pos.Status = domain.PositionStatusClosed
	pos.UpdatedAt = time.Now().UTC()
	if err := m.deps.Store.Save(ctx, *pos); err != nil {
		return fmt.Errorf("save closed position: %w", err)
	}

	m.log.Info("position closed",
		"position", pos.PositionAddress, "reason", reason, "signature", sig)
	m.notify(ctx, "position_closed", "Position closed",
		fmt.Sprintf("%s (%s), tx %s", pos.PositionAddress, reason, sig))
	return nil
}

// closeAndReplace runs the two-phase sequence: close and confirm, wait for
// the freed tokens to land in the wallet, then open the successor with the
// minimum of the requested and observed amounts.
func (m *Monitor) closeAndReplace(ctx context.Context, pos domain.Position, price float64, params *domain.NewPositionParams) error {
	baseX, err := m.deps.Balances.GetBalance(ctx, pos.Owner, pos.BaseMint)
	if err != nil {
		return fmt.Errorf("read base balance: %w", err)
	}
	baseY, err := m.deps.Balances.GetBalance(ctx, pos.Owner, pos.QuoteMint)
	if err != nil {
		return fmt.Errorf("read quote balance: %w", err)
	}

	if err := m.closePosition(ctx, &pos, "replaced"); err != nil {
		return err
	}

	amountX, amountY, err := m.waitForFreedBalance(ctx, pos, baseX, baseY)
	if err != nil {
		return err
	}

	return m.openPosition(ctx, pos, params, price, amountX, amountY)
}

// waitForFreedBalance polls the wallet until a balance rises above its
// pre-close baseline, then returns the amounts to fund the successor with:
// the requested funding snapshot capped by what is actually available.
func (m *Monitor) waitForFreedBalance(ctx context.Context, pos domain.Position, baseX, baseY uint64) (uint64, uint64, error) {
	var observedX, observedY uint64
	for attempt := 1; attempt <= m.deps.Cfg.BalancePollAttempts; attempt++ {
		var err error
		observedX, err = m.deps.Balances.GetBalance(ctx, pos.Owner, pos.BaseMint)
		if err == nil {
			observedY, err = m.deps.Balances.GetBalance(ctx, pos.Owner, pos.QuoteMint)
		}
		if err != nil {
			m.log.Warn("balance poll failed", "attempt", attempt, "error", err)
		} else if observedX > baseX || observedY > baseY {
			return min(pos.InitialAmountX, observedX), min(pos.InitialAmountY, observedY), nil
		}

		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(m.deps.Cfg.BalancePollInterval.Duration):
		}
	}
	return 0, 0, fmt.Errorf("freed tokens not observed after %d polls: %w",
		m.deps.Cfg.BalancePollAttempts, domain.ErrInsufficientBalance)
}

// openAdditional opens a successor without closing the old position. The
// wallet must already hold the funding; a shortfall fails fast and starts the
// cool-down window instead of waiting.
func (m *Monitor) openAdditional(ctx context.Context, pos domain.Position, price float64, params *domain.NewPositionParams) error {
	if !m.deps.Cooldown.Allowed(pos.PositionAddress) {
		m.log.Debug("open suppressed by balance cool-down", "position", pos.PositionAddress)
		return nil
	}

	haveX, err := m.deps.Balances.GetBalance(ctx, pos.Owner, pos.BaseMint)
	if err != nil {
		return fmt.Errorf("read base balance: %w", err)
	}
	haveY, err := m.deps.Balances.GetBalance(ctx, pos.Owner, pos.QuoteMint)
	if err != nil {
		return fmt.Errorf("read quote balance: %w", err)
	}
	if haveX < pos.InitialAmountX || haveY < pos.InitialAmountY {
		m.deps.Cooldown.MarkFailure(pos.PositionAddress)
		return fmt.Errorf("wallet holds %d/%d base and %d/%d quote: %w",
			haveX, pos.InitialAmountX, haveY, pos.InitialAmountY, domain.ErrInsufficientBalance)
	}

	return m.openPosition(ctx, pos, params, price, pos.InitialAmountX, pos.InitialAmountY)
}

// openPosition opens a range of params.RangeInterval bins on each side of the
// pool's active bin and persists the resulting position.
func (m *Monitor) openPosition(ctx context.Context, template domain.Position, params *domain.NewPositionParams, price float64, amountX, amountY uint64) error {
	if params == nil {
		return errors.New("open requested without parameters")
	}

	active, err := m.deps.Pools.GetActiveBin(ctx, params.PoolAddress)
	if err != nil {
		return fmt.Errorf("read active bin: %w", err)
	}
	minBin := active.BinID - params.RangeInterval
	maxBin := active.BinID + params.RangeInterval
	b, err := m.deps.Bounds.USD(minBin, maxBin, active.BinID, active.BinStep, price)
	if err != nil {
		return fmt.Errorf("compute bounds: %w", err)
	}

	tx, err := m.deps.Liquidity.BuildOpenPosition(ctx, domain.OpenPositionRequest{
		PoolAddress:   params.PoolAddress,
		Owner:         template.Owner,
		RangeInterval: params.RangeInterval,
		AmountX:       amountX,
		AmountY:       amountY,
	})
	if err != nil {
		return fmt.Errorf("build open: %w", err)
	}
	sig, err := m.deps.Exec.Submit(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			m.deps.Cooldown.MarkFailure(template.PositionAddress)
		}
		var simErr *domain.SimulationError
		if errors.As(err, &simErr) {
			m.log.Error("open transaction failed simulation",
				"pool", params.PoolAddress, "logs", simErr.Logs)
		}
		return fmt.Errorf("submit open: %w", err)
	}

	now := time.Now().UTC()
	newPos := domain.Position{
		PoolAddress:     params.PoolAddress,
		PositionAddress: tx.PositionAddress,
		Owner:           template.Owner,
		BaseMint:        template.BaseMint,
		QuoteMint:       template.QuoteMint,
		BaseDecimals:    template.BaseDecimals,
		QuoteDecimals:   template.QuoteDecimals,
		InitialPrice:    price,
		CurrentPrice:    price,
		LowerBoundPrice: b.Lower,
		UpperBoundPrice: b.Upper,
		MinBinID:        minBin,
		MaxBinID:        maxBin,
		BinStep:         active.BinStep,
		Status:          domain.PositionStatusActive,
		InitialAmountX:  amountX,
		InitialAmountY:  amountY,
		OpenedAt:        now,
		UpdatedAt:       now,
	}
	if err := m.deps.Store.Save(ctx, newPos); err != nil {
		return fmt.Errorf("save new position: %w", err)
	}
	m.deps.Cooldown.Clear(template.PositionAddress)

	m.log.Info("position opened",
		"position", newPos.PositionAddress, "pool", newPos.PoolAddress,
		"bins", fmt.Sprintf("[%d,%d]", minBin, maxBin),
		"bounds", fmt.Sprintf("[%.4f,%.4f]", b.Lower, b.Upper),
		"signature", sig)
	m.notify(ctx, "position_opened", "Position opened",
		fmt.Sprintf("%s on %s, range [%.4f, %.4f], tx %s",
			newPos.PositionAddress, newPos.PoolAddress, b.Lower, b.Upper, sig))

	m.ensureHedging(ctx, newPos)
	return nil
}

func (m *Monitor) notify(ctx context.Context, event, title, message string) {
	if m.deps.Notifier == nil {
		return
	}
	_ = m.deps.Notifier.Notify(ctx, event, title, message)
}
