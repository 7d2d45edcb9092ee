package hedge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// PriceGetter is the slice of the price feed the scheduler needs.
type PriceGetter interface {
	GetPrice(ctx context.Context, poolAddress string) (float64, error)
}

// Notifier is the slice of the notification dispatcher the scheduler needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps bundles the collaborators a Supervisor injects into every runner.
type Deps struct {
	Store    domain.PositionStore
	Feed     PriceGetter
	Valuer   domain.PositionValuer
	Executor *Executor
	// Archiver receives evicted history records. Optional.
	Archiver domain.HistoryArchiver
	Runtime  *config.Runtime
	Interval time.Duration
	// Notifier is optional.
	Notifier Notifier
	Log      *slog.Logger
}

// Supervisor owns one hedge runner per active position. Runners are inserted
// and removed only through Start/Stop, so the at-most-one-per-position
// invariant is enforced in exactly one place.
type Supervisor struct {
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex
	runners map[string]*runner
	wg      sync.WaitGroup
}

func NewSupervisor(deps Deps) *Supervisor {
	return &Supervisor{
		deps:    deps,
		log:     deps.Log.With("component", "hedge_supervisor"),
		runners: make(map[string]*runner),
	}
}

// Start arms a hedge runner for the position: one immediate attempt, then a
// periodic timer. Any prior runner for the same position address is cancelled
// first. A no-op when hedging is disabled in the runtime configuration.
func (s *Supervisor) Start(ctx context.Context, pos domain.Position) {
	if !s.deps.Runtime.Hedge().Enabled {
		return
	}

	r := &runner{
		sup:  s,
		addr: pos.PositionAddress,
		done: make(chan struct{}),
		log:  s.log.With("position", pos.PositionAddress),
	}
	// A restart loses the accumulator but not the last executed hedge: seed
	// the anchor from the persisted history so sizing stays incremental.
	if n := len(pos.HedgeHistory); n > 0 {
		last := pos.HedgeHistory[n-1]
		r.st.lastHedgePrice = last.Price
		r.st.lastHedgeAmountUSD = last.AmountUSD
		r.st.lastHedgeDirection = last.Direction
		r.st.hedgeCount = n
		r.st.lastChecked = last.Price
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	s.mu.Lock()
	prev := s.runners[pos.PositionAddress]
	s.runners[pos.PositionAddress] = r
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(r.done)
		// Let a replaced runner's in-flight tick finish before the first
		// attempt, so two hedges for one position never interleave.
		if prev != nil {
			prev.cancel()
			select {
			case <-prev.done:
			case <-runCtx.Done():
				return
			}
		}
		r.run(runCtx)
	}()
}

// Stop cancels the runner for a position and discards its hedge state.
// Idempotent.
func (s *Supervisor) Stop(positionAddress string) {
	s.mu.Lock()
	r, ok := s.runners[positionAddress]
	if ok {
		delete(s.runners, positionAddress)
	}
	s.mu.Unlock()
	if ok {
		r.cancel()
	}
}

// StopAll cancels every runner and waits for them to exit.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	for addr, r := range s.runners {
		r.cancel()
		delete(s.runners, addr)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Running returns the position addresses with an armed runner, sorted.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	addrs := make([]string, 0, len(s.runners))
	for addr := range s.runners {
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()
	sort.Strings(addrs)
	return addrs
}

// remove drops a runner that stopped itself, but only if it is still the
// registered runner for that address (Start may have replaced it).
func (s *Supervisor) remove(addr string, r *runner) {
	s.mu.Lock()
	if cur, ok := s.runners[addr]; ok && cur == r {
		delete(s.runners, addr)
	}
	s.mu.Unlock()
}

// runner drives the hedge timer for one position.
type runner struct {
	sup    *Supervisor
	addr   string
	st     state
	cancel context.CancelFunc
	// done is closed when the runner's goroutine exits; a replacement waits
	// on it before its first tick.
	done chan struct{}
	log  *slog.Logger
}

func (r *runner) run(ctx context.Context) {
	defer r.cancel()

	// Immediate attempt, then the periodic timer.
	if stop := r.tick(ctx); stop {
		r.sup.remove(r.addr, r)
		return
	}

	ticker := time.NewTicker(r.sup.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop := r.tick(ctx); stop {
				r.sup.remove(r.addr, r)
				return
			}
		}
	}
}

// tick evaluates and possibly executes one hedge. It returns true when the
// runner should stop permanently: the position is gone or no longer active.
// Transient errors leave the hedge state untouched so the next tick retries
// with the same anchor and accumulator.
func (r *runner) tick(ctx context.Context) (stop bool) {
	deps := r.sup.deps

	pos, err := deps.Store.Get(ctx, r.addr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPositionNotFound) {
			r.log.Info("position gone, stopping hedge runner")
			return true
		}
		r.log.Warn("position read failed, retrying next tick", "error", err)
		return false
	}
	if pos.Status != domain.PositionStatusActive {
		r.log.Info("position no longer active, stopping hedge runner", "status", pos.Status)
		return true
	}

	hcfg := deps.Runtime.Hedge()
	if !hcfg.Enabled {
		return false
	}

	price, err := deps.Feed.GetPrice(ctx, pos.PoolAddress)
	if err != nil {
		r.log.Warn("price unavailable, retrying next tick", "error", err)
		return false
	}

	if !r.st.decide(price, pos.InitialPrice, hcfg.MinPriceChangePercent, hcfg.SignificantAccumulatedPercent) {
		return false
	}

	value, err := deps.Valuer.PositionValueUSD(ctx, &pos)
	if err != nil {
		if errors.Is(err, domain.ErrPositionNotFound) {
			r.log.Info("position closed externally, stopping hedge runner")
			return true
		}
		r.log.Warn("position valuation failed, retrying next tick", "error", err)
		return false
	}

	sz, ok := Size(r.st.basePrice(pos.InitialPrice), price, hcfg.Percent, value, hcfg.MinAmountUSD)
	if !ok {
		r.log.Debug("hedge below minimum notional, skipping", "price", price, "position_value_usd", value)
		return false
	}

	rec, err := deps.Executor.Execute(ctx, &pos, sz, price, hcfg.SlippageBps)
	if err != nil {
		if errors.Is(err, domain.ErrPositionNotFound) {
			r.log.Info("position closed externally during hedge, stopping runner")
			return true
		}
		r.log.Warn("hedge attempt failed, state unchanged", "error", err)
		return false
	}

	// The monitor may have closed or replaced the position while the swap was
	// in flight. Re-read before persisting so the stale pre-hedge copy never
	// overwrites a terminal status. The swap itself is already confirmed, so
	// the in-memory anchor commits on every path.
	latest, getErr := deps.Store.Get(ctx, r.addr)
	if getErr != nil {
		r.st.commit(price, sz.NotionalUSD, sz.Direction)
		if errors.Is(getErr, domain.ErrNotFound) || errors.Is(getErr, domain.ErrPositionNotFound) {
			r.log.Warn("position removed while hedge was in flight, record not persisted",
				"signature", rec.Signature)
			return true
		}
		r.log.Error("position re-read failed after confirmed hedge, record not persisted",
			"signature", rec.Signature, "error", getErr)
		return false
	}
	if latest.Status != domain.PositionStatusActive {
		stop = true
		r.log.Info("position closed while hedge was in flight, stopping runner",
			"status", latest.Status, "signature", rec.Signature)
	} else {
		latest.CurrentPrice = price
	}

	evicted := latest.AppendHedge(rec)
	latest.UpdatedAt = time.Now().UTC()
	if err := deps.Store.Save(ctx, latest); err != nil {
		r.log.Error("position save failed after confirmed hedge", "signature", rec.Signature, "error", err)
	}
	if deps.Archiver != nil && len(evicted) > 0 {
		if err := deps.Archiver.Archive(ctx, latest.PositionAddress, evicted); err != nil {
			r.log.Warn("history archive failed", "records", len(evicted), "error", err)
		}
	}

	r.st.commit(price, sz.NotionalUSD, sz.Direction)

	if deps.Notifier != nil {
		_ = deps.Notifier.Notify(ctx, "hedge_executed", "Hedge executed",
			fmt.Sprintf("%s %s $%.2f at %.4f (%+.2f%% from open), tx %s",
				pos.PoolAddress, rec.Direction, rec.AmountUSD, rec.Price, rec.ChangeFromInitialPct, rec.Signature))
	}
	return stop
}
