package config

import (
	"fmt"
	"sync"
)

// Runtime wraps the hedge parameters that may be adjusted while the bot is
// running. Reads happen on every hedge timer tick, so the snapshot path is a
// cheap RLock and struct copy.
type Runtime struct {
	mu    sync.RWMutex
	hedge HedgeConfig
}

// NewRuntime seeds the runtime parameters from the loaded configuration.
func NewRuntime(hedge HedgeConfig) *Runtime {
	return &Runtime{hedge: hedge}
}

// Hedge returns the current hedge parameters.
func (r *Runtime) Hedge() HedgeConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hedge
}

// UpdateHedge replaces the hedge parameters after validating them. Running
// hedge timers pick up the new values on their next tick.
func (r *Runtime) UpdateHedge(h HedgeConfig) error {
	if h.Enabled {
		if h.Percent <= 0 || h.Percent > 100 {
			return fmt.Errorf("hedge: percent must be in (0, 100], got %g", h.Percent)
		}
		if h.SlippageBps < 0 {
			return fmt.Errorf("hedge: slippage_bps must be >= 0")
		}
		if h.MinPriceChangePercent <= 0 {
			return fmt.Errorf("hedge: min_price_change_percent must be > 0")
		}
		if h.SignificantAccumulatedPercent <= 0 {
			return fmt.Errorf("hedge: significant_accumulated_percent must be > 0")
		}
	}

	r.mu.Lock()
	r.hedge = h
	r.mu.Unlock()
	return nil
}
