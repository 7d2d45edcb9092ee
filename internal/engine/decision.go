// Package engine contains the per-position decision logic and the monitor
// loop that drives it across all active positions.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Decider evaluates one position against the current price and the risk
// thresholds, producing the action the monitor loop should execute.
type Decider struct {
	risk config.RiskConfig
	log  *slog.Logger
}

func NewDecider(risk config.RiskConfig, log *slog.Logger) *Decider {
	return &Decider{risk: risk, log: log.With("component", "decider")}
}

// Evaluate returns the decision for pos at currentPrice. hedgeDue lets an
// out-of-band caller request the hedge branch; the running system hedges on
// its own timers, so the monitor loop always passes false.
//
// A price at or below the lower bound always yields a close-and-replace,
// never a keep.
func (d *Decider) Evaluate(pos *domain.Position, currentPrice float64, hedgeDue bool) domain.Decision {
	changePct := 0.0
	if pos.InitialPrice > 0 {
		changePct = (currentPrice - pos.InitialPrice) / pos.InitialPrice * 100
	}

	if currentPrice <= pos.LowerBoundPrice {
		return domain.Decision{
			Action:         domain.ActionOpenNew,
			Reason:         fmt.Sprintf("price %.4f at or below lower bound %.4f", currentPrice, pos.LowerBoundPrice),
			ShouldCloseOld: true,
			NewPosition:    d.replacement(pos),
		}
	}

	if d.risk.StopLossPercent > 0 && changePct <= -d.risk.StopLossPercent {
		return domain.Decision{
			Action: domain.ActionClose,
			Reason: fmt.Sprintf("stop loss: %.2f%% below open price", -changePct),
		}
	}

	if currentPrice >= pos.UpperBoundPrice {
		if d.risk.TakeProfitPercent > 0 && changePct >= d.risk.TakeProfitPercent {
			return domain.Decision{
				Action:         domain.ActionOpenNew,
				Reason:         fmt.Sprintf("price %.4f above upper bound with take profit %.2f%% satisfied", currentPrice, changePct),
				ShouldCloseOld: true,
				NewPosition:    d.replacement(pos),
			}
		}
		// Above range but take profit unmet: open a successor around the new
		// price and let the old one keep earning until it is worth closing.
		return domain.Decision{
			Action:         domain.ActionOpenNew,
			Reason:         fmt.Sprintf("price %.4f above upper bound %.4f, take profit not reached", currentPrice, pos.UpperBoundPrice),
			ShouldCloseOld: false,
			NewPosition:    d.replacement(pos),
		}
	}

	// Fee check: once the price has crossed a configured fraction of the
	// distance down to the lower bound, close early to bank accrued fees
	// instead of riding the range all the way out.
	if d.risk.FeeCheckPercent > 0 && pos.InitialPrice > pos.LowerBoundPrice {
		threshold := pos.InitialPrice - d.risk.FeeCheckPercent/100*(pos.InitialPrice-pos.LowerBoundPrice)
		if currentPrice <= threshold {
			return domain.Decision{
				Action: domain.ActionClose,
				Reason: fmt.Sprintf("fee check: price %.4f crossed %.0f%% of the distance to the lower bound", currentPrice, d.risk.FeeCheckPercent),
			}
		}
	}

	if hedgeDue {
		return domain.Decision{Action: domain.ActionHedge, Reason: "hedge due"}
	}

	if currentPrice == pos.CurrentPrice {
		return domain.Decision{Action: domain.ActionNone, Reason: "price unchanged"}
	}
	return domain.Decision{Action: domain.ActionKeep, Reason: "price in range"}
}

func (d *Decider) replacement(pos *domain.Position) *domain.NewPositionParams {
	return &domain.NewPositionParams{
		PoolAddress:   pos.PoolAddress,
		RangeInterval: pos.RangeInterval(),
	}
}
