// Package hedge sizes and schedules the mirror hedges that keep a range
// position delta-neutral as the pool price drifts.
package hedge

import (
	"math"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Sizing is the outcome of a hedge-size calculation.
type Sizing struct {
	Direction domain.HedgeDirection
	// Ratio is the signed fraction of the position value to trade. Negative
	// when the price rose (buy side).
	Ratio float64
	// NotionalUSD is the absolute trade size in USD.
	NotionalUSD float64
	// PriceChangePct is the move from the base price, in percent, signed.
	PriceChangePct float64
}

// Size computes the hedge trade for a move from basePrice to currentPrice.
// basePrice is the incremental anchor: the price at the last executed hedge,
// or the position's initial price when none has executed yet. hedgePercent is
// 0-100; the additional factor of one half matches the delta of a symmetric
// liquidity range, so hedging "100%" offsets half the nominal move.
//
// The second return value is false when no trade should happen: the price did
// not move, inputs are degenerate, or the notional lands below minNotionalUSD.
func Size(basePrice, currentPrice, hedgePercent, positionValueUSD, minNotionalUSD float64) (Sizing, bool) {
	// NaN compares false against every gate below, so non-finite inputs are
	// rejected up front rather than sized into an undefined trade.
	if !isFinite(basePrice) || !isFinite(currentPrice) || !isFinite(positionValueUSD) {
		return Sizing{}, false
	}
	if basePrice <= 0 || currentPrice <= 0 || positionValueUSD <= 0 {
		return Sizing{}, false
	}

	priceChange := (basePrice - currentPrice) / basePrice
	if priceChange == 0 {
		return Sizing{}, false
	}

	ratio := (hedgePercent / 100) * 0.5 * priceChange
	notional := positionValueUSD * math.Abs(ratio)
	if !isFinite(notional) || notional < minNotionalUSD {
		return Sizing{}, false
	}

	dir := domain.HedgeSell // price fell: sell base exposure
	if priceChange < 0 {
		dir = domain.HedgeBuy // price rose: buy base back
	}

	return Sizing{
		Direction:      dir,
		Ratio:          ratio,
		NotionalUSD:    notional,
		PriceChangePct: -priceChange * 100,
	}, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
