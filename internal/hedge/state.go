package hedge

import (
	"math"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// state is the per-position incremental-hedge bookkeeping. It lives only in
// memory: a restart rebuilds it from the position's persisted lastHedgePrice
// equivalent (the most recent history record) with the accumulator at zero.
type state struct {
	lastHedgePrice     float64
	lastHedgeAmountUSD float64
	lastHedgeDirection domain.HedgeDirection
	hedgeCount         int
	// accumulated is percentage points accrued from sub-threshold moves
	// since the last executed hedge.
	accumulated float64
	// lastChecked anchors accrual so an unchanged price never re-accrues on
	// repeated polls. Distinct from lastHedgePrice.
	lastChecked float64
}

// accrualFloor is the minimum per-tick move, in percentage points, that is
// added to the accumulator. Below it the price is treated as unchanged.
const accrualFloor = 0.001

// decide updates accrual bookkeeping for this tick and reports whether a
// hedge should be attempted. It never commits a hedge: resets of the
// accumulator and anchor happen in commit, only after a successful execution,
// so a failed attempt retries with identical state on the next tick.
func (st *state) decide(currentPrice, initialPrice, minChangePct, significantPct float64) bool {
	if currentPrice <= 0 {
		return false
	}

	// Before any executed hedge the only gate is the move from the open
	// price. Accrual starts once an anchor exists.
	if st.hedgeCount == 0 {
		if initialPrice <= 0 {
			return false
		}
		return math.Abs(currentPrice-initialPrice) / initialPrice * 100 >= minChangePct
	}

	deltaLast := math.Abs(currentPrice-st.lastHedgePrice) / st.lastHedgePrice * 100
	deltaCheck := math.Abs(currentPrice-st.lastChecked) / st.lastChecked * 100
	if deltaCheck > accrualFloor {
		st.accumulated += deltaCheck
		st.lastChecked = currentPrice
	}

	if deltaLast >= minChangePct {
		return true
	}
	return st.accumulated >= significantPct
}

// basePrice returns the sizing anchor: the last executed hedge price, or the
// position's initial price before the first hedge.
func (st *state) basePrice(initialPrice float64) float64 {
	if st.hedgeCount == 0 {
		return initialPrice
	}
	return st.lastHedgePrice
}

// commit records a successfully executed hedge and resets accrual.
func (st *state) commit(currentPrice, amountUSD float64, dir domain.HedgeDirection) {
	st.lastHedgePrice = currentPrice
	st.lastHedgeAmountUSD = amountUSD
	st.lastHedgeDirection = dir
	st.hedgeCount++
	st.accumulated = 0
	st.lastChecked = currentPrice
}
