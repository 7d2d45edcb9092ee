package hedge

import (
	"testing"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

func TestDecideFirstHedgeGatesOnInitialPrice(t *testing.T) {
	var st state

	if st.decide(100.05, 100, 0.1, 2.0) {
		t.Error("0.05% from open should not trigger the first hedge")
	}
	if !st.decide(100.2, 100, 0.1, 2.0) {
		t.Error("0.2% from open should trigger the first hedge")
	}
	// Nothing accrues before the first executed hedge.
	if st.accumulated != 0 {
		t.Errorf("accumulated = %g before first hedge, want 0", st.accumulated)
	}
}

func TestDecideTriggersOnMoveSinceLastHedge(t *testing.T) {
	var st state
	st.commit(100, 10, domain.HedgeSell)

	if st.decide(100.05, 100, 0.1, 2.0) {
		t.Error("0.05% since last hedge should not trigger")
	}
	if !st.decide(100.2, 100, 0.1, 2.0) {
		t.Error("0.2% since last hedge should trigger")
	}
}

func TestDecideNeverDoubleCountsUnchangedPrice(t *testing.T) {
	var st state
	st.commit(100, 10, domain.HedgeSell)

	st.decide(100.05, 100, 0.1, 2.0)
	accrued := st.accumulated
	if accrued <= 0 {
		t.Fatal("first sub-threshold move should accrue")
	}
	for i := 0; i < 10; i++ {
		st.decide(100.05, 100, 0.1, 2.0)
	}
	if st.accumulated != accrued {
		t.Errorf("accumulated = %g after repeated polls at same price, want %g", st.accumulated, accrued)
	}
}

func TestDecideAccumulatedMovesEventuallyTrigger(t *testing.T) {
	// Forty consecutive 0.05% moves in the same direction, each below the
	// 0.1% per-tick minimum, must trigger once accrual reaches 2%.
	var st state
	st.commit(100, 10, domain.HedgeSell)

	price := 100.0
	triggered := false
	for i := 0; i < 60; i++ {
		price *= 1.0005
		if st.decide(price, 100, 10 /* per-tick gate out of reach */, 2.0) {
			triggered = true
			break
		}
	}
	if !triggered {
		t.Fatal("accumulated sub-threshold moves never triggered a hedge")
	}
	if st.accumulated < 2.0 {
		t.Errorf("triggered with accumulated = %g, want >= 2.0", st.accumulated)
	}
}

func TestCommitResetsAccrual(t *testing.T) {
	var st state
	st.commit(100, 10, domain.HedgeSell)
	st.decide(100.05, 100, 0.1, 2.0)
	if st.accumulated == 0 {
		t.Fatal("expected accrual before commit")
	}

	st.commit(100.05, 12, domain.HedgeBuy)
	if st.accumulated != 0 {
		t.Errorf("accumulated = %g after commit, want 0", st.accumulated)
	}
	if st.lastHedgePrice != 100.05 || st.lastChecked != 100.05 {
		t.Errorf("anchors = (%g, %g), want both 100.05", st.lastHedgePrice, st.lastChecked)
	}
	if st.hedgeCount != 2 {
		t.Errorf("hedgeCount = %d, want 2", st.hedgeCount)
	}
}

func TestBasePriceUsesIncrementalAnchor(t *testing.T) {
	var st state
	if got := st.basePrice(100); got != 100 {
		t.Errorf("before first hedge basePrice = %g, want initial 100", got)
	}
	st.commit(95, 10, domain.HedgeSell)
	if got := st.basePrice(100); got != 95 {
		t.Errorf("after hedge basePrice = %g, want last hedge 95", got)
	}
}
