package hedge

import (
	"math"
	"testing"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

func TestSize(t *testing.T) {
	const posValue = 1000.0

	tests := []struct {
		name          string
		base, current float64
		percent       float64
		wantRatio     float64
		wantDir       domain.HedgeDirection
	}{
		{"price fell 5pct half hedge", 100, 95, 50, 0.0125, domain.HedgeSell},
		{"price rose 5pct half hedge", 100, 105, 50, -0.0125, domain.HedgeBuy},
		{"price fell 10pct full hedge", 100, 90, 100, 0.05, domain.HedgeSell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sz, ok := Size(tt.base, tt.current, tt.percent, posValue, 1.0)
			if !ok {
				t.Fatal("expected a trade")
			}
			if math.Abs(sz.Ratio-tt.wantRatio) > 1e-12 {
				t.Errorf("ratio = %g, want %g", sz.Ratio, tt.wantRatio)
			}
			if sz.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", sz.Direction, tt.wantDir)
			}
			wantNotional := posValue * math.Abs(tt.wantRatio)
			if math.Abs(sz.NotionalUSD-wantNotional) > 1e-9 {
				t.Errorf("notional = %g, want %g", sz.NotionalUSD, wantNotional)
			}
		})
	}
}

func TestSizeUsesIncrementalAnchor(t *testing.T) {
	// Sizing from the last hedge at 95, not the original open at 100.
	sz, ok := Size(95, 90, 50, 1000, 1.0)
	if !ok {
		t.Fatal("expected a trade")
	}
	want := (50.0 / 100) * 0.5 * (95.0 - 90.0) / 95.0 // ~0.013158
	if math.Abs(sz.Ratio-want) > 1e-9 {
		t.Errorf("ratio = %g, want %g", sz.Ratio, want)
	}
	if sz.Direction != domain.HedgeSell {
		t.Errorf("direction = %s, want sell", sz.Direction)
	}
}

func TestSizeNoOps(t *testing.T) {
	if _, ok := Size(100, 100, 50, 1000, 1.0); ok {
		t.Error("unchanged price should not trade")
	}
	if _, ok := Size(100, 99.999, 50, 1000, 1.0); ok {
		t.Error("notional below minimum should not trade")
	}
	if _, ok := Size(0, 95, 50, 1000, 1.0); ok {
		t.Error("zero base price should not trade")
	}
	if _, ok := Size(100, 95, 50, 0, 1.0); ok {
		t.Error("zero position value should not trade")
	}
}

func TestSizeRejectsNonFiniteInputs(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name                  string
		base, current, pValue float64
	}{
		{"nan current price", 100, nan, 1000},
		{"nan base price", nan, 95, 1000},
		{"nan position value", 100, 95, nan},
		{"inf current price", 100, inf, 1000},
		{"inf position value", 100, 95, inf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sz, ok := Size(tt.base, tt.current, 50, tt.pValue, 1.0); ok {
				t.Errorf("sized a trade from non-finite input: %+v", sz)
			}
		})
	}

	// A NaN hedge percent poisons the notional even with finite prices.
	if sz, ok := Size(100, 95, nan, 1000, 1.0); ok {
		t.Errorf("sized a trade from NaN hedge percent: %+v", sz)
	}
}
