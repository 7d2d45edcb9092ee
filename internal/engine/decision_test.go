package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rangePosition() domain.Position {
	return domain.Position{
		PoolAddress:     "pool1",
		PositionAddress: "pos1",
		InitialPrice:    100,
		CurrentPrice:    100,
		LowerBoundPrice: 90,
		UpperBoundPrice: 110,
		MinBinID:        -20,
		MaxBinID:        19,
	}
}

func TestEvaluate(t *testing.T) {
	defaultRisk := config.RiskConfig{StopLossPercent: 5, TakeProfitPercent: 3, FeeCheckPercent: 80}

	tests := []struct {
		name          string
		risk          config.RiskConfig
		price         float64
		hedgeDue      bool
		wantAction    domain.Action
		wantCloseOld  bool
		wantNewParams bool
	}{
		{
			name: "at lower bound closes and replaces",
			risk: defaultRisk, price: 90,
			wantAction: domain.ActionOpenNew, wantCloseOld: true, wantNewParams: true,
		},
		{
			name: "below lower bound closes and replaces",
			risk: defaultRisk, price: 85,
			wantAction: domain.ActionOpenNew, wantCloseOld: true, wantNewParams: true,
		},
		{
			name: "stop loss inside range closes",
			risk: config.RiskConfig{StopLossPercent: 5, FeeCheckPercent: 0}, price: 94,
			wantAction: domain.ActionClose,
		},
		{
			name: "upper bound with take profit satisfied replaces",
			risk: defaultRisk, price: 110,
			wantAction: domain.ActionOpenNew, wantCloseOld: true, wantNewParams: true,
		},
		{
			name: "upper bound without take profit opens successor only",
			risk: config.RiskConfig{StopLossPercent: 5, TakeProfitPercent: 50}, price: 110,
			wantAction: domain.ActionOpenNew, wantCloseOld: false, wantNewParams: true,
		},
		{
			name: "fee check closes before the lower bound is hit",
			risk: config.RiskConfig{StopLossPercent: 50, FeeCheckPercent: 80}, price: 91.5,
			wantAction: domain.ActionClose,
		},
		{
			name: "in range unchanged price is none",
			risk: defaultRisk, price: 100,
			wantAction: domain.ActionNone,
		},
		{
			name: "in range moved price is keep",
			risk: defaultRisk, price: 101,
			wantAction: domain.ActionKeep,
		},
		{
			name: "hedge due in range",
			risk: defaultRisk, price: 101, hedgeDue: true,
			wantAction: domain.ActionHedge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecider(tt.risk, testLog())
			pos := rangePosition()
			got := d.Evaluate(&pos, tt.price, tt.hedgeDue)
			if got.Action != tt.wantAction {
				t.Fatalf("action = %s (%s), want %s", got.Action, got.Reason, tt.wantAction)
			}
			if got.ShouldCloseOld != tt.wantCloseOld {
				t.Errorf("shouldCloseOld = %v, want %v", got.ShouldCloseOld, tt.wantCloseOld)
			}
			if tt.wantNewParams {
				if got.NewPosition == nil {
					t.Fatal("missing replacement params")
				}
				if got.NewPosition.PoolAddress != "pool1" {
					t.Errorf("pool = %s", got.NewPosition.PoolAddress)
				}
				if got.NewPosition.RangeInterval != 20 {
					t.Errorf("rangeInterval = %d, want (19-(-20)+1)/2 = 20", got.NewPosition.RangeInterval)
				}
			}
		})
	}
}

func TestEvaluateLowerBoundNeverKeeps(t *testing.T) {
	d := NewDecider(config.RiskConfig{}, testLog())
	for _, price := range []float64{90, 89.999, 50, 0.01} {
		pos := rangePosition()
		got := d.Evaluate(&pos, price, false)
		if got.Action == domain.ActionKeep || got.Action == domain.ActionNone {
			t.Errorf("price %g at/below lower bound yielded %s", price, got.Action)
		}
		if got.Action == domain.ActionOpenNew && !got.ShouldCloseOld {
			t.Errorf("price %g: open_new must close the old position", price)
		}
	}
}
