package meteora

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

func TestUSDPriceNormalization(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		pair    APIPair
		want    float64
		wantErr bool
	}{
		{"current_price preferred", APIPair{CurrentPrice: f(100), Price: f(50)}, 100, false},
		{"price_usd second", APIPair{PriceUSD: f(99), Price: f(50)}, 99, false},
		{"usd_price third", APIPair{UsdPrice: f(98), Price: f(50)}, 98, false},
		{"bare price last", APIPair{Price: f(97)}, 97, false},
		{"zero skipped", APIPair{CurrentPrice: f(0), Price: f(96)}, 96, false},
		{"all absent", APIPair{}, 0, true},
		{"all zero", APIPair{CurrentPrice: f(0), Price: f(0)}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pair.USDPrice()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrNoPrice) {
					t.Fatalf("err = %v, want ErrNoPrice", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("price = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestGetActiveBinAndPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pair/pool1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"address":       "pool1",
			"bin_step":      25,
			"active_bin_id": -118,
			"current_price": 142.5,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	active, err := c.GetActiveBin(ctx, "pool1")
	if err != nil {
		t.Fatal(err)
	}
	if active.BinID != -118 || active.BinStep != 25 {
		t.Fatalf("active bin = %+v", active)
	}

	price, err := c.GetUSDPrice(ctx, "pool1")
	if err != nil {
		t.Fatal(err)
	}
	if price != 142.5 {
		t.Fatalf("price = %g, want 142.5", price)
	}
}

func TestGetPositionBinsMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetPositionBins(context.Background(), "pool1", "pos1", "wallet1")
	if !errors.Is(err, domain.ErrPositionNotFound) {
		t.Fatalf("err = %v, want wrapped ErrPositionNotFound", err)
	}
}

func TestBuildOpenPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/position/initialize" {
			http.NotFound(w, r)
			return
		}
		var req initializePositionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.AmountX != "1000000000" || req.RangeInterval != 20 {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(transactionResponse{
			Transaction:     "dHg=",
			PositionAddress: "newpos",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	tx, err := c.BuildOpenPosition(context.Background(), domain.OpenPositionRequest{
		PoolAddress:   "pool1",
		Owner:         "wallet1",
		RangeInterval: 20,
		AmountX:       1_000_000_000,
		AmountY:       100_000_000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Base64 != "dHg=" || tx.PositionAddress != "newpos" {
		t.Fatalf("tx = %+v", tx)
	}
}

type stubPrices struct{ price float64 }

func (s stubPrices) GetPrice(context.Context, string) (float64, error) { return s.price, nil }

func TestValuerSumsBins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIPosition{
			Address: "pos1",
			Bins: []APIBin{
				{BinID: -1, AmountX: "500000000", AmountY: "25000000"},
				{BinID: 0, AmountX: "500000000", AmountY: "25000000"},
				{BinID: 1, AmountX: "", AmountY: "not-a-number"},
			},
		})
	}))
	defer srv.Close()

	v := NewValuer(NewClient(srv.URL), stubPrices{price: 100})
	pos := &domain.Position{
		PoolAddress:     "pool1",
		PositionAddress: "pos1",
		Owner:           "wallet1",
		BaseDecimals:    9,
		QuoteDecimals:   6,
	}
	got, err := v.PositionValueUSD(context.Background(), pos)
	if err != nil {
		t.Fatal(err)
	}
	// 1 base token at $100 plus 50 quote units at par.
	if math.Abs(got-150) > 1e-9 {
		t.Fatalf("value = %g, want 150", got)
	}
}
