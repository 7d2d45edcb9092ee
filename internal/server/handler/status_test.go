package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

type fakeReader struct {
	positions []domain.Position
}

func (f *fakeReader) Load(context.Context) ([]domain.Position, error) {
	return f.positions, nil
}

func (f *fakeReader) Get(_ context.Context, addr string) (domain.Position, error) {
	for _, pos := range f.positions {
		if pos.PositionAddress == addr {
			return pos, nil
		}
	}
	return domain.Position{}, fmt.Errorf("position %s: %w", addr, domain.ErrNotFound)
}

type fakeLister struct{ running []string }

func (f *fakeLister) Running() []string { return f.running }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(positions []domain.Position, running []string) *StatusHandler {
	runtime := config.NewRuntime(config.Defaults().Hedge)
	return NewStatusHandler(&fakeReader{positions: positions}, &fakeLister{running: running}, runtime, "run", discard())
}

func TestStatusCountsPositions(t *testing.T) {
	h := newHandler([]domain.Position{
		{PositionAddress: "p1", Status: domain.PositionStatusActive},
		{PositionAddress: "p2", Status: domain.PositionStatusClosed},
	}, []string{"p1"})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.Status)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Mode            string   `json:"mode"`
		PositionsTotal  int      `json:"positions_total"`
		PositionsActive int      `json:"positions_active"`
		Hedging         []string `json:"hedging"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "run" || body.PositionsTotal != 2 || body.PositionsActive != 1 {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Hedging) != 1 || body.Hedging[0] != "p1" {
		t.Fatalf("hedging = %v", body.Hedging)
	}
}

func TestPositionsOmitsHistory(t *testing.T) {
	pos := domain.Position{
		PositionAddress: "p1",
		Status:          domain.PositionStatusActive,
		InitialPrice:    100,
		CurrentPrice:    98,
		HedgeHistory:    []domain.HedgeSwapRecord{{ID: "h1"}, {ID: "h2"}},
	}
	h := newHandler([]domain.Position{pos}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/positions", h.Positions)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	var body struct {
		Positions []map[string]any `json:"positions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Positions) != 1 {
		t.Fatalf("positions = %v", body.Positions)
	}
	if body.Positions[0]["hedge_count"].(float64) != 2 {
		t.Fatalf("hedge_count = %v", body.Positions[0]["hedge_count"])
	}
	if _, ok := body.Positions[0]["hedges"]; ok {
		t.Fatal("position view must not inline the hedge history")
	}
}

func TestHedgesReturnsHistory(t *testing.T) {
	pos := domain.Position{
		PositionAddress: "p1",
		HedgeHistory: []domain.HedgeSwapRecord{{
			ID:        "h1",
			Timestamp: time.Now().UTC(),
			Direction: domain.HedgeSell,
			AmountUSD: 12.5,
		}},
	}
	h := newHandler([]domain.Position{pos}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/positions/{address}/hedges", h.Hedges)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/p1/hedges", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var body struct {
		Hedges []domain.HedgeSwapRecord `json:"hedges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Hedges) != 1 || body.Hedges[0].ID != "h1" {
		t.Fatalf("hedges = %+v", body.Hedges)
	}
}

func TestHedgesUnknownPositionIs404(t *testing.T) {
	h := newHandler(nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/positions/{address}/hedges", h.Hedges)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions/nope/hedges", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
