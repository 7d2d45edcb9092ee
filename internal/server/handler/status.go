// Package handler contains the read-only HTTP handlers of the status server.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// positionReader is the subset of the position store the handlers need.
type positionReader interface {
	Load(ctx context.Context) ([]domain.Position, error)
	Get(ctx context.Context, positionAddress string) (domain.Position, error)
}

// runnerLister reports which positions currently have a hedge runner.
type runnerLister interface {
	Running() []string
}

// StatusHandler serves health, bot status, and position views.
type StatusHandler struct {
	store   positionReader
	hedger  runnerLister // nil when hedging is off
	runtime *config.Runtime
	mode    string
	started time.Time
	log     *slog.Logger
}

func NewStatusHandler(store positionReader, hedger runnerLister, runtime *config.Runtime, mode string, log *slog.Logger) *StatusHandler {
	return &StatusHandler{
		store:   store,
		hedger:  hedger,
		runtime: runtime,
		mode:    mode,
		started: time.Now(),
		log:     log.With("component", "status_handler"),
	}
}

// Health responds with a liveness payload.
// GET /api/health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports the bot mode, uptime, position counts, and the live hedge
// parameters.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.Load(r.Context())
	if err != nil {
		h.log.Error("load positions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}

	active := 0
	for _, pos := range positions {
		if pos.Status == domain.PositionStatusActive {
			active++
		}
	}

	var hedging []string
	if h.hedger != nil {
		hedging = h.hedger.Running()
	}
	hedge := h.runtime.Hedge()

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":             h.mode,
		"uptime_seconds":   int64(time.Since(h.started).Seconds()),
		"positions_total":  len(positions),
		"positions_active": active,
		"hedging":          hedging,
		"hedge": map[string]any{
			"enabled":                         hedge.Enabled,
			"percent":                         hedge.Percent,
			"min_price_change_percent":        hedge.MinPriceChangePercent,
			"significant_accumulated_percent": hedge.SignificantAccumulatedPercent,
			"min_amount_usd":                  hedge.MinAmountUSD,
		},
	})
}

// positionView is the JSON projection of a position. Hedge history is served
// by its own endpoint.
type positionView struct {
	PoolAddress     string    `json:"pool_address"`
	PositionAddress string    `json:"position_address"`
	Status          string    `json:"status"`
	InitialPrice    float64   `json:"initial_price"`
	CurrentPrice    float64   `json:"current_price"`
	LowerBoundPrice float64   `json:"lower_bound_price"`
	UpperBoundPrice float64   `json:"upper_bound_price"`
	MinBinID        int32     `json:"min_bin_id"`
	MaxBinID        int32     `json:"max_bin_id"`
	BinStep         uint16    `json:"bin_step"`
	HedgeCount      int       `json:"hedge_count"`
	OpenedAt        time.Time `json:"opened_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Positions lists every persisted position.
// GET /api/positions
func (h *StatusHandler) Positions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.Load(r.Context())
	if err != nil {
		h.log.Error("load positions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}

	views := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, positionView{
			PoolAddress:     pos.PoolAddress,
			PositionAddress: pos.PositionAddress,
			Status:          string(pos.Status),
			InitialPrice:    pos.InitialPrice,
			CurrentPrice:    pos.CurrentPrice,
			LowerBoundPrice: pos.LowerBoundPrice,
			UpperBoundPrice: pos.UpperBoundPrice,
			MinBinID:        pos.MinBinID,
			MaxBinID:        pos.MaxBinID,
			BinStep:         pos.BinStep,
			HedgeCount:      len(pos.HedgeHistory),
			OpenedAt:        pos.OpenedAt,
			UpdatedAt:       pos.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": views})
}

// Hedges returns the retained hedge history of one position.
// GET /api/positions/{address}/hedges
func (h *StatusHandler) Hedges(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	pos, err := h.store.Get(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.log.Error("get position", "position", address, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load position")
		return
	}

	history := pos.HedgeHistory
	if history == nil {
		history = []domain.HedgeSwapRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"position_address": pos.PositionAddress,
		"hedges":           history,
	})
}
