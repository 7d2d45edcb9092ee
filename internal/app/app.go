// Package app owns the application lifecycle: it wires the stores, caches,
// platform clients, and notification channels from configuration, then starts
// the goroutines for the selected operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/dlmmbot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// the cleanup functions run in reverse order on shutdown.
type App struct {
	cfg *config.Config
	// cfgPath is re-read on SIGHUP to pick up hedge parameter changes.
	cfgPath string
	log     *slog.Logger
	closers []func()
}

func New(cfg *config.Config, cfgPath string, log *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		cfgPath: cfgPath,
		log:     log.With("component", "app"),
	}
}

// Run wires dependencies, starts the configured mode, and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting",
		"mode", a.cfg.Mode,
		"store", a.cfg.Store.Backend,
		"hedging", a.cfg.Hedge.Enabled,
	)
	a.log.Debug("active configuration", "config", config.RedactedConfig(a.cfg))

	deps, cleanup, err := Wire(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "run":
		return a.RunMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down resources in reverse registration order. Safe to call more
// than once.
func (a *App) Close() {
	a.log.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
