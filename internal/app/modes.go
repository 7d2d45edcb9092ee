package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dlmmbot/internal/bounds"
	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/crypto"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
	"github.com/alanyoungcy/dlmmbot/internal/engine"
	"github.com/alanyoungcy/dlmmbot/internal/feed"
	"github.com/alanyoungcy/dlmmbot/internal/hedge"
	"github.com/alanyoungcy/dlmmbot/internal/platform/solana"
	"github.com/alanyoungcy/dlmmbot/internal/server"
	"github.com/alanyoungcy/dlmmbot/internal/server/handler"
)

// RunMode monitors positions and executes closes, reopens, and hedges.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	return a.runCore(ctx, deps, false)
}

// MonitorMode watches positions and logs decisions without signing or
// submitting any transaction.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	return a.runCore(ctx, deps, true)
}

func (a *App) runCore(ctx context.Context, deps *Dependencies, readOnly bool) error {
	g, ctx := errgroup.WithContext(ctx)

	var (
		hedger *hedge.Supervisor
		exec   domain.ExecutionService
	)
	if !readOnly {
		key, err := crypto.LoadKeypair(crypto.KeyConfig{
			PrivateKey:       a.cfg.Wallet.PrivateKey,
			KeypairPath:      a.cfg.Wallet.KeypairPath,
			EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      a.cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fmt.Errorf("app: load wallet: %w", err)
		}
		signer, err := crypto.NewSigner(key)
		if err != nil {
			return fmt.Errorf("app: wallet signer: %w", err)
		}
		a.log.Info("wallet loaded", "address", signer.Address())

		solExec := solana.NewExecutor(
			deps.Solana, signer,
			a.cfg.Solana.ConfirmAttempts, a.cfg.Solana.ConfirmInterval.Duration,
			a.log,
		)
		exec = solExec

		if a.cfg.Hedge.Enabled {
			hedger = hedge.NewSupervisor(hedge.Deps{
				Store:    deps.Store,
				Feed:     deps.Feed,
				Valuer:   deps.Valuer,
				Executor: hedge.NewExecutor(deps.Jupiter, solExec, signer.Address(), a.log),
				Archiver: deps.Archiver,
				Runtime:  deps.Runtime,
				Interval: a.cfg.Monitoring.PriceUpdateInterval.Duration,
				Notifier: deps.Notifier,
				Log:      a.log,
			})
		}
	}

	monitor := engine.NewMonitor(engine.MonitorDeps{
		Store:     deps.Store,
		Feed:      deps.Feed,
		Decider:   engine.NewDecider(a.cfg.Risk, a.log),
		Pools:     deps.Meteora,
		Liquidity: deps.Meteora,
		Exec:      exec,
		Balances:  deps.Solana,
		Bounds:    bounds.NewCalculator(a.log),
		Locks:     deps.Locks,
		Cooldown:  engine.NewCooldown(a.cfg.Monitoring.BalanceCooldown.Duration),
		Hedger:    hedger,
		Notifier:  deps.Notifier,
		Cfg:       a.cfg.Monitoring,
		Log:       a.log,
		ReadOnly:  readOnly,
	})
	g.Go(func() error { return monitor.Run(ctx) })

	// Streaming price feed, when the source exposes one.
	if a.cfg.PriceSource.WsURL != "" {
		pools, err := a.trackedPools(ctx, deps.Store)
		if err != nil {
			a.log.Warn("could not list pools for the price stream", "error", err)
		} else if len(pools) > 0 {
			stream := feed.NewPriceStream(a.cfg.PriceSource.WsURL, pools, deps.PriceCache, a.log)
			g.Go(func() error { return stream.Run(ctx) })
		}
	}

	// Read-only status API.
	if a.cfg.Server.Enabled {
		srv := server.New(server.Config{
			Port:   a.cfg.Server.Port,
			APIKey: a.cfg.Server.APIKey,
		}, a.statusHandler(deps, hedger), a.log)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	g.Go(func() error { return a.reloadOnHangup(ctx, deps.Runtime) })

	mode := "run"
	if readOnly {
		mode = "monitor"
	}
	_ = deps.Notifier.NotifyAll(ctx, "dlmmbot started", fmt.Sprintf("mode: %s", mode))

	return g.Wait()
}

// reloadOnHangup re-reads the configuration file on SIGHUP and applies the
// hedge parameters. Running hedge timers pick the new values up on their next
// tick; everything else in the file needs a restart.
func (a *App) reloadOnHangup(ctx context.Context, runtime *config.Runtime) error {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hangup:
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				a.log.Error("config reload failed", "path", a.cfgPath, "error", err)
				continue
			}
			if err := runtime.UpdateHedge(cfg.Hedge); err != nil {
				a.log.Error("reloaded hedge parameters rejected", "error", err)
				continue
			}
			a.log.Info("hedge parameters reloaded",
				"enabled", cfg.Hedge.Enabled,
				"percent", cfg.Hedge.Percent,
				"min_price_change_percent", cfg.Hedge.MinPriceChangePercent)
		}
	}
}

// statusHandler avoids handing the handler a typed-nil supervisor.
func (a *App) statusHandler(deps *Dependencies, hedger *hedge.Supervisor) *handler.StatusHandler {
	mode := a.cfg.Mode
	if hedger == nil {
		return handler.NewStatusHandler(deps.Store, nil, deps.Runtime, mode, a.log)
	}
	return handler.NewStatusHandler(deps.Store, hedger, deps.Runtime, mode, a.log)
}

// trackedPools lists the distinct pools of persisted active positions.
func (a *App) trackedPools(ctx context.Context, store domain.PositionStore) ([]string, error) {
	positions, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var pools []string
	for _, pos := range positions {
		if pos.Status != domain.PositionStatusActive || seen[pos.PoolAddress] {
			continue
		}
		seen[pos.PoolAddress] = true
		pools = append(pools, pos.PoolAddress)
	}
	return pools, nil
}
