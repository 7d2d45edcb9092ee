package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/dlmmbot/internal/blob/s3"
	"github.com/alanyoungcy/dlmmbot/internal/cache/memory"
	"github.com/alanyoungcy/dlmmbot/internal/cache/redis"
	"github.com/alanyoungcy/dlmmbot/internal/config"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
	"github.com/alanyoungcy/dlmmbot/internal/notify"
	"github.com/alanyoungcy/dlmmbot/internal/platform/jupiter"
	"github.com/alanyoungcy/dlmmbot/internal/platform/meteora"
	"github.com/alanyoungcy/dlmmbot/internal/platform/solana"
	"github.com/alanyoungcy/dlmmbot/internal/pricefeed"
	"github.com/alanyoungcy/dlmmbot/internal/store/file"
	"github.com/alanyoungcy/dlmmbot/internal/store/postgres"
)

// Dependencies bundles the shared collaborators both modes build on. Wire
// constructs them; the returned cleanup releases them.
type Dependencies struct {
	Store      domain.PositionStore
	PriceCache domain.PriceCache
	Locks      domain.LockManager

	Meteora *meteora.Client
	Jupiter *jupiter.Client
	Solana  *solana.Client
	Feed    *pricefeed.Feed
	Valuer  *meteora.Valuer

	Runtime *config.Runtime

	// Archiver is nil unless S3 archiving is enabled.
	Archiver domain.HistoryArchiver

	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency implementations from configuration.
// Optional subsystems (Redis, PostgreSQL, S3) are only touched when enabled;
// the defaults are in-process and file-backed.
func Wire(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Runtime: config.NewRuntime(cfg.Hedge),
	}

	// Persistence.
	switch cfg.Store.Backend {
	case "postgres":
		pg := cfg.Store.Postgres
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      pg.DSN,
			Host:     pg.Host,
			Port:     pg.Port,
			Database: pg.Database,
			User:     pg.User,
			Password: pg.Password,
			SSLMode:  pg.SSLMode,
			MaxConns: pg.PoolMaxConns,
			MinConns: pg.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if pg.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Store = postgres.NewPositionStore(pgClient)
	default:
		deps.Store = file.New(cfg.Store.FilePath)
	}

	// Price cache and locking: Redis when enabled, in-process otherwise.
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	} else {
		deps.PriceCache = memory.NewPriceCache()
		deps.Locks = memory.NewLockManager()
	}

	// Platform clients.
	deps.Meteora = meteora.NewClient(cfg.Meteora.BaseURL)
	deps.Jupiter = jupiter.NewClient(cfg.Jupiter.BaseURL)
	deps.Solana = solana.NewClient(cfg.Solana.RPCURL, cfg.Solana.Commitment)

	priceSource := deps.Meteora
	if cfg.PriceSource.BaseURL != cfg.Meteora.BaseURL {
		priceSource = meteora.NewClient(cfg.PriceSource.BaseURL)
	}
	deps.Feed = pricefeed.New(priceSource, deps.Meteora, deps.PriceCache, cfg.Monitoring.PriceCacheTTL.Duration, log)
	deps.Valuer = meteora.NewValuer(deps.Meteora, deps.Feed)

	// Hedge history archive.
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, log)

	return deps, cleanup, nil
}
