// Package config defines the top-level configuration for the DLMM hedging
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DLMMBOT_* environment variables.
type Config struct {
	Wallet      WalletConfig      `toml:"wallet"`
	Solana      SolanaConfig      `toml:"solana"`
	Meteora     MeteoraConfig     `toml:"meteora"`
	Jupiter     JupiterConfig     `toml:"jupiter"`
	PriceSource PriceSourceConfig `toml:"price_source"`
	Store       StoreConfig       `toml:"store"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Monitoring  MonitoringConfig  `toml:"monitoring"`
	Hedge       HedgeConfig       `toml:"hedge"`
	Risk        RiskConfig        `toml:"risk"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds Solana wallet credentials. Exactly one key source is
// used, checked in order: private_key, keypair_path, encrypted_key_path.
type WalletConfig struct {
	// PrivateKey is a base58-encoded 64-byte ed25519 keypair.
	PrivateKey string `toml:"private_key"`
	// KeypairPath points at a JSON byte-array keypair file (solana-keygen
	// format).
	KeypairPath string `toml:"keypair_path"`
	// EncryptedKeyPath points at a keyfile produced by crypto.EncryptKeypair.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SolanaConfig holds RPC endpoint and confirmation parameters.
type SolanaConfig struct {
	RPCURL     string `toml:"rpc_url"`
	Commitment string `toml:"commitment"`
	// ConfirmAttempts bounds the signature-status polling loop.
	ConfirmAttempts int      `toml:"confirm_attempts"`
	ConfirmInterval duration `toml:"confirm_interval"`
}

// MeteoraConfig holds the DLMM pool data API endpoint.
type MeteoraConfig struct {
	BaseURL string `toml:"base_url"`
}

// JupiterConfig holds the swap router API endpoint.
type JupiterConfig struct {
	BaseURL string `toml:"base_url"`
}

// PriceSourceConfig holds the authoritative USD price API endpoints.
type PriceSourceConfig struct {
	BaseURL string `toml:"base_url"`
	// WsURL enables the streaming price feed when non-empty.
	WsURL string `toml:"ws_url"`
}

// StoreConfig selects and configures position persistence.
type StoreConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend  string         `toml:"backend"`
	FilePath string         `toml:"file_path"`
	Postgres PostgresConfig `toml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds optional shared-cache parameters. When disabled the bot
// uses in-process price caching and locking.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the optional hedge-history archive target.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MonitoringConfig holds the monitoring and hedge-timer cadence plus the
// balance-wait loop bounds.
type MonitoringConfig struct {
	// Interval drives the sequential scan over all active positions.
	Interval duration `toml:"interval"`
	// PriceUpdateInterval drives each position's hedge timer.
	PriceUpdateInterval duration `toml:"price_update_interval"`
	// BalancePollAttempts bounds the wait-for-balance loop after a close.
	BalancePollAttempts int      `toml:"balance_poll_attempts"`
	BalancePollInterval duration `toml:"balance_poll_interval"`
	// BalanceCooldown suppresses repeated attempts after an
	// insufficient-balance failure.
	BalanceCooldown duration `toml:"balance_cooldown"`
	// PriceCacheTTL is the freshness window of the price feed cache.
	PriceCacheTTL duration `toml:"price_cache_ttl"`
}

// HedgeConfig holds the mirror-hedge parameters.
type HedgeConfig struct {
	Enabled bool `toml:"enabled"`
	// Percent is the fraction of the position's delta change to hedge,
	// 0-100.
	Percent     float64 `toml:"percent"`
	SlippageBps int     `toml:"slippage_bps"`
	// MinPriceChangePercent gates a hedge on the move since the last
	// executed hedge.
	MinPriceChangePercent float64 `toml:"min_price_change_percent"`
	// MinAmountUSD rejects hedges below this notional.
	MinAmountUSD float64 `toml:"min_amount_usd"`
	// SignificantAccumulatedPercent triggers a hedge once accrued
	// sub-threshold moves add up to this much, so a long run of small
	// moves is never permanently ignored.
	SignificantAccumulatedPercent float64 `toml:"significant_accumulated_percent"`
}

// RiskConfig holds the close/replace thresholds.
type RiskConfig struct {
	StopLossPercent   float64 `toml:"stop_loss_percent"`
	TakeProfitPercent float64 `toml:"take_profit_percent"`
	// FeeCheckPercent is the fraction (0-100) of the distance to the lower
	// bound that, once crossed, prompts an early close to bank accrued
	// fees.
	FeeCheckPercent float64 `toml:"fee_check_percent"`
}

// ServerConfig holds the read-only status HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
	// APIKey protects the API when non-empty; requests must carry it as a
	// Bearer token or X-API-Key header.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL:          "https://api.mainnet-beta.solana.com",
			Commitment:      "confirmed",
			ConfirmAttempts: 30,
			ConfirmInterval: duration{2 * time.Second},
		},
		Meteora: MeteoraConfig{
			BaseURL: "https://dlmm-api.meteora.ag",
		},
		Jupiter: JupiterConfig{
			BaseURL: "https://quote-api.jup.ag/v6",
		},
		PriceSource: PriceSourceConfig{
			BaseURL: "https://dlmm-api.meteora.ag",
		},
		Store: StoreConfig{
			Backend:  "file",
			FilePath: "positions.json",
			Postgres: PostgresConfig{
				Host:          "localhost",
				Port:          5432,
				Database:      "dlmmbot",
				User:          "postgres",
				SSLMode:       "disable",
				PoolMaxConns:  10,
				PoolMinConns:  2,
				RunMigrations: true,
			},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "dlmmbot-data",
			Prefix:         "hedges",
			ForcePathStyle: true,
		},
		Monitoring: MonitoringConfig{
			Interval:            duration{30 * time.Second},
			PriceUpdateInterval: duration{15 * time.Second},
			BalancePollAttempts: 15,
			BalancePollInterval: duration{2 * time.Second},
			BalanceCooldown:     duration{60 * time.Second},
			PriceCacheTTL:       duration{10 * time.Second},
		},
		Hedge: HedgeConfig{
			Enabled:                       true,
			Percent:                       50,
			SlippageBps:                   50,
			MinPriceChangePercent:         0.1,
			MinAmountUSD:                  1.0,
			SignificantAccumulatedPercent: 2.0,
		},
		Risk: RiskConfig{
			StopLossPercent:   5.0,
			TakeProfitPercent: 3.0,
			FeeCheckPercent:   80.0,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "hedge_executed", "error"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — required in run mode, where transactions are signed.
	if strings.ToLower(c.Mode) == "run" {
		if c.Wallet.PrivateKey == "" && c.Wallet.KeypairPath == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: one of private_key, keypair_path, encrypted_key_path must be set for mode run")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if c.Solana.ConfirmAttempts < 1 {
		errs = append(errs, "solana: confirm_attempts must be >= 1")
	}
	if c.Meteora.BaseURL == "" {
		errs = append(errs, "meteora: base_url must not be empty")
	}
	if c.Jupiter.BaseURL == "" {
		errs = append(errs, "jupiter: base_url must not be empty")
	}
	if c.PriceSource.BaseURL == "" {
		errs = append(errs, "price_source: base_url must not be empty")
	}

	switch strings.ToLower(c.Store.Backend) {
	case "file":
		if c.Store.FilePath == "" {
			errs = append(errs, "store: file_path must not be empty for the file backend")
		}
	case "postgres":
		pg := c.Store.Postgres
		if strings.TrimSpace(pg.DSN) == "" {
			if pg.Host == "" {
				errs = append(errs, "store.postgres: host must not be empty (or set store.postgres.dsn)")
			}
			if pg.Port <= 0 || pg.Port > 65535 {
				errs = append(errs, fmt.Sprintf("store.postgres: port must be 1-65535, got %d", pg.Port))
			}
			if pg.Database == "" {
				errs = append(errs, "store.postgres: database must not be empty")
			}
		}
		if pg.PoolMaxConns < 1 {
			errs = append(errs, "store.postgres: pool_max_conns must be >= 1")
		}
		if pg.PoolMinConns < 0 || pg.PoolMinConns > pg.PoolMaxConns {
			errs = append(errs, "store.postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	default:
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: file, postgres)", c.Store.Backend))
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1 when enabled")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if c.Monitoring.Interval.Duration <= 0 {
		errs = append(errs, "monitoring: interval must be positive")
	}
	if c.Monitoring.PriceUpdateInterval.Duration <= 0 {
		errs = append(errs, "monitoring: price_update_interval must be positive")
	}
	if c.Monitoring.BalancePollAttempts < 1 {
		errs = append(errs, "monitoring: balance_poll_attempts must be >= 1")
	}

	if c.Hedge.Enabled {
		if c.Hedge.Percent <= 0 || c.Hedge.Percent > 100 {
			errs = append(errs, fmt.Sprintf("hedge: percent must be in (0, 100], got %g", c.Hedge.Percent))
		}
		if c.Hedge.SlippageBps < 0 {
			errs = append(errs, "hedge: slippage_bps must be >= 0")
		}
		if c.Hedge.MinPriceChangePercent <= 0 {
			errs = append(errs, "hedge: min_price_change_percent must be > 0")
		}
		if c.Hedge.SignificantAccumulatedPercent <= 0 {
			errs = append(errs, "hedge: significant_accumulated_percent must be > 0")
		}
	}

	if c.Risk.StopLossPercent <= 0 {
		errs = append(errs, "risk: stop_loss_percent must be > 0")
	}
	if c.Risk.FeeCheckPercent < 0 || c.Risk.FeeCheckPercent > 100 {
		errs = append(errs, fmt.Sprintf("risk: fee_check_percent must be in [0, 100], got %g", c.Risk.FeeCheckPercent))
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
