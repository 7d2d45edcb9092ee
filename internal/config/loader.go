package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DLMMBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DLMMBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "DLMMBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeypairPath, "DLMMBOT_WALLET_KEYPAIR_PATH")
	setStr(&cfg.Wallet.EncryptedKeyPath, "DLMMBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "DLMMBOT_WALLET_KEY_PASSWORD")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "DLMMBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.Commitment, "DLMMBOT_SOLANA_COMMITMENT")
	setInt(&cfg.Solana.ConfirmAttempts, "DLMMBOT_SOLANA_CONFIRM_ATTEMPTS")
	setDuration(&cfg.Solana.ConfirmInterval, "DLMMBOT_SOLANA_CONFIRM_INTERVAL")

	// ── Platform endpoints ──
	setStr(&cfg.Meteora.BaseURL, "DLMMBOT_METEORA_BASE_URL")
	setStr(&cfg.Jupiter.BaseURL, "DLMMBOT_JUPITER_BASE_URL")
	setStr(&cfg.PriceSource.BaseURL, "DLMMBOT_PRICE_SOURCE_BASE_URL")
	setStr(&cfg.PriceSource.WsURL, "DLMMBOT_PRICE_SOURCE_WS_URL")

	// ── Store ──
	setStr(&cfg.Store.Backend, "DLMMBOT_STORE_BACKEND")
	setStr(&cfg.Store.FilePath, "DLMMBOT_STORE_FILE_PATH")
	setStr(&cfg.Store.Postgres.DSN, "DLMMBOT_STORE_POSTGRES_DSN")
	setStr(&cfg.Store.Postgres.Host, "DLMMBOT_STORE_POSTGRES_HOST")
	setInt(&cfg.Store.Postgres.Port, "DLMMBOT_STORE_POSTGRES_PORT")
	setStr(&cfg.Store.Postgres.Database, "DLMMBOT_STORE_POSTGRES_DATABASE")
	setStr(&cfg.Store.Postgres.User, "DLMMBOT_STORE_POSTGRES_USER")
	setStr(&cfg.Store.Postgres.Password, "DLMMBOT_STORE_POSTGRES_PASSWORD")
	setStr(&cfg.Store.Postgres.SSLMode, "DLMMBOT_STORE_POSTGRES_SSLMODE")
	setInt(&cfg.Store.Postgres.PoolMaxConns, "DLMMBOT_STORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Store.Postgres.PoolMinConns, "DLMMBOT_STORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Store.Postgres.RunMigrations, "DLMMBOT_STORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DLMMBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DLMMBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DLMMBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DLMMBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DLMMBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DLMMBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DLMMBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DLMMBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DLMMBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DLMMBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "DLMMBOT_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "DLMMBOT_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "DLMMBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DLMMBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DLMMBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DLMMBOT_S3_FORCE_PATH_STYLE")

	// ── Monitoring ──
	setDuration(&cfg.Monitoring.Interval, "DLMMBOT_MONITORING_INTERVAL")
	setDuration(&cfg.Monitoring.PriceUpdateInterval, "DLMMBOT_MONITORING_PRICE_UPDATE_INTERVAL")
	setInt(&cfg.Monitoring.BalancePollAttempts, "DLMMBOT_MONITORING_BALANCE_POLL_ATTEMPTS")
	setDuration(&cfg.Monitoring.BalancePollInterval, "DLMMBOT_MONITORING_BALANCE_POLL_INTERVAL")
	setDuration(&cfg.Monitoring.BalanceCooldown, "DLMMBOT_MONITORING_BALANCE_COOLDOWN")
	setDuration(&cfg.Monitoring.PriceCacheTTL, "DLMMBOT_MONITORING_PRICE_CACHE_TTL")

	// ── Hedge ──
	setBool(&cfg.Hedge.Enabled, "DLMMBOT_HEDGE_ENABLED")
	setFloat64(&cfg.Hedge.Percent, "DLMMBOT_HEDGE_PERCENT")
	setInt(&cfg.Hedge.SlippageBps, "DLMMBOT_HEDGE_SLIPPAGE_BPS")
	setFloat64(&cfg.Hedge.MinPriceChangePercent, "DLMMBOT_HEDGE_MIN_PRICE_CHANGE_PERCENT")
	setFloat64(&cfg.Hedge.MinAmountUSD, "DLMMBOT_HEDGE_MIN_AMOUNT_USD")
	setFloat64(&cfg.Hedge.SignificantAccumulatedPercent, "DLMMBOT_HEDGE_SIGNIFICANT_ACCUMULATED_PERCENT")

	// ── Risk ──
	setFloat64(&cfg.Risk.StopLossPercent, "DLMMBOT_RISK_STOP_LOSS_PERCENT")
	setFloat64(&cfg.Risk.TakeProfitPercent, "DLMMBOT_RISK_TAKE_PROFIT_PERCENT")
	setFloat64(&cfg.Risk.FeeCheckPercent, "DLMMBOT_RISK_FEE_CHECK_PERCENT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DLMMBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DLMMBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "DLMMBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DLMMBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DLMMBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DLMMBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DLMMBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DLMMBOT_MODE")
	setStr(&cfg.LogLevel, "DLMMBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
