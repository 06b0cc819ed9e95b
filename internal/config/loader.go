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
// built-in defaults, applies QUANTBOT_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known QUANTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "QUANTBOT_FEED_WS_URL")
	setStringSlice(&cfg.Feed.Symbols, "QUANTBOT_FEED_SYMBOLS")
	setDuration(&cfg.Feed.BarInterval, "QUANTBOT_FEED_BAR_INTERVAL")

	// ── Signal chain ──
	setStr(&cfg.Chain.Direction, "QUANTBOT_CHAIN_DIRECTION")
	setFloat64(&cfg.Chain.RSIThreshold, "QUANTBOT_CHAIN_RSI_THRESHOLD")
	setFloat64(&cfg.Chain.MACDHistogramThreshold, "QUANTBOT_CHAIN_MACD_HISTOGRAM_THRESHOLD")
	setDuration(&cfg.Chain.SignalTTL, "QUANTBOT_CHAIN_SIGNAL_TTL")

	// ── Risk ──
	setStr(&cfg.Risk.Account, "QUANTBOT_RISK_ACCOUNT")
	setFloat64(&cfg.Risk.Capital, "QUANTBOT_RISK_CAPITAL")
	setInt(&cfg.Risk.MaxPositions, "QUANTBOT_RISK_MAX_POSITIONS")
	setFloat64(&cfg.Risk.MaxExposureFraction, "QUANTBOT_RISK_MAX_EXPOSURE_FRACTION")
	setFloat64(&cfg.Risk.DailyLossLimit, "QUANTBOT_RISK_DAILY_LOSS_LIMIT")
	setInt(&cfg.Risk.ConsecutiveLossLimit, "QUANTBOT_RISK_CONSECUTIVE_LOSS_LIMIT")
	setInt(&cfg.Risk.MaxTradesPerDay, "QUANTBOT_RISK_MAX_TRADES_PER_DAY")

	// ── Orders ──
	setFloat64(&cfg.Orders.Size, "QUANTBOT_ORDERS_SIZE")
	setFloat64(&cfg.Orders.StopLossPct, "QUANTBOT_ORDERS_STOP_LOSS_PCT")
	setFloat64(&cfg.Orders.TakeProfitPct, "QUANTBOT_ORDERS_TAKE_PROFIT_PCT")
	setStr(&cfg.Orders.BrokerURL, "QUANTBOT_ORDERS_BROKER_URL")
	setStr(&cfg.Orders.BrokerAPIKey, "QUANTBOT_ORDERS_BROKER_API_KEY")
	setFloat64(&cfg.Orders.BrokerRPS, "QUANTBOT_ORDERS_BROKER_RPS")
	setDuration(&cfg.Orders.AckTimeout, "QUANTBOT_ORDERS_ACK_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "QUANTBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "QUANTBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "QUANTBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "QUANTBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "QUANTBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "QUANTBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "QUANTBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "QUANTBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "QUANTBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "QUANTBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "QUANTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "QUANTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "QUANTBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "QUANTBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "QUANTBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "QUANTBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "QUANTBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "QUANTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "QUANTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "QUANTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "QUANTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "QUANTBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "QUANTBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "QUANTBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "QUANTBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "QUANTBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "QUANTBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "QUANTBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "QUANTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "QUANTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "QUANTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "QUANTBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "QUANTBOT_MODE")
	setStr(&cfg.LogLevel, "QUANTBOT_LOG_LEVEL")
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
