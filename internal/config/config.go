// Package config defines the top-level configuration for the trading
// pipeline and provides validation helpers. Configuration that fails
// validation is fatal: the process refuses to start rather than run with
// undefined risk behavior.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by QUANTBOT_* environment
// variables.
type Config struct {
	Feed       FeedConfig       `toml:"feed"`
	Indicators IndicatorConfig  `toml:"indicators"`
	Chain      ChainConfig      `toml:"signalchain"`
	Risk       RiskConfig       `toml:"risk"`
	Orders     OrdersConfig     `toml:"orders"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// FeedConfig holds market-data connection parameters.
type FeedConfig struct {
	WsURL       string   `toml:"ws_url"`
	Symbols     []string `toml:"symbols"`
	BarInterval duration `toml:"bar_interval"`
}

// IndicatorConfig holds the rolling-window lengths for each indicator.
type IndicatorConfig struct {
	RSIPeriod      int `toml:"rsi_period"`
	MACDFast       int `toml:"macd_fast"`
	MACDSlow       int `toml:"macd_slow"`
	MACDSignal     int `toml:"macd_signal"`
	SMAPeriod      int `toml:"sma_period"`
	ATRPeriod      int `toml:"atr_period"`
}

// PredicateConfig is one entry in the signal chain.
type PredicateConfig struct {
	Kind      string  `toml:"kind"`
	Threshold float64 `toml:"threshold"`
}

// ChainConfig holds the signal chain composition and thresholds. When
// Predicates is empty, a default long chain is assembled from the scalar
// thresholds: RSI crossing above rsi_threshold, MACD bullish, histogram
// above macd_histogram_threshold, and price above the SMA.
type ChainConfig struct {
	Direction              string            `toml:"direction"`
	Predicates             []PredicateConfig `toml:"predicates"`
	RSIThreshold           float64           `toml:"rsi_threshold"`
	MACDHistogramThreshold float64           `toml:"macd_histogram_threshold"`
	SignalTTL              duration          `toml:"signal_ttl"`
}

// RiskConfig holds the account-level risk limits.
type RiskConfig struct {
	Account              string  `toml:"account"`
	Capital              float64 `toml:"capital"`
	MaxPositions         int     `toml:"max_positions"`
	MaxExposureFraction  float64 `toml:"max_exposure_fraction"`
	DailyLossLimit       float64 `toml:"daily_loss_limit"`
	ConsecutiveLossLimit int     `toml:"consecutive_loss_limit"`
	MaxTradesPerDay      int     `toml:"max_trades_per_day"`
}

// OrdersConfig holds order sizing, protective levels and broker settings.
type OrdersConfig struct {
	Size          float64  `toml:"size"`
	StopLossPct   float64  `toml:"stop_loss_pct"`
	TakeProfitPct float64  `toml:"take_profit_pct"`
	BrokerURL     string   `toml:"broker_url"`
	BrokerAPIKey  string   `toml:"broker_api_key"`
	BrokerRPS     float64  `toml:"broker_rps"`
	AckTimeout    duration `toml:"ack_timeout"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the
// end-of-day archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the status HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateRPS     float64  `toml:"rate_rps"`
	RateBurst   int      `toml:"rate_burst"`
}

// NotifyConfig holds operator alert channels.
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

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration a TOML file is merged over.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			Symbols:     []string{"BTC-USD"},
			BarInterval: duration{time.Minute},
		},
		Indicators: IndicatorConfig{
			RSIPeriod:  14,
			MACDFast:   12,
			MACDSlow:   26,
			MACDSignal: 9,
			SMAPeriod:  50,
			ATRPeriod:  14,
		},
		Chain: ChainConfig{
			Direction:              "long",
			RSIThreshold:           50,
			MACDHistogramThreshold: 0.001,
			SignalTTL:              duration{30 * time.Second},
		},
		Risk: RiskConfig{
			Account:              "default",
			Capital:              10_000,
			MaxPositions:         5,
			MaxExposureFraction:  0.5,
			DailyLossLimit:       200,
			ConsecutiveLossLimit: 3,
			MaxTradesPerDay:      20,
		},
		Orders: OrdersConfig{
			Size:          0.01,
			StopLossPct:   0.01,
			TakeProfitPct: 0.02,
			BrokerRPS:     5,
			AckTimeout:    duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "quantbot",
			User:          "quantbot",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Server: ServerConfig{
			Enabled:   true,
			Port:      8000,
			RateRPS:   20,
			RateBurst: 40,
		},
		Notify: NotifyConfig{
			Events: []string{"order_rejected", "circuit_breaker", "daily_loss_limit", "close_failed"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"paper":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.WsURL == "" {
		errs = append(errs, "feed: ws_url must not be empty")
	}
	if len(c.Feed.Symbols) == 0 {
		errs = append(errs, "feed: at least one symbol required")
	}
	if c.Feed.BarInterval.Duration < time.Second {
		errs = append(errs, "feed: bar_interval must be at least 1s")
	}

	// Indicators
	for name, period := range map[string]int{
		"rsi_period":  c.Indicators.RSIPeriod,
		"macd_fast":   c.Indicators.MACDFast,
		"macd_slow":   c.Indicators.MACDSlow,
		"macd_signal": c.Indicators.MACDSignal,
		"sma_period":  c.Indicators.SMAPeriod,
		"atr_period":  c.Indicators.ATRPeriod,
	} {
		if period < 1 {
			errs = append(errs, fmt.Sprintf("indicators: %s must be >= 1", name))
		}
	}
	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		errs = append(errs, "indicators: macd_fast must be less than macd_slow")
	}

	// Signal chain
	if c.Chain.Direction != "long" && c.Chain.Direction != "short" {
		errs = append(errs, fmt.Sprintf("signalchain: direction must be long or short, got %q", c.Chain.Direction))
	}
	if c.Chain.RSIThreshold < 0 || c.Chain.RSIThreshold > 100 {
		errs = append(errs, fmt.Sprintf("signalchain: rsi_threshold %g outside 0-100", c.Chain.RSIThreshold))
	}
	if c.Chain.MACDHistogramThreshold < 0 {
		errs = append(errs, "signalchain: macd_histogram_threshold must be >= 0")
	}

	// Risk
	if c.Risk.Capital <= 0 {
		errs = append(errs, "risk: capital must be > 0")
	}
	if c.Risk.MaxPositions < 1 {
		errs = append(errs, "risk: max_positions must be >= 1")
	}
	if c.Risk.MaxExposureFraction <= 0 || c.Risk.MaxExposureFraction > 1 {
		errs = append(errs, fmt.Sprintf("risk: max_exposure_fraction must be in (0, 1], got %g", c.Risk.MaxExposureFraction))
	}
	if c.Risk.DailyLossLimit <= 0 {
		errs = append(errs, "risk: daily_loss_limit must be > 0")
	}
	if c.Risk.ConsecutiveLossLimit < 1 {
		errs = append(errs, "risk: consecutive_loss_limit must be >= 1")
	}
	if c.Risk.MaxTradesPerDay < 1 {
		errs = append(errs, "risk: max_trades_per_day must be >= 1")
	}

	// Orders
	if c.Orders.Size <= 0 {
		errs = append(errs, "orders: size must be > 0")
	}
	if c.Orders.StopLossPct <= 0 || c.Orders.StopLossPct >= 1 {
		errs = append(errs, fmt.Sprintf("orders: stop_loss_pct must be in (0, 1), got %g", c.Orders.StopLossPct))
	}
	if c.Orders.TakeProfitPct <= 0 || c.Orders.TakeProfitPct >= 1 {
		errs = append(errs, fmt.Sprintf("orders: take_profit_pct must be in (0, 1), got %g", c.Orders.TakeProfitPct))
	}
	if c.Orders.StopLossPct >= c.Orders.TakeProfitPct {
		errs = append(errs, "orders: stop_loss_pct must be less than take_profit_pct")
	}
	if c.Orders.AckTimeout.Duration <= 0 {
		errs = append(errs, "orders: ack_timeout must be positive")
	}
	if c.Mode == "trade" && c.Orders.BrokerURL == "" {
		errs = append(errs, "orders: broker_url is required for trade mode")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
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
