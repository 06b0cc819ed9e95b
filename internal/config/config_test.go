package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Feed.WsURL = "wss://feed.example.com/ws"
	return cfg
}

func TestDefaultsValidateOnceFeedIsSet(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, time.Minute, cfg.Feed.BarInterval.Duration)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "yolo"
	cfg.Feed.Symbols = nil
	cfg.Risk.Capital = 0
	cfg.Orders.StopLossPct = 0.5
	cfg.Orders.TakeProfitPct = 0.1

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "at least one symbol")
	assert.Contains(t, msg, "capital must be > 0")
	assert.Contains(t, msg, "stop_loss_pct must be less than take_profit_pct")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n  - "), 3, "every problem is reported at once")
}

func TestValidateModeSpecificRules(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Orders.BrokerURL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker_url is required for trade mode")

	cfg.Orders.BrokerURL = "https://broker.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestValidateIndicatorWindows(t *testing.T) {
	cfg := validConfig()
	cfg.Indicators.MACDFast = 26
	cfg.Indicators.MACDSlow = 12
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macd_fast must be less than macd_slow")

	cfg = validConfig()
	cfg.Indicators.RSIPeriod = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rsi_period must be >= 1")
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Enabled = false
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "monitor"

[feed]
ws_url = "wss://feed.example.com/ws"
symbols = ["BTC-USD", "ETH-USD"]
bar_interval = "30s"

[risk]
capital = 25000.0

[signalchain]
direction = "short"
rsi_threshold = 40.0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Feed.Symbols)
	assert.Equal(t, 30*time.Second, cfg.Feed.BarInterval.Duration)
	assert.Equal(t, 25_000.0, cfg.Risk.Capital)
	assert.Equal(t, "short", cfg.Chain.Direction)
	assert.Equal(t, 40.0, cfg.Chain.RSIThreshold)

	// Untouched sections keep their defaults.
	assert.Equal(t, 26, cfg.Indicators.MACDSlow)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[feed]
ws_url = "wss://feed.example.com/ws"
`), 0o600))

	t.Setenv("QUANTBOT_FEED_SYMBOLS", "SOL-USD,AVAX-USD")
	t.Setenv("QUANTBOT_RISK_CAPITAL", "50000")
	t.Setenv("QUANTBOT_RISK_MAX_POSITIONS", "3")
	t.Setenv("QUANTBOT_CHAIN_SIGNAL_TTL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"SOL-USD", "AVAX-USD"}, cfg.Feed.Symbols)
	assert.Equal(t, 50_000.0, cfg.Risk.Capital)
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
	assert.Equal(t, 45*time.Second, cfg.Chain.SignalTTL.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
