package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, "SBIN.NS", cfg.DataSource.Symbol)
	assert.Equal(t, 3650, cfg.DataSource.LookbackDays)
	assert.Equal(t, 50, cfg.Pipeline.ShortWindow)
	assert.Equal(t, 200, cfg.Pipeline.LongWindow)
	assert.Equal(t, 60, cfg.Pipeline.WindowLength)
	assert.Equal(t, 100, cfg.Pipeline.HistoryPoints)
	assert.Equal(t, 0.1, cfg.Training.ValidationSplit)
	assert.Equal(t, uint64(42), cfg.Training.Seed)
	assert.Zero(t, cfg.Training.Interval())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.DataSource.Timeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_source:
  symbol: "^GSPC"
  lookback_days: 1000
training:
  epochs: 5
  interval_hours: 24
server:
  allowed_origins: ["https://app.example.com"]
metrics:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "^GSPC", cfg.DataSource.Symbol)
	assert.Equal(t, 1000, cfg.DataSource.LookbackDays)
	assert.Equal(t, 5, cfg.Training.Epochs)
	assert.Equal(t, 64, cfg.Training.Hidden)
	assert.Equal(t, 24*time.Hour, cfg.Training.Interval())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORECAST_SYMBOL", "AAPL")
	t.Setenv("PORT", "8080")
	t.Setenv("FRONTEND_URL", "https://a.example,https://b.example")
	t.Setenv("RETRAIN_INTERVAL_HOURS", "1.5")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", cfg.DataSource.Symbol)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 90*time.Minute, cfg.Training.Interval())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Telegram.Enabled())
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("PORT", "http")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "data_source: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }},
		{"rest without base url", func(c *Config) { c.DataSource.Provider = "rest"; c.DataSource.BaseURL = "" }},
		{"long window not above short", func(c *Config) { c.Pipeline.LongWindow = c.Pipeline.ShortWindow }},
		{"validation split of one", func(c *Config) { c.Training.ValidationSplit = 1 }},
		{"lookback too short", func(c *Config) { c.DataSource.LookbackDays = 200 }},
		{"unknown artifact backend", func(c *Config) { c.Artifacts.Backend = "s3" }},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
		{"empty symbol", func(c *Config) { c.DataSource.Symbol = "" }},
		{"telegram token without chat", func(c *Config) { c.Telegram.BotToken = "123:abc"; c.Telegram.ChatID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
