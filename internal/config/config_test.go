package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/ratelimit"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Act: an empty directory has no config.yml
	cfg, err := LoadConfig(t.TempDir())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "bitflyer", cfg.Exchange.Name)
	assert.Equal(t, []string{"BTC_JPY"}, cfg.Exchange.Symbols)
	assert.Equal(t, 500, cfg.Exchange.PageSize)
	assert.Equal(t, ratelimit.Budget{Calls: 500, Window: 5 * time.Minute, Margin: 5}, cfg.Budget)
	assert.Equal(t, 10000, cfg.Ingest.FlushSize)
	assert.Equal(t, time.Minute, cfg.Ingest.Interval)
	assert.Equal(t, "5m", cfg.Backtest.BarInterval)
	assert.Equal(t, 1000, cfg.Backtest.LookbackBars)
	assert.Equal(t, time.Minute, cfg.Backtest.PollInterval)
	assert.Equal(t, 50000.0, cfg.Invest.Balance)
	assert.Equal(t, 10000.0, cfg.Invest.InvestPerTrade)
	assert.Zero(t, cfg.Invest.LossCut)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	yml := `
exchange:
  symbols: [BTC_JPY, ETH_JPY]
budget:
  window: 2m
backtest:
  bar_interval: 15m
  strategy: tech
invest:
  balance: 1000
  invest_per_trade: 200
  loss_cut: 900
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o644))
	t.Setenv("SERVER_PORT", "9090")

	// Act
	cfg, err := LoadConfig(dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC_JPY", "ETH_JPY"}, cfg.Exchange.Symbols)
	assert.Equal(t, 2*time.Minute, cfg.Budget.Window)
	assert.Equal(t, 500, cfg.Budget.Calls)
	assert.Equal(t, "15m", cfg.Backtest.BarInterval)
	assert.Equal(t, "tech", cfg.Backtest.Strategy)
	assert.Equal(t, 900.0, cfg.Invest.LossCut)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("invest:\n  balance: 100\n  invest_per_trade: 200\n"), 0o644))

	_, err := LoadConfig(dir)

	assert.ErrorContains(t, err, "must not exceed")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "no symbols", mutate: func(c *Config) { c.Exchange.Symbols = nil }, errMsg: "symbols"},
		{name: "page too large", mutate: func(c *Config) { c.Exchange.PageSize = 501 }, errMsg: "page_size"},
		{name: "margin eats budget", mutate: func(c *Config) { c.Budget.Margin = 500 }, errMsg: "margin"},
		{name: "zero window", mutate: func(c *Config) { c.Budget.Window = 0 }, errMsg: "budget"},
		{name: "bad interval", mutate: func(c *Config) { c.Backtest.BarInterval = "61m" }, errMsg: "bar_interval"},
		{name: "no lookback", mutate: func(c *Config) { c.Backtest.LookbackBars = 0 }, errMsg: "lookback_bars"},
		{name: "lookback shorter than indicator warm-up", mutate: func(c *Config) { c.Backtest.LookbackBars = indicator.MinBars - 1 }, errMsg: "lookback_bars must be at least 34"},
		{name: "no flush size", mutate: func(c *Config) { c.Ingest.FlushSize = 0 }, errMsg: "flush_size"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
}
