package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
trading:
  pair: XETHZEUR
  take_profit_pct: 0.02
timing:
  cooldown_seconds: 120
execution:
  dry_run: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "XETHZEUR", cfg.Trading.Pair)
	assert.InDelta(t, 0.02, cfg.Trading.TakeProfitPct, 1e-9)
	assert.Equal(t, int64(120), cfg.Timing.CooldownSeconds)
	assert.False(t, cfg.Execution.DryRun)

	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.006, cfg.Trading.StopLossPct, 1e-9)
	assert.Equal(t, 3, cfg.Timing.MaxTradesPerDay)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty pair", func(c *Config) { c.Trading.Pair = "" }},
		{"take profit out of range", func(c *Config) { c.Trading.TakeProfitPct = 1.5 }},
		{"negative stop loss", func(c *Config) { c.Trading.StopLossPct = -0.01 }},
		{"max position above one", func(c *Config) { c.Sizing.MaxPositionPct = 1.2 }},
		{"zero max position", func(c *Config) { c.Sizing.MaxPositionPct = 0 }},
		{"short window above long", func(c *Config) {
			c.Filters.TrendWindowShort = 60
			c.Filters.TrendWindowLong = 50
		}},
		{"zero atr window", func(c *Config) { c.Filters.ATRWindow = 0 }},
		{"zero poll interval", func(c *Config) { c.Timing.PollIntervalSeconds = 0 }},
		{"zero daily cap", func(c *Config) { c.Timing.MaxTradesPerDay = 0 }},
		{"negative rate limit delay", func(c *Config) { c.API.RateLimitMinDelayMs = -1 }},
		{"empty state file", func(c *Config) { c.Files.StateFile = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
