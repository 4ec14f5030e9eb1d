package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the bot. Defaults match a conservative
// XBT/CAD setup; see config/config.yaml for the annotated example.
type Config struct {
	Trading struct {
		Pair          string  `yaml:"pair"`
		TakeProfitPct float64 `yaml:"take_profit_pct"`
		StopLossPct   float64 `yaml:"stop_loss_pct"`
		RebuyResetPct float64 `yaml:"rebuy_reset_pct"`
	} `yaml:"trading"`

	Filters struct {
		TrendWindowShort int     `yaml:"trend_window_short"`
		TrendWindowLong  int     `yaml:"trend_window_long"`
		RequireTrendUp   bool    `yaml:"require_trend_up"`
		ATRWindow        int     `yaml:"atr_window"`
		MinATRPct        float64 `yaml:"min_atr_pct"`
		MaxSpreadPct     float64 `yaml:"max_spread_pct"`
	} `yaml:"filters"`

	Sizing struct {
		RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
		MaxPositionPct  float64 `yaml:"max_position_pct"`
		MinReservePct   float64 `yaml:"min_reserve_pct"`
	} `yaml:"sizing"`

	Exits struct {
		PartialTPPct    float64 `yaml:"partial_tp_pct"`
		PartialTPSell   float64 `yaml:"partial_tp_sell_pct"`
		TrailingStopPct float64 `yaml:"trailing_stop_pct"`
		MaxHoldSeconds  int64   `yaml:"max_hold_seconds"`
		UseDynamicTPSL  bool    `yaml:"use_dynamic_tp_sl"`
		TPATRMult       float64 `yaml:"tp_atr_mult"`
		SLATRMult       float64 `yaml:"sl_atr_mult"`
	} `yaml:"exits"`

	Timing struct {
		PollIntervalSeconds int64 `yaml:"poll_interval_seconds"`
		CooldownSeconds     int64 `yaml:"cooldown_seconds"`
		MaxTradesPerDay     int   `yaml:"max_trades_per_day"`
	} `yaml:"timing"`

	Execution struct {
		DryRun             bool    `yaml:"dry_run"`
		SimFeePctRoundtrip float64 `yaml:"sim_fee_pct_roundtrip"`
		SimInitialQuote    float64 `yaml:"sim_initial_quote"`
	} `yaml:"execution"`

	API struct {
		Base                   string `yaml:"base"`
		RateLimitMinDelayMs    int64  `yaml:"rate_limit_min_delay_ms"`
		MaxConsecutiveFailures int    `yaml:"max_consecutive_failures"`
		StalePriceSeconds      int64  `yaml:"stale_price_seconds"`
		UseWSFeed              bool   `yaml:"use_ws_feed"`
		WSEndpoint             string `yaml:"ws_endpoint"`
	} `yaml:"api"`

	Files struct {
		StateFile      string `yaml:"state_file"`
		StatusFile     string `yaml:"status_file"`
		JournalFile    string `yaml:"journal_file"`
		KillSwitchFile string `yaml:"kill_switch_file"`
		LogFile        string `yaml:"log_file"`
	} `yaml:"files"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Default() *Config {
	cfg := &Config{}

	cfg.Trading.Pair = "XXBTZCAD"
	cfg.Trading.TakeProfitPct = 0.015
	cfg.Trading.StopLossPct = 0.006
	cfg.Trading.RebuyResetPct = 0.006

	cfg.Filters.TrendWindowShort = 20
	cfg.Filters.TrendWindowLong = 50
	cfg.Filters.RequireTrendUp = true
	cfg.Filters.ATRWindow = 14
	cfg.Filters.MinATRPct = 0.003
	cfg.Filters.MaxSpreadPct = 0.002

	cfg.Sizing.RiskPerTradePct = 0.01
	cfg.Sizing.MaxPositionPct = 0.90
	cfg.Sizing.MinReservePct = 0.02

	cfg.Exits.PartialTPPct = 0.01
	cfg.Exits.PartialTPSell = 0.5
	cfg.Exits.TrailingStopPct = 0.004
	cfg.Exits.MaxHoldSeconds = 3600
	cfg.Exits.UseDynamicTPSL = true
	cfg.Exits.TPATRMult = 2.0
	cfg.Exits.SLATRMult = 1.2

	cfg.Timing.PollIntervalSeconds = 5
	cfg.Timing.CooldownSeconds = 600
	cfg.Timing.MaxTradesPerDay = 3

	cfg.Execution.DryRun = true
	cfg.Execution.SimFeePctRoundtrip = 0.004
	cfg.Execution.SimInitialQuote = 1000.0

	cfg.API.Base = "https://api.kraken.com"
	cfg.API.RateLimitMinDelayMs = 500
	cfg.API.MaxConsecutiveFailures = 10
	cfg.API.StalePriceSeconds = 30
	cfg.API.WSEndpoint = "wss://ws.kraken.com"

	cfg.Files.StateFile = "state.json"
	cfg.Files.StatusFile = "status.json"
	cfg.Files.JournalFile = "bot.db"
	cfg.Files.KillSwitchFile = "KILL_SWITCH"

	cfg.Logging.Level = "info"

	return cfg
}

// Load reads the YAML config at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Trading.Pair == "" {
		return fmt.Errorf("trading.pair is required")
	}
	if err := pctInRange("trading.take_profit_pct", c.Trading.TakeProfitPct); err != nil {
		return err
	}
	if err := pctInRange("trading.stop_loss_pct", c.Trading.StopLossPct); err != nil {
		return err
	}
	if err := pctInRange("sizing.risk_per_trade_pct", c.Sizing.RiskPerTradePct); err != nil {
		return err
	}
	if c.Sizing.MaxPositionPct <= 0 || c.Sizing.MaxPositionPct > 1 {
		return fmt.Errorf("sizing.max_position_pct must be in (0, 1]")
	}
	if c.Filters.TrendWindowShort <= 0 || c.Filters.TrendWindowLong <= 0 {
		return fmt.Errorf("filters trend windows must be positive")
	}
	if c.Filters.TrendWindowShort > c.Filters.TrendWindowLong {
		return fmt.Errorf("filters.trend_window_short must not exceed trend_window_long")
	}
	if c.Filters.ATRWindow <= 0 {
		return fmt.Errorf("filters.atr_window must be positive")
	}
	if c.Timing.PollIntervalSeconds <= 0 {
		return fmt.Errorf("timing.poll_interval_seconds must be positive")
	}
	if c.Timing.MaxTradesPerDay <= 0 {
		return fmt.Errorf("timing.max_trades_per_day must be positive")
	}
	if c.API.RateLimitMinDelayMs < 0 {
		return fmt.Errorf("api.rate_limit_min_delay_ms must not be negative")
	}
	if c.Files.StateFile == "" {
		return fmt.Errorf("files.state_file is required")
	}
	return nil
}

func pctInRange(name string, v float64) error {
	if v < 0 || v >= 1 {
		return fmt.Errorf("%s must be in [0, 1)", name)
	}
	return nil
}
