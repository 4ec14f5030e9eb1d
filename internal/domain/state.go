package domain

import "time"

type Mode string

const (
	ModeFlat Mode = "FLAT"
	ModeLong Mode = "LONG"
)

func ParseMode(s string) Mode {
	if s == string(ModeLong) {
		return ModeLong
	}
	return ModeFlat
}

// TradingState is the durable record of the bot's position. There is exactly
// one instance, owned by the main loop; it is mutated only on confirmed fills
// or by startup reconciliation.
type TradingState struct {
	Mode              Mode     `json:"mode"`
	EntryPrice        *float64 `json:"entry_price"`
	ExitPrice         *float64 `json:"exit_price"`
	TrailingStopPrice *float64 `json:"trailing_stop_price"`
	BaseAmount        float64  `json:"base_amount"`
	EntryTime         *int64   `json:"entry_time"`
	LastTradeTime     *int64   `json:"last_trade_time"`
	TradesToday       int      `json:"trades_today"`
	TradesDate        string   `json:"trades_date"` // YYYY-MM-DD, local calendar

	PartialTakeProfitDone bool `json:"partial_take_profit_done"`

	// Simulated balances, used only in dry-run mode. They share the state
	// shape with live trading so both paths persist identically.
	SimQuoteBalance float64 `json:"sim_quote_balance"`
	SimBaseBalance  float64 `json:"sim_base_balance"`
}

func DefaultState() *TradingState {
	return &TradingState{
		Mode:       ModeFlat,
		TradesDate: todayDate(),
	}
}

func todayDate() string {
	return time.Now().Format("2006-01-02")
}

// CheckDateRollover resets the daily trade counter when the local calendar
// date changes. Returns true if a rollover happened.
func (s *TradingState) CheckDateRollover() bool {
	today := todayDate()
	if s.TradesDate == today {
		return false
	}
	s.TradesToday = 0
	s.TradesDate = today
	return true
}

func (s *TradingState) IsInCooldown(cooldown time.Duration) bool {
	return s.CooldownRemaining(cooldown) > 0
}

// CooldownRemaining returns how long until the post-trade cooldown expires,
// zero if no trade has happened or the cooldown has elapsed. Elapsed time is
// counted in whole seconds, matching the epoch-seconds resolution of
// LastTradeTime.
func (s *TradingState) CooldownRemaining(cooldown time.Duration) time.Duration {
	if s.LastTradeTime == nil {
		return 0
	}
	elapsed := time.Duration(time.Now().Unix()-*s.LastTradeTime) * time.Second
	if remaining := cooldown - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// Clone returns a deep copy. The executor snapshots state before an order
// attempt so an unconfirmed fill can never leave a partial mutation behind.
func (s *TradingState) Clone() *TradingState {
	c := *s
	c.EntryPrice = cloneFloat(s.EntryPrice)
	c.ExitPrice = cloneFloat(s.ExitPrice)
	c.TrailingStopPrice = cloneFloat(s.TrailingStopPrice)
	c.EntryTime = cloneInt(s.EntryTime)
	c.LastTradeTime = cloneInt(s.LastTradeTime)
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func Float(v float64) *float64 { return &v }

func Int(v int64) *int64 { return &v }
