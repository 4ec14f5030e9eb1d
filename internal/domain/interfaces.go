package domain

import (
	"context"
	"time"
)

// TickerResult is the outcome of a public ticker fetch. Success is false on
// any transport or parse failure; Err carries the reason.
type TickerResult struct {
	Success   bool
	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	Timestamp int64 // epoch seconds at fetch time
	Err       string
}

type BalanceResult struct {
	Success      bool
	QuoteBalance float64
	BaseBalance  float64
	Err          string
}

type OrderResult struct {
	Success  bool
	TxID     string
	Status   string // open, closed, canceled, expired
	Volume   float64
	AvgPrice float64
	Fee      float64
	Err      string
}

// Exchange defines the typed operations against the exchange REST API.
// Implementations convert every transport, HTTP and parse failure into a
// failed result; they never panic across this boundary.
type Exchange interface {
	GetTicker(ctx context.Context, pair string) TickerResult
	GetBalance(ctx context.Context) BalanceResult
	PlaceMarketOrder(ctx context.Context, pair, side string, volume float64) OrderResult
	QueryOrder(ctx context.Context, txid string) OrderResult

	// ConsecutiveFailures reports the number of exchange calls that have
	// failed in a row; it resets to zero on any success.
	ConsecutiveFailures() int
}

// StateStore persists the TradingState with atomic overwrite semantics.
type StateStore interface {
	Load() (*TradingState, error)
	Save(state *TradingState) error
}

// TradeRecord is one confirmed fill, written to the trade journal.
type TradeRecord struct {
	ID        string
	TxID      string
	Pair      string
	Side      string
	Volume    float64
	Price     float64
	Fee       float64
	Simulated bool
	CreatedAt time.Time
}

// CycleRecord is one decision-cycle audit row.
type CycleRecord struct {
	Price     float64
	Mode      string
	Decision  string
	Reason    string
	CreatedAt time.Time
}

// TradeJournal records fills and decision cycles for after-the-fact audit.
type TradeJournal interface {
	SaveTrade(ctx context.Context, trade *TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error)
	SaveCycle(ctx context.Context, cycle *CycleRecord) error
}
