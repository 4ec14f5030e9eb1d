package domain

type Decision string

const (
	DecisionNoop    Decision = "NOOP"
	DecisionBuy     Decision = "BUY"
	DecisionSell    Decision = "SELL"
	DecisionBlocked Decision = "BLOCKED"
)

// PositionSizing holds the sizing computed for a potential entry.
// All monetary values are in the quote currency.
type PositionSizing struct {
	Equity      float64
	Available   float64
	RiskAmount  float64
	RawPosition float64
	MaxPosition float64
	Position    float64
	FeeBuffer   float64
	BaseToBuy   float64
	CanTrade    bool
	BlockReason string
}

// TradeContext carries everything computed during one decision cycle.
// It is rebuilt from scratch every cycle and never persisted.
type TradeContext struct {
	CurrentPrice   float64
	BidPrice       float64
	AskPrice       float64
	PriceTimestamp int64
	PriceStale     bool

	ATR       float64
	SMAShort  float64
	SMALong   float64
	SpreadPct float64

	TPPrice    float64
	SLPrice    float64
	RebuyPrice float64

	Sizing PositionSizing

	// Exit details, set only when a SELL was decided.
	IsPartialExit bool
	SellVolume    float64

	Decision Decision
	Reason   string
}
