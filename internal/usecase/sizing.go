package usecase

import (
	"fmt"

	"github.com/vitos/kraken_spot_bot/internal/domain"
)

const (
	// minFeeBuffer is the absolute floor of the fee reserve, in quote units.
	minFeeBuffer = 1.0
	// minOrderValue is the smallest position worth placing, in quote units.
	minOrderValue = 1.0
)

// SizingParams are the risk knobs for position sizing.
type SizingParams struct {
	RiskPerTradePct float64
	StopLossPct     float64
	MaxPositionPct  float64
	MinReservePct   float64
}

// ComputeSizing converts equity and available quote balance into a position
// size and a trade/no-trade verdict. The raw size is the position at which a
// stop-loss move costs exactly the per-trade risk amount; it is then capped
// at a fraction of total equity.
func ComputeSizing(equity, available, price float64, p SizingParams) domain.PositionSizing {
	s := domain.PositionSizing{
		Equity:    equity,
		Available: available,
	}

	s.FeeBuffer = equity * p.MinReservePct
	if s.FeeBuffer < minFeeBuffer {
		s.FeeBuffer = minFeeBuffer
	}

	s.RiskAmount = equity * p.RiskPerTradePct

	if p.StopLossPct > 0 {
		s.RawPosition = s.RiskAmount / p.StopLossPct
	}

	s.MaxPosition = equity * p.MaxPositionPct

	s.Position = s.RawPosition
	if s.MaxPosition < s.Position {
		s.Position = s.MaxPosition
	}

	if price > 0 {
		s.BaseToBuy = s.Position / price
	}

	required := s.Position + s.FeeBuffer
	switch {
	case available < required:
		s.BlockReason = fmt.Sprintf("Insufficient funds: need %.2f, have %.2f", required, available)
	case s.Position < minOrderValue:
		s.BlockReason = fmt.Sprintf("Position size too small: %.2f", s.Position)
	default:
		s.CanTrade = true
	}

	return s
}
