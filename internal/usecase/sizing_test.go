package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSizingParams() SizingParams {
	return SizingParams{
		RiskPerTradePct: 0.01,
		StopLossPct:     0.006,
		MaxPositionPct:  0.90,
		MinReservePct:   0.02,
	}
}

func TestComputeSizing_WorkedExample(t *testing.T) {
	// equity=1000, risk 1%, stop loss 0.6%, max position 90%
	// -> risk=10, raw=1666.67, max=900 -> position=900
	s := ComputeSizing(1000, 1000, 85000, defaultSizingParams())

	assert.InDelta(t, 10.0, s.RiskAmount, 1e-9)
	assert.InDelta(t, 1666.6667, s.RawPosition, 0.001)
	assert.InDelta(t, 900.0, s.MaxPosition, 1e-9)
	assert.InDelta(t, 900.0, s.Position, 1e-9)
	assert.InDelta(t, 900.0/85000, s.BaseToBuy, 1e-12)
}

func TestComputeSizing_CapsHold(t *testing.T) {
	cases := []struct {
		equity    float64
		available float64
	}{
		{0, 0},
		{100, 100},
		{1000, 500},
		{5000, 5000},
		{250000, 250000},
	}

	for _, tc := range cases {
		s := ComputeSizing(tc.equity, tc.available, 85000, defaultSizingParams())
		assert.LessOrEqual(t, s.Position, s.MaxPosition)
		assert.LessOrEqual(t, s.Position, s.RawPosition)
	}
}

func TestComputeSizing_ZeroStopLoss(t *testing.T) {
	p := defaultSizingParams()
	p.StopLossPct = 0

	s := ComputeSizing(1000, 1000, 85000, p)

	require.False(t, s.CanTrade)
	assert.Zero(t, s.RawPosition)
	assert.Zero(t, s.Position)
	assert.False(t, math.IsNaN(s.Position))
	assert.False(t, math.IsInf(s.Position, 0))
	assert.False(t, math.IsNaN(s.BaseToBuy))
}

func TestComputeSizing_InsufficientFunds(t *testing.T) {
	// Position would be 900 but only 100 available.
	s := ComputeSizing(1000, 100, 85000, defaultSizingParams())

	require.False(t, s.CanTrade)
	assert.Contains(t, s.BlockReason, "Insufficient funds")
}

func TestComputeSizing_FeeBufferFloor(t *testing.T) {
	// 2% of 10 equity is 0.20, below the 1.00 absolute minimum.
	s := ComputeSizing(10, 10, 85000, defaultSizingParams())
	assert.InDelta(t, 1.0, s.FeeBuffer, 1e-9)
}

func TestComputeSizing_ZeroPrice(t *testing.T) {
	s := ComputeSizing(1000, 1000, 0, defaultSizingParams())
	assert.Zero(t, s.BaseToBuy)
	assert.False(t, math.IsInf(s.BaseToBuy, 0))
}
