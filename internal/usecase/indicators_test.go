package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndicators_ATRFromAbsoluteMoves(t *testing.T) {
	ind := NewIndicators(2, 3, 3)

	ind.Update(100)
	assert.Zero(t, ind.ATR(), "no true range until a second sample")

	ind.Update(102) // TR 2
	ind.Update(99)  // TR 3
	ind.Update(100) // TR 1

	assert.InDelta(t, 2.0, ind.ATR(), 1e-9)

	ind.Update(100) // TR 0, evicts the 2
	assert.InDelta(t, 4.0/3.0, ind.ATR(), 1e-9)
}

func TestIndicators_SMAUnavailableUntilLongWindowFull(t *testing.T) {
	ind := NewIndicators(2, 4, 14)

	for _, p := range []float64{10, 20, 30} {
		ind.Update(p)
		assert.Zero(t, ind.SMAShort())
		assert.Zero(t, ind.SMALong())
	}

	ind.Update(40)
	assert.InDelta(t, 35.0, ind.SMAShort(), 1e-9) // mean of 30, 40
	assert.InDelta(t, 25.0, ind.SMALong(), 1e-9)  // mean of 10..40
}

func TestIndicators_WindowEviction(t *testing.T) {
	ind := NewIndicators(1, 3, 14)

	for _, p := range []float64{1, 2, 3, 4, 5} {
		ind.Update(p)
	}

	assert.InDelta(t, 4.0, ind.SMALong(), 1e-9) // 3, 4, 5
	assert.InDelta(t, 5.0, ind.SMAShort(), 1e-9)
}

func TestIndicators_IgnoresNonPositivePrices(t *testing.T) {
	ind := NewIndicators(1, 2, 2)

	ind.Update(100)
	ind.Update(0)
	ind.Update(-5)
	ind.Update(110)

	assert.InDelta(t, 10.0, ind.ATR(), 1e-9)
	assert.InDelta(t, 105.0, ind.SMALong(), 1e-9)
}

func TestSpreadPct(t *testing.T) {
	assert.InDelta(t, 10.0/100.0, SpreadPct(95, 105), 1e-9)
	assert.Zero(t, SpreadPct(0, 105))
	assert.Zero(t, SpreadPct(95, 0))
	assert.Zero(t, SpreadPct(105, 95), "crossed book yields no spread")
}
