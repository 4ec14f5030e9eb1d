package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeLong, ParseMode("LONG"))
	assert.Equal(t, ModeFlat, ParseMode("FLAT"))
	assert.Equal(t, ModeFlat, ParseMode("garbage"))
	assert.Equal(t, ModeFlat, ParseMode(""))
}

func TestCheckDateRollover(t *testing.T) {
	s := DefaultState()
	s.TradesToday = 3

	assert.False(t, s.CheckDateRollover())
	assert.Equal(t, 3, s.TradesToday)

	s.TradesDate = "2020-01-01"
	assert.True(t, s.CheckDateRollover())
	assert.Zero(t, s.TradesToday)
	assert.Equal(t, time.Now().Format("2006-01-02"), s.TradesDate)
}

func TestCooldownRemaining(t *testing.T) {
	s := DefaultState()
	assert.Zero(t, s.CooldownRemaining(10*time.Minute), "no trade yet means no cooldown")
	assert.False(t, s.IsInCooldown(10*time.Minute))

	// Last trade 300s ago with a 600s cooldown: exactly 300s remain,
	// regardless of the wall clock's sub-second fraction.
	s.LastTradeTime = Int(time.Now().Unix() - 300)
	assert.Equal(t, 300*time.Second, s.CooldownRemaining(600*time.Second))
	assert.True(t, s.IsInCooldown(600*time.Second))

	s.LastTradeTime = Int(time.Now().Unix() - 601)
	assert.Zero(t, s.CooldownRemaining(600*time.Second))
	assert.False(t, s.IsInCooldown(600*time.Second))
}

func TestClone_IsDeep(t *testing.T) {
	s := DefaultState()
	s.Mode = ModeLong
	s.EntryPrice = Float(84000)
	s.LastTradeTime = Int(1700000000)

	c := s.Clone()
	require.Equal(t, s, c)

	*c.EntryPrice = 1
	*c.LastTradeTime = 2
	c.Mode = ModeFlat

	assert.InDelta(t, 84000.0, *s.EntryPrice, 1e-9)
	assert.Equal(t, int64(1700000000), *s.LastTradeTime)
	assert.Equal(t, ModeLong, s.Mode)
}

func TestState_JSONOptionalFieldsAreNull(t *testing.T) {
	data, err := json.Marshal(DefaultState())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Nil(t, m["entry_price"])
	assert.Nil(t, m["exit_price"])
	assert.Nil(t, m["trailing_stop_price"])
	assert.Nil(t, m["last_trade_time"])
	assert.Equal(t, "FLAT", m["mode"])
}

func TestState_JSONRoundTripKeepsPointers(t *testing.T) {
	s := DefaultState()
	s.Mode = ModeLong
	s.EntryPrice = Float(84123.5)
	s.EntryTime = Int(1700000000)
	s.BaseAmount = 0.0105

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back TradingState
	require.NoError(t, json.Unmarshal(data, &back))

	require.NotNil(t, back.EntryPrice)
	assert.InDelta(t, 84123.5, *back.EntryPrice, 1e-9)
	assert.Nil(t, back.ExitPrice)
	assert.Equal(t, ModeLong, back.Mode)
}
