package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/kraken_spot_bot/internal/domain"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_SaveAndListTrades(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	first := &domain.TradeRecord{
		TxID:      "TX-1",
		Pair:      "XXBTZCAD",
		Side:      "buy",
		Volume:    0.0105,
		Price:     85010.2,
		Fee:       0.37,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	second := &domain.TradeRecord{
		TxID:      "TX-2",
		Pair:      "XXBTZCAD",
		Side:      "sell",
		Volume:    0.0105,
		Price:     85260.0,
		Fee:       0.41,
		Simulated: true,
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, j.SaveTrade(ctx, first))
	require.NoError(t, j.SaveTrade(ctx, second))
	assert.NotEmpty(t, first.ID, "missing trade IDs are generated")

	trades, err := j.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Newest first.
	assert.Equal(t, "TX-2", trades[0].TxID)
	assert.Equal(t, "sell", trades[0].Side)
	assert.True(t, trades[0].Simulated)
	assert.Equal(t, "TX-1", trades[1].TxID)
	assert.InDelta(t, 85010.2, trades[1].Price, 1e-9)
}

func TestJournal_ListTradesHonorsLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.SaveTrade(ctx, &domain.TradeRecord{
			TxID:      "TX",
			Pair:      "XXBTZCAD",
			Side:      "buy",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	trades, err := j.ListTrades(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}

func TestJournal_SaveCycle(t *testing.T) {
	j := newTestJournal(t)

	err := j.SaveCycle(context.Background(), &domain.CycleRecord{
		Price:     85000,
		Mode:      "FLAT",
		Decision:  "BLOCKED",
		Reason:    "Cooldown active: 300s remaining",
		CreatedAt: time.Now().UTC(),
	})
	assert.NoError(t, err)
}
