package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/kraken_spot_bot/internal/domain"
)

func TestStateFile_MissingFileYieldsDefaults(t *testing.T) {
	sf := NewStateFile(filepath.Join(t.TempDir(), "state.json"), zap.NewNop())

	state, err := sf.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.ModeFlat, state.Mode)
	assert.Nil(t, state.EntryPrice)
	assert.Zero(t, state.TradesToday)
}

func TestStateFile_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	sf := NewStateFile(path, zap.NewNop())

	state := domain.DefaultState()
	state.Mode = domain.ModeLong
	state.EntryPrice = domain.Float(84123.5)
	state.BaseAmount = 0.0105
	state.TradesToday = 2
	state.SimQuoteBalance = 100

	require.NoError(t, sf.Save(state))

	loaded, err := sf.Load()
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestStateFile_CorruptFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	sf := NewStateFile(path, zap.NewNop())
	state, err := sf.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.ModeFlat, state.Mode)
}

func TestStateFile_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	sf := NewStateFile(path, zap.NewNop())

	state := domain.DefaultState()
	require.NoError(t, sf.Save(state))

	state.TradesToday = 3
	require.NoError(t, sf.Save(state))

	loaded, err := sf.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.TradesToday)
}

func TestWriteAtomic_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteAtomic(path, []byte("hello\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestWriteAtomic_MissingDirectoryFails(t *testing.T) {
	err := WriteAtomic(filepath.Join(t.TempDir(), "no", "such", "dir", "f"), []byte("x"))
	assert.Error(t, err)
}
