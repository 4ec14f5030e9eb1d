package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitos/kraken_spot_bot/internal/domain"
	"go.uber.org/zap"
)

// StateFile persists the TradingState as JSON with atomic overwrite:
// write to a temp file in the same directory, then rename over the target.
type StateFile struct {
	path string
	log  *zap.Logger
}

func NewStateFile(path string, log *zap.Logger) *StateFile {
	return &StateFile{path: path, log: log}
}

// Load reads the persisted state, falling back to defaults when the file is
// missing or unreadable. A corrupt file is logged but never fatal: the
// reconciler repairs position state on the next live start.
func (s *StateFile) Load() (*domain.TradingState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info("state file not found, initializing defaults", zap.String("path", s.path))
			return domain.DefaultState(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := domain.DefaultState()
	if err := json.Unmarshal(data, state); err != nil {
		s.log.Error("failed to parse state file, initializing defaults",
			zap.String("path", s.path), zap.Error(err))
		return domain.DefaultState(), nil
	}

	s.log.Info("loaded state", zap.String("path", s.path))
	return state, nil
}

func (s *StateFile) Save(state *domain.TradingState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := WriteAtomic(s.path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to save state to %s: %w", s.path, err)
	}

	s.log.Debug("state saved", zap.String("path", s.path))
	return nil
}

// WriteAtomic replaces path with data via a same-directory temp file and
// rename, so readers never observe a partially written file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
