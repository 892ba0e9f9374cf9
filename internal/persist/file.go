package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// FileBackend keeps the snapshot as one JSON file, written atomically via
// temp file + rename.
type FileBackend struct {
	path   string
	logger *zap.Logger
}

// NewFileBackend creates a backend writing to path. Parent directories are
// created on first save.
func NewFileBackend(path string, logger *zap.Logger) *FileBackend {
	return &FileBackend{path: path, logger: logger}
}

func (f *FileBackend) Save(_ context.Context, snap *Snapshot) error {
	snap.SavedAt = time.Now()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	f.logger.Debug("snapshot saved",
		zap.String("path", f.path),
		zap.Int("bytes", len(data)))
	return nil
}

func (f *FileBackend) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
