// Package persist saves and restores the core's memory state. The core owns
// the record schemas; backends only move bytes.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/nidhogg/noema/internal/episodic"
	"github.com/nidhogg/noema/internal/knowledge"
	"github.com/nidhogg/noema/internal/strategy"
	"github.com/nidhogg/noema/internal/thread"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("no snapshot found")

// Snapshot is the full persisted state of the memory subsystems.
type Snapshot struct {
	Episodes   []episodic.Episode `json:"episodes"`
	Triples    []knowledge.Triple `json:"triples"`
	Threads    []thread.Thread    `json:"threads"`
	Strategies []strategy.Record  `json:"strategies"`
	SavedAt    time.Time          `json:"saved_at"`
}

// Backend stores snapshots. Save overwrites; Load returns the latest.
type Backend interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}
