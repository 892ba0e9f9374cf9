package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nidhogg/noema/internal/episodic"
	"github.com/nidhogg/noema/internal/knowledge"
	"github.com/nidhogg/noema/internal/strategy"
	"github.com/nidhogg/noema/internal/thread"
	"go.uber.org/zap"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Episodes: []episodic.Episode{
			{ID: "ep-1", Timestamp: time.Now().Add(-time.Hour), Utterance: "hi", Response: "hello", Importance: 2},
		},
		Triples: []knowledge.Triple{
			{Subject: "user", Predicate: "lives_in", Object: "berlin", Confidence: 0.8},
		},
		Threads: []thread.Thread{
			{ID: "th-1", Topic: "hi", Archived: true},
		},
		Strategies: []strategy.Record{
			{Name: "direct", Attempts: 4, MeanReward: 0.75},
		},
	}
}

// testBackendRoundTrip is the shared suite run against every Backend.
func testBackendRoundTrip(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty backend load: got %v, want ErrNotFound", err)
	}

	want := sampleSnapshot()
	if err := b.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Episodes) != 1 || got.Episodes[0].ID != "ep-1" {
		t.Errorf("episodes %v", got.Episodes)
	}
	if len(got.Triples) != 1 || got.Triples[0].Object != "berlin" {
		t.Errorf("triples %v", got.Triples)
	}
	if len(got.Threads) != 1 || !got.Threads[0].Archived {
		t.Errorf("threads %v", got.Threads)
	}
	if len(got.Strategies) != 1 || got.Strategies[0].Attempts != 4 {
		t.Errorf("strategies %v", got.Strategies)
	}
	if got.SavedAt.IsZero() {
		t.Error("SavedAt not set on save")
	}

	// Latest save wins.
	second := sampleSnapshot()
	second.Episodes[0].ID = "ep-2"
	if err := b.Save(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = b.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Episodes[0].ID != "ep-2" {
		t.Errorf("stale snapshot returned: %v", got.Episodes)
	}
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	testBackendRoundTrip(t, NewFileBackend(path, zap.NewNop()))
}

func TestFileBackendLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(filepath.Join(dir, "snapshot.json"), zap.NewNop())
	if err := b.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}
