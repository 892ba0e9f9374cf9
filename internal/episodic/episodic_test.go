package episodic

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -1, -100} {
		if _, err := New(c, zap.NewNop()); !errors.Is(err, ErrCapacityConfig) {
			t.Errorf("capacity %d: got %v, want ErrCapacityConfig", c, err)
		}
	}
}

func TestAddEvictsToCapacity(t *testing.T) {
	const capacity = 5
	store, err := New(capacity, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		store.Add(Episode{
			Utterance:  fmt.Sprintf("utterance %d", i),
			Importance: 1 + i%3,
		})
	}

	if got := store.Len(); got != capacity {
		t.Fatalf("got %d episodes, want exactly %d", got, capacity)
	}
}

func TestEvictionKeepsHighestScores(t *testing.T) {
	store, err := New(3, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	// Stale but major episode vs fresh but minor episodes. Pure-importance
	// ordering would evict the fresh ones; score = importance/age must not.
	staleMajor := Episode{ID: "stale-major", Timestamp: now.Add(-200 * time.Hour), Importance: 3, Utterance: "old milestone"}
	freshMinor1 := Episode{ID: "fresh-1", Timestamp: now.Add(-1 * time.Minute), Importance: 1, Utterance: "recent chat"}
	freshMinor2 := Episode{ID: "fresh-2", Timestamp: now.Add(-2 * time.Minute), Importance: 1, Utterance: "recent chat"}
	freshMinor3 := Episode{ID: "fresh-3", Timestamp: now.Add(-3 * time.Minute), Importance: 1, Utterance: "recent chat"}

	store.Add(staleMajor)
	store.Add(freshMinor1)
	store.Add(freshMinor2)
	store.Add(freshMinor3)

	kept := store.All()
	if len(kept) != 3 {
		t.Fatalf("got %d kept, want 3", len(kept))
	}
	for _, ep := range kept {
		if ep.ID == "stale-major" {
			t.Errorf("stale-major (score %.4f) retained over a fresh episode", score(staleMajor, now))
		}
	}

	// No retained episode may score lower than any evicted one.
	evictedScore := score(staleMajor, now)
	for _, ep := range kept {
		if score(ep, now) < evictedScore {
			t.Errorf("retained %s scores %.4f, below evicted %.4f", ep.ID, score(ep, now), evictedScore)
		}
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store, err := New(10, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		store.Add(Episode{Utterance: fmt.Sprintf("u%d", i)})
	}

	recent := store.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("got %d, want 2", len(recent))
	}
	if recent[0].Utterance != "u3" || recent[1].Utterance != "u2" {
		t.Errorf("got %q,%q; want newest first u3,u2", recent[0].Utterance, recent[1].Utterance)
	}
}

func TestRecentBounds(t *testing.T) {
	store, err := New(10, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	store.Add(Episode{Utterance: "only"})

	for _, n := range []int{-1, -100, 0} {
		if got := store.Recent(n); len(got) != 0 {
			t.Errorf("Recent(%d): got %d episodes, want 0", n, len(got))
		}
	}
	if got := store.Recent(5); len(got) != 1 {
		t.Errorf("Recent(5): got %d episodes, want 1", len(got))
	}
}

func TestImportanceClamped(t *testing.T) {
	store, err := New(10, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	low := store.Add(Episode{Importance: 0})
	high := store.Add(Episode{Importance: 9})
	if low.Importance != 1 {
		t.Errorf("got %d, want 1", low.Importance)
	}
	if high.Importance != 3 {
		t.Errorf("got %d, want 3", high.Importance)
	}
}

func TestRestoreReappliesCapacity(t *testing.T) {
	store, err := New(2, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	snapshot := []Episode{
		{ID: "a", Timestamp: time.Now(), Importance: 1},
		{ID: "b", Timestamp: time.Now(), Importance: 2},
		{ID: "c", Timestamp: time.Now().Add(-100 * time.Hour), Importance: 1},
	}
	store.Restore(snapshot)
	if got := store.Len(); got != 2 {
		t.Fatalf("got %d after restore, want 2", got)
	}
}
