package episodic

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCapacityConfig is returned when a store is constructed with a
// non-positive capacity.
var ErrCapacityConfig = errors.New("episodic: capacity must be positive")

// ageFloorHours prevents division blow-ups for episodes younger than six minutes.
const ageFloorHours = 0.1

// Episode is one completed request/response record. Episodes are immutable
// after Add; the store only ever evicts them.
type Episode struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Utterance  string    `json:"utterance"`
	Response   string    `json:"response"`
	Importance int       `json:"importance"` // 1..3
	HadError   bool      `json:"had_error"`
	Tags       []string  `json:"tags,omitempty"`
}

// Store is a bounded log of episodes with recency-and-importance eviction.
type Store struct {
	capacity int
	logger   *zap.Logger

	mu       sync.Mutex
	episodes []Episode
}

// New creates a Store holding at most capacity episodes.
func New(capacity int, logger *zap.Logger) (*Store, error) {
	if capacity <= 0 {
		return nil, ErrCapacityConfig
	}
	return &Store{
		capacity: capacity,
		logger:   logger,
		episodes: make([]Episode, 0, capacity),
	}, nil
}

// Add appends an episode, assigning an ID and timestamp if missing, and
// evicts the lowest-scoring entries while the store is over capacity.
// The whole sequence runs under one lock so readers never observe an
// over-capacity store.
func (s *Store) Add(ep Episode) Episode {
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	if ep.Timestamp.IsZero() {
		ep.Timestamp = time.Now()
	}
	if ep.Importance < 1 {
		ep.Importance = 1
	}
	if ep.Importance > 3 {
		ep.Importance = 3
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes = append(s.episodes, ep)
	s.evictLocked(time.Now())
	return ep
}

// score balances importance against age: fresh minor episodes outrank stale
// major ones once enough hours pass.
func score(ep Episode, now time.Time) float64 {
	ageHours := now.Sub(ep.Timestamp).Hours()
	if ageHours < ageFloorHours {
		ageHours = ageFloorHours
	}
	return float64(ep.Importance) / ageHours
}

// evictLocked removes lowest-scoring episodes until size <= capacity.
// Caller holds the lock.
func (s *Store) evictLocked(now time.Time) {
	if len(s.episodes) <= s.capacity {
		return
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(s.episodes))
	for i, ep := range s.episodes {
		ranked[i] = scored{i, score(ep, now)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	drop := make(map[int]bool, len(s.episodes)-s.capacity)
	for _, r := range ranked[:len(s.episodes)-s.capacity] {
		drop[r.idx] = true
	}

	kept := make([]Episode, 0, s.capacity)
	for i, ep := range s.episodes {
		if !drop[i] {
			kept = append(kept, ep)
		}
	}
	s.logger.Debug("episodic eviction",
		zap.Int("evicted", len(s.episodes)-len(kept)),
		zap.Int("kept", len(kept)))
	s.episodes = kept
}

// Recent returns up to n episodes, newest first. A non-positive n yields an
// empty slice.
func (s *Store) Recent(n int) []Episode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(s.episodes) {
		n = len(s.episodes)
	}
	out := make([]Episode, n)
	for i := 0; i < n; i++ {
		out[i] = s.episodes[len(s.episodes)-1-i]
	}
	return out
}

// All returns a consistent snapshot of every stored episode, oldest first.
func (s *Store) All() []Episode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Episode, len(s.episodes))
	copy(out, s.episodes)
	return out
}

// Len reports the current number of episodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.episodes)
}

// Capacity reports the configured maximum.
func (s *Store) Capacity() int { return s.capacity }

// Restore replaces the store contents from a persisted snapshot, re-running
// eviction so a snapshot from a larger store still fits.
func (s *Store) Restore(episodes []Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes = make([]Episode, len(episodes))
	copy(s.episodes, episodes)
	s.evictLocked(time.Now())
}
