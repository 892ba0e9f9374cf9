// Package strategy picks a response strategy per request using UCB1 over a
// closed vocabulary and learns from shaped reward feedback.
package strategy

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// DefaultNames is the closed strategy vocabulary.
var DefaultNames = []string{"direct", "tool_use", "web_search", "delegate", "creative"}

// DefaultExploration is the UCB1 exploration constant.
const DefaultExploration = 1.4

// NameError reports a strategy name outside the configured vocabulary.
// It is always loud; stats are never updated for an unknown name.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("unknown strategy %q", e.Name)
}

// Record is the learned state of one strategy.
type Record struct {
	Name       string  `json:"name"`
	Attempts   int     `json:"attempts"`
	MeanReward float64 `json:"mean_reward"`
}

// Selector runs UCB1 over the strategy vocabulary.
type Selector struct {
	exploration float64
	logger      *zap.Logger

	mu    sync.Mutex
	order []string
	stats map[string]*Record
}

// New creates a selector over the given vocabulary. Empty or duplicate names
// are rejected; nil names uses DefaultNames, exploration <= 0 uses
// DefaultExploration.
func New(names []string, exploration float64, logger *zap.Logger) (*Selector, error) {
	if len(names) == 0 {
		names = DefaultNames
	}
	if exploration <= 0 {
		exploration = DefaultExploration
	}

	s := &Selector{
		exploration: exploration,
		logger:      logger,
		stats:       make(map[string]*Record, len(names)),
	}
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("empty strategy name in vocabulary")
		}
		if _, dup := s.stats[name]; dup {
			return nil, fmt.Errorf("duplicate strategy name %q", name)
		}
		s.order = append(s.order, name)
		s.stats[name] = &Record{Name: name}
	}
	return s, nil
}

// Choose returns the next strategy to try. Every strategy is tried once
// before UCB1 scoring kicks in; untried strategies are taken in vocabulary
// order.
func (s *Selector) Choose() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, name := range s.order {
		rec := s.stats[name]
		if rec.Attempts == 0 {
			s.logger.Debug("strategy exploration", zap.String("strategy", name))
			return name
		}
		total += rec.Attempts
	}

	best := s.order[0]
	bestScore := math.Inf(-1)
	for _, name := range s.order {
		rec := s.stats[name]
		score := rec.MeanReward + s.exploration*math.Sqrt(math.Log(float64(total))/float64(rec.Attempts))
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	s.logger.Debug("strategy chosen", zap.String("strategy", best), zap.Float64("ucb", bestScore))
	return best
}

// RecordOutcome folds a reward in [0,1] into the named strategy's mean.
// An unknown name returns *NameError and changes nothing.
func (s *Selector) RecordOutcome(name string, reward float64) error {
	if reward < 0 {
		reward = 0
	}
	if reward > 1 {
		reward = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.stats[name]
	if !ok {
		return &NameError{Name: name}
	}
	rec.Attempts++
	rec.MeanReward += (reward - rec.MeanReward) / float64(rec.Attempts)
	return nil
}

// Records returns a copy of all strategy stats in vocabulary order.
func (s *Selector) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.stats[name])
	}
	return out
}

// Snapshot is an alias of Records for persistence.
func (s *Selector) Snapshot() []Record {
	return s.Records()
}

// Restore loads persisted stats. Names outside the vocabulary are skipped;
// the vocabulary itself never changes at restore time.
func (s *Selector) Restore(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		rec, ok := s.stats[r.Name]
		if !ok {
			s.logger.Warn("skipping unknown strategy in snapshot", zap.String("strategy", r.Name))
			continue
		}
		rec.Attempts = r.Attempts
		rec.MeanReward = r.MeanReward
	}
}
