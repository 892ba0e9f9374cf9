package knowledge

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxTriples bounds the in-memory graph before eviction.
const DefaultMaxTriples = 20000

// MemoryGraph is an in-process Graph. Duplicate detection is O(1) amortized
// via an identity-key map maintained alongside storage; queries by entity go
// through an entity index rather than a scan.
type MemoryGraph struct {
	maxTriples int
	logger     *zap.Logger

	mu      sync.Mutex
	triples []Triple
	keys    map[string]int   // identity key → index into triples
	byTerm  map[string][]int // subject/object → indices
}

// NewMemoryGraph creates an empty graph. maxTriples <= 0 uses DefaultMaxTriples.
func NewMemoryGraph(maxTriples int, logger *zap.Logger) *MemoryGraph {
	if maxTriples <= 0 {
		maxTriples = DefaultMaxTriples
	}
	return &MemoryGraph{
		maxTriples: maxTriples,
		logger:     logger,
		keys:       make(map[string]int),
		byTerm:     make(map[string][]int),
	}
}

// Upsert inserts a fact or, when the (s,p,o) identity already exists, merges
// it: bounded confidence increase plus LastSeen update. A second record is
// never created.
func (g *MemoryGraph) Upsert(_ context.Context, subject, predicate, object string, confidence float64, source string) error {
	subject = normalizeTerm(subject)
	predicate = normalizeTerm(predicate)
	object = normalizeTerm(object)
	if subject == "" || predicate == "" || object == "" {
		return nil
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	now := time.Now()
	key := identityKey(subject, predicate, object)

	g.mu.Lock()
	defer g.mu.Unlock()

	if idx, ok := g.keys[key]; ok {
		t := &g.triples[idx]
		t.Confidence = mergeConfidence(t.Confidence, confidence)
		t.LastSeen = now
		return nil
	}

	if len(g.triples) >= g.maxTriples {
		g.evictWeakestLocked()
	}

	idx := len(g.triples)
	g.triples = append(g.triples, Triple{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Confidence: confidence,
		Source:     source,
		FirstSeen:  now,
		LastSeen:   now,
	})
	g.keys[key] = idx
	g.byTerm[subject] = append(g.byTerm[subject], idx)
	g.byTerm[object] = append(g.byTerm[object], idx)

	g.logger.Debug("fact stored",
		zap.String("subject", subject),
		zap.String("predicate", predicate),
		zap.String("object", object))
	return nil
}

// Query returns every triple matching the pattern. Subject/object lookups use
// the entity index.
func (g *MemoryGraph) Query(_ context.Context, p Pattern) ([]Triple, error) {
	subject := normalizeTerm(p.Subject)
	predicate := normalizeTerm(p.Predicate)
	object := normalizeTerm(p.Object)

	g.mu.Lock()
	defer g.mu.Unlock()

	var candidates []int
	switch {
	case subject != "":
		candidates = g.byTerm[subject]
	case object != "":
		candidates = g.byTerm[object]
	default:
		candidates = make([]int, len(g.triples))
		for i := range g.triples {
			candidates[i] = i
		}
	}

	var out []Triple
	for _, idx := range candidates {
		t := g.triples[idx]
		if subject != "" && t.Subject != subject {
			continue
		}
		if predicate != "" && t.Predicate != predicate {
			continue
		}
		if object != "" && t.Object != object {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Len reports the number of stored triples.
func (g *MemoryGraph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.triples)
}

// evictWeakestLocked drops the 10% lowest-confidence triples and rebuilds the
// indexes. Caller holds the lock.
func (g *MemoryGraph) evictWeakestLocked() {
	count := len(g.triples) / 10
	if count < 1 {
		count = 1
	}

	order := make([]int, len(g.triples))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return g.triples[order[i]].Confidence < g.triples[order[j]].Confidence
	})

	drop := make(map[int]bool, count)
	for _, idx := range order[:count] {
		drop[idx] = true
	}

	kept := make([]Triple, 0, len(g.triples)-count)
	for i, t := range g.triples {
		if !drop[i] {
			kept = append(kept, t)
		}
	}
	g.triples = kept
	g.rebuildIndexesLocked()
	g.logger.Debug("knowledge eviction", zap.Int("evicted", count))
}

func (g *MemoryGraph) rebuildIndexesLocked() {
	g.keys = make(map[string]int, len(g.triples))
	g.byTerm = make(map[string][]int)
	for i, t := range g.triples {
		g.keys[identityKey(t.Subject, t.Predicate, t.Object)] = i
		g.byTerm[t.Subject] = append(g.byTerm[t.Subject], i)
		g.byTerm[t.Object] = append(g.byTerm[t.Object], i)
	}
}

// Snapshot returns a copy of all triples for persistence.
func (g *MemoryGraph) Snapshot() []Triple {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Triple, len(g.triples))
	copy(out, g.triples)
	return out
}

// Restore replaces graph contents from a persisted snapshot.
func (g *MemoryGraph) Restore(triples []Triple) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triples = make([]Triple, len(triples))
	copy(g.triples, triples)
	g.rebuildIndexesLocked()
}
