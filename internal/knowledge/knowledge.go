// Package knowledge stores deduplicated (subject, predicate, object) facts.
// MemoryGraph keeps the graph in-process with O(1) duplicate detection;
// Neo4jGraph delegates dedup to MERGE on a Neo4j server.
package knowledge

import (
	"context"
	"strings"
	"time"
)

// Triple is one stored fact.
type Triple struct {
	Subject    string    `json:"subject"`
	Predicate  string    `json:"predicate"`
	Object     string    `json:"object"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// Pattern matches triples; empty fields match anything.
type Pattern struct {
	Subject   string
	Predicate string
	Object    string
}

// Graph is the triple store boundary.
type Graph interface {
	Upsert(ctx context.Context, subject, predicate, object string, confidence float64, source string) error
	Query(ctx context.Context, p Pattern) ([]Triple, error)
}

// confidenceBump is how much a repeat sighting strengthens a fact.
const confidenceBump = 0.05

// normalizeTerm canonicalizes a triple component.
func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// identityKey is the dedup key for a (s,p,o) combination.
func identityKey(subject, predicate, object string) string {
	return subject + "|" + predicate + "|" + object
}

// mergeConfidence applies the bounded increase for a repeat sighting.
func mergeConfidence(old, incoming float64) float64 {
	c := old
	if incoming > c {
		c = incoming
	}
	c += confidenceBump
	if c > 1 {
		c = 1
	}
	return c
}
