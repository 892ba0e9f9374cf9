// Package vectorindex provides semantic search over embedded text. Two
// interchangeable implementations exist: MemoryIndex for in-process use and
// QdrantIndex backed by a Qdrant server. Both consume the shared embedding
// cache, never the raw provider.
package vectorindex

import (
	"context"
	"math"
)

// Result is a single search hit.
type Result struct {
	ID    string
	Score float32
	Text  string
	Meta  map[string]string
}

// Index stores embedded text and answers nearest-neighbor queries.
type Index interface {
	Add(ctx context.Context, text string, meta map[string]string) (string, error)
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// cosine returns the cosine similarity of two vectors, 0 when degenerate.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na < 1e-10 || nb < 1e-10 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
