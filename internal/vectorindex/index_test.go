package vectorindex

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// wordProvider embeds text as bag-of-words counts over a fixed vocabulary,
// giving deterministic, meaningful similarity for tests.
type wordProvider struct {
	vocab []string
}

func newWordProvider() *wordProvider {
	return &wordProvider{vocab: []string{"cat", "dog", "code", "music", "food"}}
}

func (p *wordProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, len(p.vocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, v := range p.vocab {
			if w == v {
				vector[i]++
			}
		}
	}
	return vector, nil
}

func (p *wordProvider) Dimension() int { return len(p.vocab) }

// testIndexBehavior is the shared suite run against every Index implementation.
func testIndexBehavior(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()

	docs := []string{
		"my cat sleeps all day",
		"the dog barks at the dog next door",
		"writing code and listening to music",
	}
	for _, d := range docs {
		if _, err := idx.Add(ctx, d, map[string]string{"kind": "dialogue"}); err != nil {
			t.Fatalf("add %q: %v", d, err)
		}
	}

	results, err := idx.Search(ctx, "dog", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !strings.Contains(results[0].Text, "dog") {
		t.Errorf("top hit %q should mention dog", results[0].Text)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not ranked: %.3f < %.3f", results[0].Score, results[1].Score)
	}
	if results[0].Meta["kind"] != "dialogue" {
		t.Errorf("metadata lost: got %v", results[0].Meta)
	}
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex(newWordProvider(), zap.NewNop())
	testIndexBehavior(t, idx)
}

func TestMemoryIndexSearchEmpty(t *testing.T) {
	idx := NewMemoryIndex(newWordProvider(), zap.NewNop())
	results, err := idx.Search(context.Background(), "cat", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty index, want 0", len(results))
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("got %.4f, want %.4f", got, tt.want)
			}
		})
	}
}
