package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/nidhogg/noema/internal/embedding"
	"go.uber.org/zap"
)

// MemoryIndex is an in-process Index using brute-force cosine similarity.
type MemoryIndex struct {
	embedder embedding.Provider
	logger   *zap.Logger

	mu    sync.Mutex
	items []memoryItem
}

type memoryItem struct {
	id     string
	text   string
	vector []float32
	meta   map[string]string
}

// NewMemoryIndex creates an empty in-process index.
func NewMemoryIndex(embedder embedding.Provider, logger *zap.Logger) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, logger: logger}
}

// Add embeds text and stores it with its metadata.
func (m *MemoryIndex) Add(ctx context.Context, text string, meta map[string]string) (string, error) {
	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("index add: %w", err)
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.items = append(m.items, memoryItem{id: id, text: text, vector: vector, meta: meta})
	m.mu.Unlock()
	return id, nil
}

// Search embeds the query and returns the top-k items by cosine similarity.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	m.mu.Lock()
	results := make([]Result, 0, len(m.items))
	for _, it := range m.items {
		results = append(results, Result{
			ID:    it.id,
			Score: cosine(vector, it.vector),
			Text:  it.text,
			Meta:  it.meta,
		})
	}
	m.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Len reports the number of stored items.
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
