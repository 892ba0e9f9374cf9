package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// countingProvider records how many times Embed is called.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	fail  int // number of leading calls that fail
}

func (p *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.fail {
		return nil, fmt.Errorf("transient: %w", ErrUnavailable)
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

func (p *countingProvider) Dimension() int { return 3 }

func (p *countingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCacheSingleProviderCall(t *testing.T) {
	prov := &countingProvider{}
	cache := NewCache(prov, 0, zap.NewNop())
	ctx := context.Background()

	first, err := cache.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cache.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prov.count() != 1 {
		t.Errorf("got %d provider calls, want exactly 1", prov.count())
	}
	if len(first) != len(second) {
		t.Errorf("vectors differ between hit and miss")
	}

	_, hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("got hits=%d misses=%d, want 1/1", hits, misses)
	}
}

func TestCacheNormalization(t *testing.T) {
	prov := &countingProvider{}
	cache := NewCache(prov, 0, zap.NewNop())
	ctx := context.Background()

	if _, err := cache.Embed(ctx, "Hello   World"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Embed(ctx, "hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.count() != 1 {
		t.Errorf("normalized duplicates should share one entry, got %d calls", prov.count())
	}
}

func TestCacheRetriesOnceThenSucceeds(t *testing.T) {
	prov := &countingProvider{fail: 1}
	cache := NewCache(prov, 0, zap.NewNop())

	if _, err := cache.Embed(context.Background(), "flaky"); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if prov.count() != 2 {
		t.Errorf("got %d calls, want 2 (original + one retry)", prov.count())
	}
}

func TestCacheSurfacesProviderError(t *testing.T) {
	prov := &countingProvider{fail: 100}
	cache := NewCache(prov, 0, zap.NewNop())

	_, err := cache.Embed(context.Background(), "down")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if prov.count() != 2 {
		t.Errorf("got %d calls, want 2 (no cached failure, one retry)", prov.count())
	}
}

func TestCacheConcurrentMissesCollapse(t *testing.T) {
	prov := &countingProvider{}
	cache := NewCache(prov, 0, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Embed(context.Background(), "same content")
		}()
	}
	wg.Wait()

	if prov.count() != 1 {
		t.Errorf("got %d provider calls for concurrent identical misses, want 1", prov.count())
	}
	// Only the goroutine that reached the provider is a miss; callers served
	// from the collapsed flight or the cache must not inflate the count.
	_, _, misses := cache.Stats()
	if misses != 1 {
		t.Errorf("got %d misses for one computed vector, want 1", misses)
	}
}
