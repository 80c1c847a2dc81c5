package embcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/db"
	"github.com/kailas-cloud/lectern/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner, Config{Model: "text-embedding-3-small"})
	ctx := context.Background()

	var setKey string
	ms.setFn = func(_ context.Context, key string, _ []byte) error {
		setKey = key
		return nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, "lectern:emb_cache:text-embedding-3-small:") {
		t.Fatalf("expected SET under cache prefix, got %q", setKey)
	}
}

func TestEmbed_CacheMissWithTTL(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner, Config{TTL: time.Hour})

	var gotTTL time.Duration
	ms.setWithTTLFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		gotTTL = ttl
		return nil
	}
	ms.setFn = func(context.Context, string, []byte) error {
		t.Error("plain SET must not be used when ttl is set")
		return nil
	}

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != time.Hour {
		t.Errorf("expected ttl 1h, got %v", gotTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, inner, Config{})

	cached := encodeVector([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls.Load() != 0 {
		t.Fatalf("expected no provider call on hit, got %d", inner.calls.Load())
	}
}

func TestEmbed_SameTextSameKey(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{}, Config{})
	if ce.cacheKey("closures") != ce.cacheKey("closures") {
		t.Error("cache key must be deterministic")
	}
	if ce.cacheKey("closures") == ce.cacheKey("Closures") {
		t.Error("cache key must be case sensitive")
	}
	if ce.cacheKey("  javascript   closures\n") != ce.cacheKey("javascript closures") {
		t.Error("whitespace runs must not change the key")
	}
}

func TestEmbed_ModelNamespacesKeys(t *testing.T) {
	a, _ := newTestCachedEmbedder(t, &mockEmbedder{}, Config{Model: "model-a"})
	b, _ := newTestCachedEmbedder(t, &mockEmbedder{}, Config{Model: "model-b"})
	if a.cacheKey("q") == b.cacheKey("q") {
		t.Error("different models must not share cache entries")
	}
}

func TestEmbed_StaleDimensionsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3, 4}, TotalTokens: 3}}
	ce, ms := newTestCachedEmbedder(t, inner, Config{Dimensions: 4})
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return encodeVector([]float32{0.1, 0.2}), nil
	}

	result, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 4 || inner.calls.Load() != 1 {
		t.Errorf("expected provider result, got %v after %d calls", result.Embedding, inner.calls.Load())
	}
}

func TestEmbed_ConcurrentMissesReportTokensOnce(t *testing.T) {
	inner := &mockEmbedder{
		result:  domain.EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 8},
		release: make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	ce, _ := newTestCachedEmbedder(t, inner, Config{})

	results := make(chan domain.EmbeddingResult, 2)
	embed := func() {
		res, err := ce.Embed(context.Background(), "closures")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		results <- res
	}

	go embed()
	<-inner.entered // the first call is inside the provider
	go embed()
	time.Sleep(50 * time.Millisecond) // let the second call join the in-flight one
	close(inner.release)

	var tokens int
	for range 2 {
		res := <-results
		if len(res.Embedding) != 1 {
			t.Errorf("unexpected vector %v", res.Embedding)
		}
		tokens += res.TotalTokens
	}
	// Each provider call is reported exactly once, however the callers interleaved.
	if want := 8 * int(inner.calls.Load()); tokens != want {
		t.Errorf("tokens across callers = %d, want %d", tokens, want)
	}
}

func TestEmbed_CorruptEntryFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.7}}}
	ce, ms := newTestCachedEmbedder(t, inner, Config{})
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	result, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.7 || inner.calls.Load() != 1 {
		t.Errorf("expected provider result on corrupt entry, got %v", result.Embedding)
	}
}

func TestEmbed_StoreErrorsAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.2}}}
	ce, ms := newTestCachedEmbedder(t, inner, Config{})
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}
	ms.setFn = func(context.Context, string, []byte) error {
		return errors.New("connection reset")
	}

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("store failures must not fail the request: %v", err)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProvider}
	ce, ms := newTestCachedEmbedder(t, inner, Config{})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	_, err := ce.Embed(context.Background(), "test text")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestEmbed_CountsHitsAndMisses(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ms := &mockKVStore{}
	ce := New(inner, ms, Config{}, counter, zap.NewNop())

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	ms.getFn = func(context.Context, string) ([]byte, error) {
		return encodeVector([]float32{0.1}), nil
	}
	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
}

// blockingEmbedder waits for release and fails if its context ends first.
type blockingEmbedder struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) (domain.EmbeddingResult, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return domain.EmbeddingResult{Embedding: []float32{0.4, 0.5}, TotalTokens: 3}, nil
	case <-ctx.Done():
		return domain.EmbeddingResult{}, ctx.Err()
	}
}

func TestEmbed_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &blockingEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	ce := New(inner, &mockKVStore{}, Config{}, nil, zap.NewNop())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := ce.Embed(firstCtx, "closures")
		firstErr <- err
	}()
	<-inner.entered

	type outcome struct {
		res domain.EmbeddingResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := ce.Embed(context.Background(), "closures")
		second <- outcome{res, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
	}

	// The second caller may still be joining the in-flight call; give it time to block on it.
	time.Sleep(20 * time.Millisecond)
	close(inner.release)

	got := <-second
	if got.err != nil {
		t.Fatalf("caller with a live context failed: %v", got.err)
	}
	if len(got.res.Embedding) != 2 || got.res.Embedding[0] != 0.4 {
		t.Errorf("unexpected vector: %v", got.res.Embedding)
	}
}

func TestEmbed_CallerLeavesOnOwnDeadline(t *testing.T) {
	inner := &blockingEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	defer close(inner.release)
	ce := New(inner, &mockKVStore{}, Config{}, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ce.Embed(ctx, "closures")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
