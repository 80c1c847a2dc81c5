package lectern

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/lectern/internal/db"
	dbRedis "github.com/kailas-cloud/lectern/internal/db/redis"
	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/video"
	indexrepo "github.com/kailas-cloud/lectern/internal/repository/index"
	healthuc "github.com/kailas-cloud/lectern/internal/usecase/health"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultIndexName        = "passages"
)

// store is what the client needs from the database.
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
	Close()
}

// searchUseCase is the internal interface for retrieval, replaced in tests.
type searchUseCase interface {
	Search(ctx context.Context, query string) (retrieval.Response, error)
}

// Client is the lectern SDK entry point.
type Client struct {
	store     store
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a lectern Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("lectern: database address required (use WithRedis)")
	}
	if cfg.minScore != nil && (*cfg.minScore < 0 || *cfg.minScore > 1) {
		return nil, fmt.Errorf("lectern: min score %v outside [0,1]", *cfg.minScore)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("lectern: create redis store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("lectern: database not ready: %w", err)
	}

	return wireClient(s, cfg, obs), nil
}

func wireClient(s store, cfg *clientConfig, obs *observer) *Client {
	indexName := cfg.indexName
	if indexName == "" {
		indexName = defaultIndexName
	}
	index := indexrepo.New(s, indexName, cfg.vectorField)

	// Without an embedder every search fails with a configuration error.
	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	minScore := retrieval.DefaultMinScore
	if cfg.minScore != nil {
		minScore = *cfg.minScore
	}
	searchSvc := retrieval.New(
		emb,
		index,
		video.NewAggregator(cfg.thumbnailTemplate, cfg.passageChars),
		retrieval.Options{TopK: cfg.topK, MinScore: minScore},
	)

	return &Client{
		store:     s,
		searchSvc: searchSvc,
		healthSvc: healthuc.New(s, index, embedderProbe(cfg.embedder), nil),
		obs:       obs,
	}
}

// embedderProbe returns e as a health checker when it can probe its upstream.
func embedderProbe(e Embedder) healthuc.Checker {
	if hc, ok := e.(HealthChecker); ok {
		return hc
	}
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	sp := c.obs.start("ping")
	defer func() { sp.end(err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search embeds query, keeps passages above the score floor and groups them per video.
// No match is not an error: SearchResult.Message explains the empty result instead.
func (c *Client) Search(ctx context.Context, query string) (res SearchResult, err error) {
	sp := c.obs.start("search")
	defer func() { sp.end(err) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	resp, err := c.searchSvc.Search(ctx, query)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}
	sp.videos = len(resp.Results)

	return SearchResult{
		Videos:          toVideos(resp.Results),
		Total:           resp.Total,
		Message:         resp.Message,
		EmbeddingTokens: usage.EmbeddingTokens(),
	}, nil
}

func toVideos(results []video.Result) []Video {
	out := make([]Video, 0, len(results))
	for _, r := range results {
		ts := make([]Timestamp, 0, len(r.Timestamps))
		for _, t := range r.Timestamps {
			ts = append(ts, Timestamp(t))
		}
		out = append(out, Video{
			ID:         r.ID,
			VideoID:    r.VideoID,
			Title:      r.Title,
			Thumbnail:  r.Thumbnail,
			Timestamps: ts,
		})
	}
	return out
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProvider, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder fails every call (used when no embedder is configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("lectern: embedder not configured (use WithEmbedder)")
}
