package lectern

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/db"
	healthuc "github.com/kailas-cloud/lectern/internal/usecase/health"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
)

// --- store mock ---

type mockStore struct {
	searchKNNFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	pingErr     error
	closed      bool
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) Close() { m.closed = true }

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, query string) (retrieval.Response, error)
}

func (m *mockSearchUC) Search(ctx context.Context, query string) (retrieval.Response, error) {
	return m.searchFn(ctx, query)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- public Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

func fixedEmbedder(tokens int) *mockEmbedder {
	return &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, PromptTokens: tokens, TotalTokens: tokens}, nil
	}}
}
