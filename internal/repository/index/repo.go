// Package index serves passage similarity search from an existing Redis/Valkey search index.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/lectern/internal/db"
	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/passage"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

var returnFields = []string{
	passage.KeyVideoID,
	passage.KeyTitle,
	passage.KeyTimestampStart,
	passage.KeyText,
}

// Repo is a read-only Vector Index Client over an FT index.
type Repo struct {
	store       store
	indexName   string
	vectorField string
	filter      string
	efRuntime   int
	timeout     time.Duration
}

// New creates an index repository for the named FT index.
func New(s store, indexName, vectorField string) *Repo {
	if vectorField == "" {
		vectorField = db.DefaultVectorField
	}
	return &Repo{store: s, indexName: indexName, vectorField: vectorField}
}

// WithSearchTuning restricts every query to passages matching filter and sets
// the HNSW EF_RUNTIME. Zero values keep the index defaults.
func (r *Repo) WithSearchTuning(filter string, efRuntime int) *Repo {
	r.filter = filter
	r.efRuntime = efRuntime
	return r
}

// WithTimeout bounds every search by d. Zero leaves searches bounded only by the caller.
func (r *Repo) WithTimeout(d time.Duration) *Repo {
	r.timeout = d
	return r
}

// Query returns the topK nearest passages. Scores are similarities in [0,1].
func (r *Repo) Query(ctx context.Context, vector []float32, topK int) ([]passage.RawMatch, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  r.vectorField,
		Vector:       vector,
		K:            topK,
		ReturnFields: returnFields,
		Filter:       r.filter,
		EFRuntime:    r.efRuntime,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("index %s does not exist: %w", r.indexName, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("search knn %s: %v: %w", r.indexName, err, domain.ErrIndexUnavailable)
	}

	matches := make([]passage.RawMatch, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		payload := make(map[string]any, len(e.Fields))
		for k, v := range e.Fields {
			payload[k] = v
		}
		matches = append(matches, passage.RawMatch{ID: e.Key, Score: e.Score, Payload: payload})
	}
	return matches, nil
}

// HealthCheck pings the backing store.
func (r *Repo) HealthCheck(ctx context.Context) error {
	return r.store.Ping(ctx)
}
