// Package discover runs the search pipeline for one query in a single call.
package discover

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/topic"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
)

// Result is the combined pipeline output.
type Result struct {
	ExpandedQuery string
	Search        retrieval.Response
	Topics        []topic.Related
}

// Service orchestrates expansion, retrieval and related topics.
type Service struct {
	expander Expander
	searcher Searcher
	related  RelatedGenerator
}

// New creates a discovery service.
func New(e Expander, s Searcher, r RelatedGenerator) *Service {
	return &Service{expander: e, searcher: s, related: r}
}

// Discover expands and retrieves while related topics are generated concurrently
// from the original query. Only retrieval failures fail the call.
func (s *Service) Discover(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}

	var res Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		expanded, err := s.expander.Expand(gctx, query)
		if err != nil {
			return fmt.Errorf("expand: %w", err)
		}
		search, err := s.searcher.Search(gctx, expanded)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		res.ExpandedQuery = expanded
		res.Search = search
		return nil
	})

	g.Go(func() error {
		topics, err := s.related.Related(gctx, query)
		if err != nil {
			return fmt.Errorf("related topics: %w", err)
		}
		res.Topics = topics
		return nil
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}
