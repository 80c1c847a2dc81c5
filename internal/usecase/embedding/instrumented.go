// Package embedding decorates the embedding provider with token budget enforcement and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
)

// BudgetChecker gates provider calls and accounts for the tokens they bill.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// InstrumentedEmbedder enforces the provider budget around query embedding.
// Request counters and latency histograms live in transport/openai; the
// tracker owns the remaining-budget gauges.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	budget BudgetChecker
	log    *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil for an unmetered provider.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:  inner,
		budget: budget,
		log:    logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed refuses the call once the budget is spent, otherwise delegates and
// records the billed tokens.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if e.budget != nil {
		if err := e.budget.Check(ctx); err != nil {
			e.log.Warn("Embedding refused by token budget", zap.Error(err))
			return domain.EmbeddingResult{}, fmt.Errorf("embedding budget: %w", err)
		}
	}

	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		e.log.Error("Query embedding failed", zap.Duration("duration", elapsed), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}

	if e.budget != nil && res.TotalTokens > 0 {
		e.budget.Record(int64(res.TotalTokens))
	}
	e.log.Debug("Query embedded",
		zap.Duration("duration", elapsed),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// HealthCheck probes the provider when it supports it.
func (e *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := e.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider health: %w", err)
	}
	return nil
}
