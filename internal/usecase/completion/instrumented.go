// Package completion instruments the completion provider with token budgets and request usage.
package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// InstrumentedCompleter wraps a Completer with budget enforcement and usage accounting.
// Transport metrics are recorded in transport/openai.
type InstrumentedCompleter struct {
	inner    domain.Completer
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedCompleter wraps a completer. budget may be nil.
func NewInstrumentedCompleter(
	inner domain.Completer, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Complete checks budget, delegates and records tokens.
func (c *InstrumentedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	if err := c.check(ctx); err != nil {
		return domain.CompletionResult{}, err
	}

	start := time.Now()
	res, err := c.inner.Complete(ctx, req)
	c.record(ctx, "complete", res.PromptTokens+res.CompletionTokens, time.Since(start), err)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}
	return res, nil
}

// CompleteStructured checks budget, delegates and records tokens.
func (c *InstrumentedCompleter) CompleteStructured(
	ctx context.Context, req domain.CompletionRequest, name string, out any,
) (domain.CompletionResult, error) {
	if err := c.check(ctx); err != nil {
		return domain.CompletionResult{}, err
	}

	start := time.Now()
	res, err := c.inner.CompleteStructured(ctx, req, name, out)
	c.record(ctx, "structured", res.PromptTokens+res.CompletionTokens, time.Since(start), err)
	if err != nil {
		// Result text is kept for diagnostics on schema violations.
		return res, fmt.Errorf("complete structured %s: %w", name, err)
	}
	return res, nil
}

// Stream checks budget and relays the inner stream, recording tokens when it ends.
func (c *InstrumentedCompleter) Stream(
	ctx context.Context, req domain.CompletionRequest,
) (*stream.TextStream, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	inner, err := c.inner.Stream(ctx, req)
	if err != nil {
		c.record(ctx, "stream", 0, time.Since(start), err)
		return nil, fmt.Errorf("stream: %w", err)
	}

	return stream.New(ctx, func(_ context.Context, emit stream.EmitFunc) (stream.Usage, error) {
		var emitErr error
		for emitErr == nil {
			chunk, ok := inner.Next()
			if !ok {
				break
			}
			emitErr = emit(chunk)
		}
		// Close waits for the inner producer, so Usage and Err are settled after it.
		inner.Close()
		usage := inner.Usage()
		if emitErr != nil {
			c.record(ctx, "stream", usage.Total(), time.Since(start), nil)
			return usage, emitErr
		}
		c.record(ctx, "stream", usage.Total(), time.Since(start), inner.Err())
		return usage, inner.Err()
	}), nil
}

// HealthCheck forwards to the inner completer when it supports health checks.
func (c *InstrumentedCompleter) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *InstrumentedCompleter) check(ctx context.Context) error {
	if c.budget == nil {
		return nil
	}
	if err := c.budget.Check(ctx); err != nil {
		c.logger.Error("Budget exceeded",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (c *InstrumentedCompleter) record(ctx context.Context, mode string, tokens int, d time.Duration, err error) {
	if tokens > 0 {
		domain.UsageFromContext(ctx).AddCompletionTokens(tokens)
		if c.budget != nil {
			c.budget.Record(int64(tokens))
		}
	}

	if err != nil {
		c.logger.Error("Completion request failed",
			zap.String("provider", c.provider),
			zap.String("model", c.model),
			zap.String("mode", mode),
			zap.Duration("duration", d),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("Completion request completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.String("mode", mode),
		zap.Duration("duration", d),
		zap.Int("total_tokens", tokens),
	)
}
