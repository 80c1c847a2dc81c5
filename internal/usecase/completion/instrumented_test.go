package completion

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
	domusage "github.com/kailas-cloud/lectern/internal/domain/usage"
	"github.com/kailas-cloud/lectern/internal/metrics"
	"github.com/kailas-cloud/lectern/internal/usecase/budget"
)

func TestMain(m *testing.M) {
	metrics.RegisterAIMetrics()
	os.Exit(m.Run())
}

type mockCompleter struct {
	result    domain.CompletionResult
	err       error
	chunks    []string
	usage     stream.Usage
	streamErr error
	calls     int
}

func (m *mockCompleter) Complete(context.Context, domain.CompletionRequest) (domain.CompletionResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockCompleter) CompleteStructured(
	_ context.Context, _ domain.CompletionRequest, _ string, _ any,
) (domain.CompletionResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockCompleter) Stream(ctx context.Context, _ domain.CompletionRequest) (*stream.TextStream, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return stream.New(ctx, func(_ context.Context, emit stream.EmitFunc) (stream.Usage, error) {
		for _, c := range m.chunks {
			if err := emit(c); err != nil {
				return stream.Usage{}, err
			}
		}
		return m.usage, m.streamErr
	}), nil
}

func TestComplete_RecordsUsageAndBudget(t *testing.T) {
	tracker := budget.NewTracker("test-complete", budget.Limits{Daily: 1000}, budget.ActionReject, zap.NewNop())
	inner := &mockCompleter{result: domain.CompletionResult{Text: "ok", PromptTokens: 30, CompletionTokens: 12}}
	c := NewInstrumentedCompleter(inner, "test-complete", "m", tracker, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := c.Complete(ctx, domain.CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("unexpected text %q", res.Text)
	}
	if usage.CompletionTokens() != 42 {
		t.Errorf("expected 42 request tokens, got %d", usage.CompletionTokens())
	}
	if tracker.Window(domusage.PeriodDay).Used != 42 {
		t.Errorf("expected 42 budget tokens, got %d", tracker.Window(domusage.PeriodDay).Used)
	}
}

func TestComplete_BudgetRejection(t *testing.T) {
	tracker := budget.NewTracker("test-reject", budget.Limits{Daily: 10}, budget.ActionReject, zap.NewNop())
	tracker.Record(10)
	inner := &mockCompleter{}
	c := NewInstrumentedCompleter(inner, "test-reject", "m", tracker, zap.NewNop())

	if _, err := c.Complete(context.Background(), domain.CompletionRequest{}); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if _, err := c.Stream(context.Background(), domain.CompletionRequest{}); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("provider must not be called, got %d calls", inner.calls)
	}
}

func TestCompleteStructured_KeepsResultOnError(t *testing.T) {
	inner := &mockCompleter{
		result: domain.CompletionResult{Text: `{"videos":`},
		err:    domain.ErrSchemaViolation,
	}
	c := NewInstrumentedCompleter(inner, "test", "m", nil, zap.NewNop())

	var out struct{}
	res, err := c.CompleteStructured(context.Background(), domain.CompletionRequest{}, "learning_path", &out)
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	if res.Text != `{"videos":` {
		t.Errorf("expected raw text kept, got %q", res.Text)
	}
}

func TestStream_RelaysChunksAndRecordsUsage(t *testing.T) {
	tracker := budget.NewTracker("test-stream", budget.Limits{}, budget.ActionWarn, zap.NewNop())
	inner := &mockCompleter{
		chunks: []string{"Hello", ", ", "world"},
		usage:  stream.Usage{PromptTokens: 20, CompletionTokens: 3},
	}
	c := NewInstrumentedCompleter(inner, "test-stream", "m", tracker, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	s, err := c.Stream(ctx, domain.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := stream.Collect(s)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("unexpected text %q", text)
	}
	if s.Usage().Total() != 23 {
		t.Errorf("expected usage relayed, got %+v", s.Usage())
	}
	if usage.CompletionTokens() != 23 {
		t.Errorf("expected 23 request tokens, got %d", usage.CompletionTokens())
	}
	if tracker.Window(domusage.PeriodDay).Used != 23 {
		t.Errorf("expected 23 budget tokens, got %d", tracker.Window(domusage.PeriodDay).Used)
	}
}

func TestStream_PropagatesTerminalError(t *testing.T) {
	inner := &mockCompleter{chunks: []string{"partial"}, streamErr: domain.ErrCompletionProvider}
	c := NewInstrumentedCompleter(inner, "test", "m", nil, zap.NewNop())

	s, err := c.Stream(context.Background(), domain.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := stream.Collect(s)
	if text != "partial" {
		t.Errorf("expected partial text, got %q", text)
	}
	if !errors.Is(err, domain.ErrCompletionProvider) {
		t.Errorf("expected ErrCompletionProvider, got %v", err)
	}
}

func TestStream_EarlyCloseIsClean(t *testing.T) {
	inner := &mockCompleter{chunks: []string{"a", "b", "c", "d"}}
	c := NewInstrumentedCompleter(inner, "test", "m", nil, zap.NewNop())

	s, err := c.Stream(context.Background(), domain.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk, ok := s.Next(); !ok || chunk != "a" {
		t.Fatalf("expected first chunk, got %q %v", chunk, ok)
	}
	s.Close()
	if s.Err() != nil {
		t.Errorf("early close must not surface an error, got %v", s.Err())
	}
}
