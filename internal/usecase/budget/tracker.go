// Package budget enforces per-provider token budgets over day and month windows.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	domusage "github.com/kailas-cloud/lectern/internal/domain/usage"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

// Action defines behavior when a window is spent.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrBudgetExceeded.
	ActionReject Action = "reject"
)

const (
	persistTimeout = 2 * time.Second
	// retention keeps a closed window's counter readable for a while after it ends.
	retention = 24 * time.Hour
)

// ParseAction maps a config value to an Action. Anything but "reject" warns.
func ParseAction(s string) Action {
	if Action(s) == ActionReject {
		return ActionReject
	}
	return ActionWarn
}

// Limits are the token caps of a provider. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

func (l Limits) of(p domusage.Period) int64 {
	if p == domusage.PeriodMonth {
		return l.Monthly
	}
	return l.Daily
}

// Tracker counts the tokens of one provider, shared by its embedding and completion clients.
// Check is served from memory. Record updates memory first and then writes through to the store.
type Tracker struct {
	provider string
	action   Action
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	windows []domusage.Window
	store   Store
}

// NewTracker creates a tracker with a window per period, starting at zero.
func NewTracker(provider string, limits Limits, action Action, logger *zap.Logger) *Tracker {
	t := &Tracker{provider: provider, action: action, logger: logger, now: time.Now}
	now := t.now()
	for _, p := range domusage.Periods {
		start, end := domusage.Bounds(p, now)
		t.windows = append(t.windows, domusage.Window{Period: p, Start: start, End: end, Limit: limits.of(p)})
	}
	return t
}

// WithStore attaches persistence and loads the counters of the current windows.
// A failed load keeps the in-memory zero and is logged.
func (t *Tracker) WithStore(ctx context.Context, s Store) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = s
	for i := range t.windows {
		w := &t.windows[i]
		used, err := s.Load(ctx, t.key(*w))
		if err != nil {
			t.logger.Warn("Failed to load token budget",
				zap.String("provider", t.provider),
				zap.String("period", string(w.Period)),
				zap.Error(err),
			)
			continue
		}
		w.Used = used
	}
	t.logger.Info("Token budget loaded",
		zap.String("provider", t.provider),
		zap.Int64("daily_used", t.windows[0].Used),
		zap.Int64("monthly_used", t.windows[1].Used),
	)
	return t
}

// Provider returns the provider the tracker accounts for.
func (t *Tracker) Provider() string { return t.provider }

// Check reports whether a new request may spend tokens.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()

	for _, w := range t.windows {
		if !w.Exceeded() {
			continue
		}
		if t.action == ActionReject {
			return fmt.Errorf("provider %s %s budget: %w", t.provider, w.Period, domain.ErrBudgetExceeded)
		}
		t.logger.Warn("Token budget exceeded",
			zap.String("provider", t.provider),
			zap.String("period", string(w.Period)),
			zap.Int64("used", w.Used),
			zap.Int64("limit", w.Limit),
		)
		return nil
	}
	return nil
}

// Record adds consumed tokens to every window and publishes the remaining gauges.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	type write struct {
		key string
		ttl time.Duration
	}

	t.mu.Lock()
	t.roll()
	now := t.now()
	writes := make([]write, 0, len(t.windows))
	for i := range t.windows {
		w := &t.windows[i]
		w.Used += tokens
		metrics.BudgetTokensRemaining.WithLabelValues(t.provider, string(w.Period)).Set(float64(w.Remaining()))
		writes = append(writes, write{key: t.key(*w), ttl: w.End.Sub(now) + retention})
	}
	s := t.store
	t.mu.Unlock()

	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for _, wr := range writes {
		if err := s.Add(ctx, wr.key, tokens, wr.ttl); err != nil {
			t.logger.Warn("Failed to persist token budget", zap.String("key", wr.key), zap.Error(err))
		}
	}
}

// Window returns a snapshot of the current window for period p.
func (t *Tracker) Window(p domusage.Period) domusage.Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	for _, w := range t.windows {
		if w.Period == p {
			return w
		}
	}
	return t.windows[0]
}

// roll starts a fresh window once the current one has ended. Caller holds mu.
func (t *Tracker) roll() {
	now := t.now()
	for i := range t.windows {
		w := &t.windows[i]
		if now.Before(w.End) {
			continue
		}
		w.Start, w.End = domusage.Bounds(w.Period, now)
		w.Used = 0
	}
}

func (t *Tracker) key(w domusage.Window) string {
	layout := "2006-01-02"
	if w.Period == domusage.PeriodMonth {
		layout = "2006-01"
	}
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, t.provider, w.Period, w.Start.Format(layout))
}
