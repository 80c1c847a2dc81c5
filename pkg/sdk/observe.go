package lectern

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/lectern/internal/domain"
)

// Outcome labels of lectern_sdk_operations_total.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeUpstream = "upstream"
	outcomeError    = "error"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	videos     prometheus.Histogram
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "lectern", Subsystem: "sdk", Name: name, Help: help}
	}
	ops := opts("operations_total", "SDK operations by outcome.")
	dur := opts("operation_duration_seconds", "SDK operation latency.")
	vids := opts("search_videos", "Videos returned per SDK search.")

	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts(ops), []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: dur.Namespace, Subsystem: dur.Subsystem, Name: dur.Name, Help: dur.Help,
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		videos: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: vids.Namespace, Subsystem: vids.Subsystem, Name: vids.Name, Help: vids.Help,
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
	// Several clients may share one registry.
	if err := reuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := reuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := reuse(reg, &m.videos); err != nil {
		return nil, err
	}
	return m, nil
}

// reuse registers *c, or swaps in the collector already registered under the same name.
func reuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	var dup prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		return nil
	case !errors.As(err, &dup):
		return fmt.Errorf("lectern: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("lectern: metric registered as %T", dup.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts SDK operations. A nil observer does nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

// span tracks one SDK call from start to end.
type span struct {
	obs    *observer
	op     string
	start  time.Time
	videos int // -1 unless the call was a search
}

func (o *observer) start(op string) *span {
	return &span{obs: o, op: op, start: time.Now(), videos: -1}
}

// end records the call. Errors are bucketed by their domain class.
func (s *span) end(err error) {
	o := s.obs
	if o == nil {
		return
	}
	elapsed := time.Since(s.start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(s.op, outcome).Inc()
		o.metrics.duration.WithLabelValues(s.op).Observe(elapsed.Seconds())
		if s.videos >= 0 && err == nil {
			o.metrics.videos.Observe(float64(s.videos))
		}
	}
	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("lectern operation failed", "op", s.op, "outcome", outcome, "duration", elapsed, "error", err)
		return
	}
	o.logger.Debug("lectern operation done", "op", s.op, "duration", elapsed, "videos", s.videos)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, domain.ErrValidation):
		return outcomeInvalid
	case errors.Is(err, domain.ErrUpstream):
		return outcomeUpstream
	}
	return outcomeError
}
