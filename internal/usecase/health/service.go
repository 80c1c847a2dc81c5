// Package health aggregates dependency checks.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported by Check.
const (
	ComponentDatabase   = "database"
	ComponentIndex      = "index"
	ComponentEmbedding  = "embedding"
	ComponentCompletion = "completion"
)

const checkTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	checkers map[string]Checker
}

// New creates a Service. index, embedding and completion can be nil.
func New(db DBPinger, index, embedding, completion Checker) *Service {
	checkers := make(map[string]Checker, 3)
	for name, c := range map[string]Checker{
		ComponentIndex:      index,
		ComponentEmbedding:  embedding,
		ComponentCompletion: completion,
	} {
		if c != nil {
			checkers[name] = c
		}
	}
	return &Service{db: db, checkers: checkers}
}

// Check runs all health checks concurrently, each bounded by a timeout.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.checkers)+1)
	)
	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		result := CheckOK
		if err := fn(ctx); err != nil {
			result = CheckError
		}
		mu.Lock()
		checks[name] = result
		mu.Unlock()
	}

	wg.Add(1 + len(s.checkers))
	go run(ComponentDatabase, s.db.Ping)
	for name, c := range s.checkers {
		go run(name, c.HealthCheck)
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
