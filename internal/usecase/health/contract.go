package health

import "context"

// DBPinger is the Redis connection shared by caches and budget counters.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker probes one upstream: the passage index or an AI provider.
// Providers probe with a call that bills no tokens.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
