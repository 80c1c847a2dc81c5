// Package stage defines how a pipeline stage reacts to upstream failure.
package stage

// Policy is the failure behaviour of a pipeline stage.
type Policy int

// Stage failure policies.
const (
	// Propagate returns the error to the caller.
	Propagate Policy = iota
	// SwallowWithDefault replaces the error with a fallback value.
	SwallowWithDefault
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case SwallowWithDefault:
		return "swallow_with_default"
	}
	return "unknown"
}

// Outcome labels a stage execution for metrics and logs.
type Outcome string

// Stage outcomes.
const (
	OutcomeOK       Outcome = "ok"
	OutcomeFallback Outcome = "fallback"
	OutcomeError    Outcome = "error"
	OutcomeEmpty    Outcome = "empty"
)

// Apply resolves a stage result under the policy.
// With SwallowWithDefault a failure yields fallback and a nil error.
func Apply[T any](p Policy, value T, err error, fallback T) (T, Outcome, error) {
	if err == nil {
		return value, OutcomeOK, nil
	}
	if p == SwallowWithDefault {
		return fallback, OutcomeFallback, nil
	}
	var zero T
	return zero, OutcomeError, err
}
