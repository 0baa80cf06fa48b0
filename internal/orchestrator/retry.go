package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/membench/membench/internal/benchmark"
	"github.com/membench/membench/internal/registry"
)

// panicError wraps a recovered panic from a job attempt. Panics are
// treated as deterministic faults: repeating the attempt would hit the
// same bug.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.value)
}

func (e *panicError) IsRetryable() bool { return false }

// retryClassifier is implemented by errors that know whether a repeat
// attempt can change the outcome, e.g. provider errors.
type retryClassifier interface {
	IsRetryable() bool
}

// retryable reports whether a failed attempt is worth repeating.
// Missing or broken components, malformed datasets, and panics are
// non-transient: retrying cannot change the outcome. Errors that carry
// their own classification are trusted; everything else defaults to
// transient, matching the policy that adapter-level faults are retried.
func retryable(err error) bool {
	switch {
	case errors.Is(err, registry.ErrUnknownComponent),
		errors.Is(err, registry.ErrConstruction),
		errors.Is(err, benchmark.ErrNoTasks),
		errors.Is(err, benchmark.ErrInvalidMetrics),
		errors.Is(err, context.Canceled):
		return false
	}

	var rc retryClassifier
	if errors.As(err, &rc) {
		return rc.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return true
}
