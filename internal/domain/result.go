package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status classifies the terminal outcome of a job. Every job produces
// exactly one terminal result with one of these statuses.
type Status string

const (
	// StatusSuccess indicates the job executed and evaluated without fault.
	StatusSuccess Status = "success"

	// StatusError indicates the job failed; ErrorMessage carries the cause.
	StatusError Status = "error"
)

// JobResult is the immutable outcome of one job. It is created the
// instant a job finishes and never updated afterwards; reruns produce
// new rows, never overwrites.
type JobResult struct {
	// JobID is derived deterministically from the spec and the run ID.
	JobID string `json:"job_id"`

	// RunID identifies the orchestrator invocation that produced the result.
	RunID string `json:"run_id"`

	// Spec is the combination this result belongs to.
	Spec JobSpec `json:"spec"`

	Status Status `json:"status"`

	// DurationSeconds is the wall-clock time of the final attempt.
	DurationSeconds float64 `json:"duration_seconds"`

	// Retries counts additional attempts beyond the first. The result
	// reflects only the final attempt; earlier failures are not persisted
	// separately.
	Retries int `json:"retries"`

	// Payload is benchmark-specific result data. It is stored and passed
	// through opaquely; the orchestrator never interprets its contents.
	Payload json.RawMessage `json:"payload,omitempty"`

	// ErrorMessage is present iff Status is StatusError.
	ErrorMessage string `json:"error_message,omitempty"`

	// Timestamp is the time the result was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewSuccessResult builds a terminal success result for a job.
func NewSuccessResult(runID string, spec JobSpec, payload json.RawMessage, duration time.Duration, retries int) JobResult {
	return JobResult{
		JobID:           spec.JobID(runID),
		RunID:           runID,
		Spec:            spec,
		Status:          StatusSuccess,
		DurationSeconds: duration.Seconds(),
		Retries:         retries,
		Payload:         payload,
		Timestamp:       time.Now().UTC(),
	}
}

// NewErrorResult builds a terminal error result carrying the captured message.
func NewErrorResult(runID string, spec JobSpec, errMsg string, duration time.Duration, retries int) JobResult {
	return JobResult{
		JobID:           spec.JobID(runID),
		RunID:           runID,
		Spec:            spec,
		Status:          StatusError,
		DurationSeconds: duration.Seconds(),
		Retries:         retries,
		ErrorMessage:    errMsg,
		Timestamp:       time.Now().UTC(),
	}
}

// Validate checks the result's internal invariants before persistence.
func (r JobResult) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("%w: missing job id", ErrInvalidResult)
	}
	if err := r.Spec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}
	switch r.Status {
	case StatusSuccess:
		if r.ErrorMessage != "" {
			return fmt.Errorf("%w: success result carries error message", ErrInvalidResult)
		}
	case StatusError:
		if r.ErrorMessage == "" {
			return fmt.Errorf("%w: error result missing error message", ErrInvalidResult)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidResult, r.Status)
	}
	if r.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidResult)
	}
	if r.Retries < 0 {
		return fmt.Errorf("%w: negative retry count", ErrInvalidResult)
	}
	return nil
}
