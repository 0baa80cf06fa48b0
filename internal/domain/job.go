// Package domain provides the core value types for evaluation runs.
// It defines job specifications, job results, and run summaries used
// throughout the system. The types are pure values designed to be
// reproducible: re-expanding the same configuration yields identical
// specs and deterministic job identifiers.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// jobIDLength is the number of hex characters kept from the spec digest.
// 16 characters (64 bits) is enough to avoid collisions within a run
// while keeping identifiers readable in logs and query output.
const jobIDLength = 16

var validate = validator.New()

// JobSpec identifies one cell of the combination space: a single
// (model, memory method, benchmark) evaluation to perform. A JobSpec
// carries no live object references; component instances are constructed
// from these names at execution time.
type JobSpec struct {
	// ModelProvider names the provider used to construct the model handle.
	ModelProvider string `json:"model_provider" validate:"required,min=1"`

	// ModelName identifies the model within the provider's catalog.
	ModelName string `json:"model_name" validate:"required,min=1"`

	// MemoryMethod names the memory-constraint method applied to prompts.
	MemoryMethod string `json:"memory_method" validate:"required,min=1"`

	// Benchmark names the benchmark adapter the job runs against.
	Benchmark string `json:"benchmark" validate:"required,min=1"`
}

// Validate checks that every field of the spec is populated.
func (s JobSpec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJobSpec, err)
	}
	return nil
}

// String returns the human-readable combination label used in logs.
func (s JobSpec) String() string {
	return fmt.Sprintf("%s/%s × %s × %s", s.ModelProvider, s.ModelName, s.MemoryMethod, s.Benchmark)
}

// JobID derives the deterministic job identifier for this spec within a run.
// The identifier is a truncated SHA-256 digest over the run ID and every
// spec field, so re-running the same spec in a new run never collides with
// rows persisted by earlier runs.
func (s JobSpec) JobID(runID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", runID, s.ModelProvider, s.ModelName, s.MemoryMethod, s.Benchmark)
	return hex.EncodeToString(h.Sum(nil))[:jobIDLength]
}
