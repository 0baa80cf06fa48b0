// Package storage provides the durable, append-only results store.
// Each completed (or failed) job becomes exactly one row, written
// synchronously: when Write returns, the row is flushed, so a crash
// loses at most the single in-flight job. Two backends are supported:
// a Postgres table for shared analysis and a local JSONL file for
// single-machine runs.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/membench/membench/internal/domain"
)

// ErrInit indicates the backing store could not be opened or its schema
// created. This is fatal to a run: no job outcome could be trusted to
// persist.
var ErrInit = errors.New("storage initialization failed")

// ErrWrite indicates a durable append failed. The owning job's outcome
// was computed but not recorded; the run continues.
var ErrWrite = errors.New("storage write failed")

// ErrQuery indicates a read-back failure.
var ErrQuery = errors.New("storage query failed")

// Filter narrows a Query. Zero-valued fields match everything.
type Filter struct {
	RunID         string
	ModelProvider string
	ModelName     string
	MemoryMethod  string
	Benchmark     string
	Status        domain.Status

	// Since/Until bound the result timestamp, inclusive/exclusive.
	Since time.Time
	Until time.Time

	// Limit caps the number of rows returned; zero means no cap.
	Limit int
}

// Matches reports whether a result satisfies the filter. Backends that
// filter in memory share this predicate so all backends agree on filter
// semantics.
func (f Filter) Matches(r domain.JobResult) bool {
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.ModelProvider != "" && r.Spec.ModelProvider != f.ModelProvider {
		return false
	}
	if f.ModelName != "" && r.Spec.ModelName != f.ModelName {
		return false
	}
	if f.MemoryMethod != "" && r.Spec.MemoryMethod != f.MemoryMethod {
		return false
	}
	if f.Benchmark != "" && r.Spec.Benchmark != f.Benchmark {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Summary aggregates the persisted rows of a store.
type Summary struct {
	TotalRuns      int      `json:"total_runs"`
	SuccessfulRuns int      `json:"successful_runs"`
	FailedRuns     int      `json:"failed_runs"`
	Models         []string `json:"models"`
	MemoryMethods  []string `json:"memory_methods"`
	Benchmarks     []string `json:"benchmarks"`
}

// SuccessRate returns the fraction of persisted rows with success
// status, or zero for an empty store.
func (s Summary) SuccessRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessfulRuns) / float64(s.TotalRuns)
}

// Store is the durable results store contract. Write is atomic with
// respect to concurrent Write calls: rows never interleave.
type Store interface {
	// Initialize acquires the backing store and creates the schema if
	// absent. It is idempotent: repeated calls neither fail nor disturb
	// existing rows.
	Initialize(ctx context.Context) error

	// Write appends one result durably. It must not return success
	// until the row is flushed.
	Write(ctx context.Context, result domain.JobResult) error

	// Query returns matching results in insertion order.
	Query(ctx context.Context, filter Filter) ([]domain.JobResult, error)

	// Summarize aggregates every persisted row.
	Summarize(ctx context.Context) (Summary, error)

	// Close releases the backing store.
	Close() error
}

// Open selects a backend from the location string: postgres:// (or
// postgresql://) DSNs open the Postgres store, anything else is treated
// as a local JSONL file path. The store is not initialized yet; callers
// must Initialize before the first Write.
func Open(location string) (Store, error) {
	if location == "" {
		return nil, errors.New("storage location is required")
	}
	if strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://") {
		return NewPostgresStore(location), nil
	}
	return NewJSONLStore(location), nil
}
