// Package benchmark defines the task adapter contract consumed by the
// orchestrator. An adapter translates a benchmark's native task format
// into the load/execute/evaluate calls driven per job; dataset-specific
// implementations live in subpackages.
package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/membench/membench/internal/memory"
	"github.com/membench/membench/internal/model"
)

// ErrNoTasks indicates the adapter loaded an empty task set.
var ErrNoTasks = errors.New("no tasks loaded")

// ErrInvalidMetrics indicates execution metrics violating the contract
// (negative token usage or time).
var ErrInvalidMetrics = errors.New("invalid execution metrics")

// Task is one unit of benchmark work in normalized form.
type Task struct {
	// ID identifies the task within its dataset.
	ID string `json:"id"`

	// Input is the task's natural-language instruction or query.
	Input string `json:"input"`

	// Tools is the benchmark-specific tool/function schema for the
	// task, passed through opaquely into prompt assembly.
	Tools json.RawMessage `json:"tools,omitempty"`

	// Expected is the benchmark-specific ground truth used by Evaluate.
	Expected json.RawMessage `json:"expected,omitempty"`

	// GoldAnswer is the flat expected answer, when the dataset has one.
	GoldAnswer string `json:"gold_answer,omitempty"`
}

// Filters narrows the task set an adapter loads.
type Filters struct {
	// Limit caps the number of tasks; zero means no cap.
	Limit int

	// IDs restricts loading to the listed task IDs when non-empty.
	IDs []string
}

// Metrics reports per-task execution measurements. TokenUsage and
// TimeTaken are required by the contract and must be non-negative.
type Metrics struct {
	// TokenUsage is the total tokens consumed by the task.
	TokenUsage int64 `json:"token_usage"`

	// TimeTaken is the task's wall-clock execution time in seconds.
	TimeTaken float64 `json:"time_taken"`

	// FromCache marks executions served by the generation cache.
	FromCache bool `json:"from_cache,omitempty"`
}

// Validate checks the metrics contract.
func (m Metrics) Validate() error {
	if m.TokenUsage < 0 {
		return fmt.Errorf("%w: negative token usage %d", ErrInvalidMetrics, m.TokenUsage)
	}
	if m.TimeTaken < 0 {
		return fmt.Errorf("%w: negative time taken %f", ErrInvalidMetrics, m.TimeTaken)
	}
	return nil
}

// ExecutionContext carries everything an adapter needs to run one job's
// tasks: the live component handles and per-job policy. It is owned by
// the orchestrator for the job's duration and never shared across
// concurrently running jobs.
type ExecutionContext struct {
	// JobID is the deterministic identifier of the owning job.
	JobID string

	// CreatedAt is the context creation time.
	CreatedAt time.Time

	// Model is the job's generation handle.
	Model model.Generator

	// Memory is the job's memory-constraint handle. Adapters must pass
	// every assembled prompt through it before generation.
	Memory memory.Method

	// MaxRetries and Timeout mirror the run's per-job policy for
	// adapters that perform internal calls.
	MaxRetries int
	Timeout    time.Duration
}

// TaskAdapter is the contract between the orchestrator and a benchmark.
// Any fault raised by these methods is treated as a job-level error by
// the caller; adapters never terminate the run.
type TaskAdapter interface {
	// Name returns the benchmark identifier the adapter serves.
	Name() string

	// LoadTasks reads tasks from the dataset at path, or from the
	// adapter's configured dataset when path is empty.
	LoadTasks(path string, filters Filters) ([]Task, error)

	// Execute runs one task through the context's memory method and
	// model and returns the raw output with measured metrics.
	Execute(ctx context.Context, task Task, ec *ExecutionContext) (json.RawMessage, Metrics, error)

	// Evaluate returns the pass/fail verdict for a task's raw output.
	Evaluate(task Task, raw json.RawMessage) (bool, error)
}

// Output is the normalized raw output adapters produce from Execute.
// Evaluate implementations unmarshal it back from the opaque blob.
type Output struct {
	GeneratedText string            `json:"generated_text"`
	Model         model.Info        `json:"model"`
	Memory        memory.MethodInfo `json:"memory"`
	FinishReason  string            `json:"finish_reason,omitempty"`
}

// ApplyFilters narrows tasks to the filter's ID set and limit, in the
// dataset's original order.
func ApplyFilters(tasks []Task, filters Filters) []Task {
	if len(filters.IDs) > 0 {
		wanted := make(map[string]struct{}, len(filters.IDs))
		for _, id := range filters.IDs {
			wanted[id] = struct{}{}
		}
		kept := tasks[:0:0]
		for _, t := range tasks {
			if _, ok := wanted[t.ID]; ok {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}
	if filters.Limit > 0 && len(tasks) > filters.Limit {
		tasks = tasks[:filters.Limit]
	}
	return tasks
}
