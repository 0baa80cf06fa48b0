// Package orchestrator drives evaluation runs. It expands a validated
// configuration into the job combination space, executes jobs under a
// counting admission gate, isolates every per-job failure, and persists
// each terminal result synchronously so a crash loses at most the
// in-flight job.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/membench/membench/internal/benchmark"
	"github.com/membench/membench/internal/config"
	"github.com/membench/membench/internal/domain"
	"github.com/membench/membench/internal/memory"
	"github.com/membench/membench/internal/model"
	"github.com/membench/membench/internal/registry"
	"github.com/membench/membench/internal/storage"
)

// Components bundles the explicit registries the orchestrator draws
// live instances from. The bundle is constructed once at startup and
// passed in; there is no ambient process-wide registry.
type Components struct {
	Models     *registry.Registry[model.Generator]
	Memory     *registry.Registry[memory.Method]
	Benchmarks *registry.Registry[benchmark.TaskAdapter]
}

// Orchestrator runs the full combination space of one configuration.
type Orchestrator struct {
	cfg        *config.Config
	components Components
	store      storage.Store
	logger     *slog.Logger
	runID      string
}

// New creates an orchestrator for one run. A nil logger falls back to
// slog.Default.
func New(cfg *config.Config, components Components, store storage.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New().String()
	return &Orchestrator{
		cfg:        cfg,
		components: components,
		store:      store,
		logger:     logger.With("component", "orchestrator", "run_id", runID),
		runID:      runID,
	}
}

// RunID returns the identifier of this orchestrator invocation.
func (o *Orchestrator) RunID() string { return o.runID }

// Combinations expands the configuration into the ordered job list.
func (o *Orchestrator) Combinations() []domain.JobSpec {
	return Expand(o.cfg.EnabledModels(), o.cfg.MemoryMethods, o.cfg.Benchmarks)
}

// Run executes every combination and returns the finalized summary.
// Job-level failures never fail the run; the only fatal error is a
// storage initialization failure, returned before any job starts.
//
// Cancelling ctx stops the run cooperatively: jobs already admitted run
// to completion and their results are persisted, no new jobs start.
func (o *Orchestrator) Run(ctx context.Context) (*domain.RunSummary, error) {
	if err := o.store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator start: %w", err)
	}

	specs := o.Combinations()
	concurrency := o.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	o.logger.Info("run started",
		"total_jobs", len(specs),
		"concurrency", concurrency,
		"max_retries", o.cfg.MaxRetries)

	acc := newSummaryAccumulator(o.runID, o.cfg.SummaryErrorSample)
	acc.summary.StartedAt = time.Now().UTC()

	// Counting admission gate: acquiring a slot admits a job, releasing
	// on completion frees it. With concurrency 1 this degenerates to
	// strictly sequential execution in expansion order.
	gate := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	// Jobs must outlive run cancellation once admitted, so execution and
	// the result write use a detached context. Cancellation is honored
	// at exactly one point: while waiting to admit the next job.
	jobCtx := context.WithoutCancel(ctx)

	admitted := 0
admission:
	for i, spec := range specs {
		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			o.logger.Warn("run cancelled, not starting remaining jobs",
				"admitted", admitted, "remaining", len(specs)-admitted)
			break admission
		}
		// A freed slot and cancellation can become ready together;
		// stopping wins, so release the slot without admitting.
		if ctx.Err() != nil {
			<-gate
			o.logger.Warn("run cancelled, not starting remaining jobs",
				"admitted", admitted, "remaining", len(specs)-admitted)
			break
		}
		admitted++

		wg.Add(1)
		go func(ordinal int, spec domain.JobSpec) {
			defer wg.Done()
			defer func() { <-gate }()

			o.logger.Info("job started",
				"ordinal", ordinal+1,
				"total", len(specs),
				"spec", spec.String())

			result := o.runJob(jobCtx, spec)
			o.completeJob(jobCtx, result, acc)
		}(i, spec)
	}
	wg.Wait()

	summary := acc.finalize()
	summary.FinishedAt = time.Now().UTC()

	o.logger.Info("run finished",
		"total_jobs", summary.TotalJobs,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"success_rate", summary.SuccessRate(),
		"duration", summary.Duration())
	return summary, nil
}

// runJob produces exactly one terminal result for a spec, exhausting
// the retry policy. The result reflects the final attempt only; earlier
// failures are counted, not persisted.
func (o *Orchestrator) runJob(ctx context.Context, spec domain.JobSpec) domain.JobResult {
	maxAttempts := 1 + o.cfg.MaxRetries
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		start := time.Now()
		payload, err := o.attempt(ctx, spec)
		duration := time.Since(start)

		if err == nil {
			return domain.NewSuccessResult(o.runID, spec, payload, duration, attempt)
		}
		lastErr = err

		if !retryable(err) {
			o.logger.Warn("job failed, not retryable",
				"spec", spec.String(), "attempt", attempt+1, "error", err)
			return domain.NewErrorResult(o.runID, spec, err.Error(), duration, attempt)
		}
		if attempt+1 < maxAttempts {
			o.logger.Warn("job attempt failed, retrying",
				"spec", spec.String(), "attempt", attempt+1, "error", err)
			continue
		}
		return domain.NewErrorResult(o.runID, spec, err.Error(), duration, attempt)
	}
	// Unreachable: maxAttempts >= 1 always produces a terminal result.
	return domain.NewErrorResult(o.runID, spec, lastErr.Error(), 0, maxAttempts-1)
}

// taskOutcome is the per-task entry of a job payload.
type taskOutcome struct {
	TaskID  string            `json:"task_id"`
	Passed  bool              `json:"passed"`
	Metrics benchmark.Metrics `json:"metrics"`
	Output  json.RawMessage   `json:"output,omitempty"`
}

// jobPayload is the opaque blob a successful job persists. The
// orchestrator assembles it but never interprets it afterwards.
type jobPayload struct {
	Benchmark    string        `json:"benchmark"`
	TotalTasks   int           `json:"total_tasks"`
	PassedTasks  int           `json:"passed_tasks"`
	FailedTasks  int           `json:"failed_tasks"`
	Score        float64       `json:"score"`
	TotalTokens  int64         `json:"total_tokens"`
	TotalTimeSec float64       `json:"total_time_seconds"`
	Tasks        []taskOutcome `json:"tasks"`
}

// attempt executes one job attempt end to end: component construction,
// execution context, task execution, and evaluation. Every fault,
// including panics from adapter or provider code, is converted into an
// error so no job can halt the run.
func (o *Orchestrator) attempt(ctx context.Context, spec domain.JobSpec) (payload json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	gen, err := o.components.Models.Create(spec.ModelProvider, registry.Params{"model": spec.ModelName})
	if err != nil {
		return nil, err
	}
	mem, err := o.components.Memory.Create(spec.MemoryMethod, nil)
	if err != nil {
		return nil, err
	}
	adapter, err := o.components.Benchmarks.Create(spec.Benchmark, nil)
	if err != nil {
		return nil, err
	}

	ec := &benchmark.ExecutionContext{
		JobID:      spec.JobID(o.runID),
		CreatedAt:  time.Now().UTC(),
		Model:      gen,
		Memory:     mem,
		MaxRetries: o.cfg.MaxRetries,
		Timeout:    o.cfg.JobTimeout,
	}

	if o.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.JobTimeout)
		defer cancel()
	}

	tasks, err := adapter.LoadTasks("", benchmark.Filters{})
	if err != nil {
		return nil, fmt.Errorf("load tasks for %s: %w", spec.Benchmark, err)
	}

	p := jobPayload{
		Benchmark:  spec.Benchmark,
		TotalTasks: len(tasks),
		Tasks:      make([]taskOutcome, 0, len(tasks)),
	}
	for _, task := range tasks {
		raw, metrics, err := adapter.Execute(ctx, task, ec)
		if err != nil {
			return nil, err
		}
		if err := metrics.Validate(); err != nil {
			return nil, err
		}
		passed, err := adapter.Evaluate(task, raw)
		if err != nil {
			return nil, err
		}

		if passed {
			p.PassedTasks++
		} else {
			p.FailedTasks++
		}
		p.TotalTokens += metrics.TokenUsage
		p.TotalTimeSec += metrics.TimeTaken
		p.Tasks = append(p.Tasks, taskOutcome{
			TaskID:  task.ID,
			Passed:  passed,
			Metrics: metrics,
			Output:  raw,
		})
	}
	if p.TotalTasks > 0 {
		p.Score = float64(p.PassedTasks) / float64(p.TotalTasks)
	}

	blob, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return blob, nil
}

// completeJob persists one terminal result and folds it into the
// summary. A write failure is fatal to this job's accounting only: the
// outcome was computed but could not be recorded, so the job counts as
// failed with an explicit unpersisted marker, and the run continues.
func (o *Orchestrator) completeJob(ctx context.Context, result domain.JobResult, acc *summaryAccumulator) {
	writeErr := o.store.Write(ctx, result)

	failed := result.Status == domain.StatusError
	errMsg := result.ErrorMessage

	if writeErr != nil {
		o.logger.Error("result write failed",
			"job_id", result.JobID, "spec", result.Spec.String(), "error", writeErr)
		failed = true
		if errMsg != "" {
			errMsg = fmt.Sprintf("%s; result not persisted: %v", errMsg, writeErr)
		} else {
			errMsg = fmt.Sprintf("result not persisted: %v", writeErr)
		}
	}

	acc.record(result, failed, errMsg)

	o.logger.Info("job finished",
		"job_id", result.JobID,
		"spec", result.Spec.String(),
		"status", result.Status,
		"duration_seconds", result.DurationSeconds,
		"retries", result.Retries,
		"persisted", writeErr == nil)
}
