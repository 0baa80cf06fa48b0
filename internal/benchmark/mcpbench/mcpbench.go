// Package mcpbench adapts MCP-Bench style tool-use tasks to the task
// adapter contract. Tasks come from a JSON file of instructions with
// expected keywords; a task passes when the generated answer covers the
// required keyword set.
package mcpbench

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/membench/membench/internal/benchmark"
	"github.com/membench/membench/internal/model"
)

// Name is the registered benchmark identifier.
const Name = "mcpbench"

const defaultSystemPrompt = "You are a capable assistant with access to " +
	"external tools. Complete the user's task and answer precisely."

// Config parameterizes the adapter.
type Config struct {
	// DatasetPath is the JSON task file.
	DatasetPath string

	// TaskLimit caps the tasks loaded per job; zero loads all.
	TaskLimit int

	// SystemPrompt overrides the default system prompt.
	SystemPrompt string
}

// Adapter implements benchmark.TaskAdapter for MCP-Bench tasks.
type Adapter struct {
	cfg Config
}

// New creates an MCP-Bench adapter.
func New(cfg Config) *Adapter {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	return &Adapter{cfg: cfg}
}

// Name returns the benchmark identifier.
func (a *Adapter) Name() string { return Name }

// taskRecord is the dataset's native record shape.
type taskRecord struct {
	TaskID           string   `json:"task_id"`
	Instruction      string   `json:"instruction"`
	Server           string   `json:"server,omitempty"`
	ExpectedKeywords []string `json:"expected_keywords"`
}

// LoadTasks reads the JSON task file at path (or the configured
// dataset) and normalizes its records, preserving file order.
func (a *Adapter) LoadTasks(path string, filters benchmark.Filters) ([]benchmark.Task, error) {
	if path == "" {
		path = a.cfg.DatasetPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open mcpbench dataset: %w", err)
	}

	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse mcpbench dataset: %w", err)
	}

	tasks := make([]benchmark.Task, 0, len(records))
	for _, r := range records {
		expected, err := json.Marshal(r.ExpectedKeywords)
		if err != nil {
			return nil, fmt.Errorf("normalize mcpbench task %s: %w", r.TaskID, err)
		}
		tasks = append(tasks, benchmark.Task{
			ID:       r.TaskID,
			Input:    r.Instruction,
			Expected: expected,
		})
	}

	if filters.Limit == 0 {
		filters.Limit = a.cfg.TaskLimit
	}
	tasks = benchmark.ApplyFilters(tasks, filters)
	if len(tasks) == 0 {
		return nil, benchmark.ErrNoTasks
	}
	return tasks, nil
}

// Execute passes the instruction through the job's memory method and
// generates the answer.
func (a *Adapter) Execute(ctx context.Context, task benchmark.Task, ec *benchmark.ExecutionContext) (json.RawMessage, benchmark.Metrics, error) {
	prompt := ec.Memory.Process(task.Input)

	start := time.Now()
	resp, err := ec.Model.Generate(ctx, &model.Request{
		Prompt: prompt,
		System: a.cfg.SystemPrompt,
	})
	if err != nil {
		return nil, benchmark.Metrics{}, fmt.Errorf("mcpbench task %s: %w", task.ID, err)
	}

	out := benchmark.Output{
		GeneratedText: strings.TrimSpace(resp.Content),
		Model:         ec.Model.Info(),
		Memory:        ec.Memory.Info(),
		FinishReason:  resp.FinishReason,
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, benchmark.Metrics{}, fmt.Errorf("marshal mcpbench output: %w", err)
	}

	metrics := benchmark.Metrics{
		TokenUsage: resp.Usage.TotalTokens,
		TimeTaken:  time.Since(start).Seconds(),
		FromCache:  resp.FromCache,
	}
	return raw, metrics, nil
}

// Evaluate passes a task when every expected keyword appears in the
// generated answer, case-insensitively. Tasks without keywords pass on
// any non-empty answer.
func (a *Adapter) Evaluate(task benchmark.Task, raw json.RawMessage) (bool, error) {
	var out benchmark.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, fmt.Errorf("unmarshal mcpbench output: %w", err)
	}

	var keywords []string
	if len(task.Expected) > 0 {
		if err := json.Unmarshal(task.Expected, &keywords); err != nil {
			return false, fmt.Errorf("parse mcpbench keywords for task %s: %w", task.ID, err)
		}
	}
	if len(keywords) == 0 {
		return out.GeneratedText != "", nil
	}

	generated := strings.ToLower(out.GeneratedText)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if !strings.Contains(generated, strings.ToLower(kw)) {
			return false, nil
		}
	}
	return true, nil
}
