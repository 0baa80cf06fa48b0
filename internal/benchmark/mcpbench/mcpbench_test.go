package mcpbench

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/benchmark"
	"github.com/membench/membench/internal/memory"
	"github.com/membench/membench/internal/model"
)

type staticGenerator struct {
	content string
	lastReq *model.Request
}

func (g *staticGenerator) Info() model.Info {
	return model.Info{Provider: "fake", Model: "fake-model"}
}

func (g *staticGenerator) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	g.lastReq = req
	return &model.Response{
		Content: g.content,
		Usage:   model.Usage{TotalTokens: 20},
	}, nil
}

func writeDataset(t *testing.T, records []taskRecord) string {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "mcpbench.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sampleRecords() []taskRecord {
	return []taskRecord{
		{TaskID: "m1", Instruction: "list open issues", Server: "github", ExpectedKeywords: []string{"issue"}},
		{TaskID: "m2", Instruction: "summarize the readme", Server: "filesystem", ExpectedKeywords: []string{"readme", "summary"}},
		{TaskID: "m3", Instruction: "just reply"},
	}
}

func TestLoadTasks(t *testing.T) {
	t.Run("normalizes records in order", func(t *testing.T) {
		a := New(Config{DatasetPath: writeDataset(t, sampleRecords())})

		tasks, err := a.LoadTasks("", benchmark.Filters{})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "m1", tasks[0].ID)
		assert.Equal(t, "list open issues", tasks[0].Input)
		assert.JSONEq(t, `["readme","summary"]`, string(tasks[1].Expected))
	})

	t.Run("task limit", func(t *testing.T) {
		a := New(Config{DatasetPath: writeDataset(t, sampleRecords()), TaskLimit: 1})

		tasks, err := a.LoadTasks("", benchmark.Filters{})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "m1", tasks[0].ID)
	})

	t.Run("empty dataset", func(t *testing.T) {
		a := New(Config{DatasetPath: writeDataset(t, nil)})
		_, err := a.LoadTasks("", benchmark.Filters{})
		assert.ErrorIs(t, err, benchmark.ErrNoTasks)
	})

	t.Run("missing file", func(t *testing.T) {
		a := New(Config{DatasetPath: filepath.Join(t.TempDir(), "absent.json")})
		_, err := a.LoadTasks("", benchmark.Filters{})
		require.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not an array}"), 0o644))
		a := New(Config{DatasetPath: path})
		_, err := a.LoadTasks("", benchmark.Filters{})
		require.Error(t, err)
	})
}

func TestExecute(t *testing.T) {
	a := New(Config{DatasetPath: writeDataset(t, sampleRecords())})
	tasks, err := a.LoadTasks("", benchmark.Filters{})
	require.NoError(t, err)

	gen := &staticGenerator{content: "There are 3 open issues."}
	ec := &benchmark.ExecutionContext{
		Model:  gen,
		Memory: memory.NewTruncation(1000),
	}

	raw, metrics, err := a.Execute(context.Background(), tasks[0], ec)
	require.NoError(t, err)

	var out benchmark.Output
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "There are 3 open issues.", out.GeneratedText)
	assert.Equal(t, int64(20), metrics.TokenUsage)

	assert.Equal(t, "list open issues", gen.lastReq.Prompt)
	assert.Equal(t, a.cfg.SystemPrompt, gen.lastReq.System)
}

func TestEvaluate(t *testing.T) {
	a := New(Config{})

	output := func(text string) json.RawMessage {
		raw, err := json.Marshal(benchmark.Output{GeneratedText: text})
		require.NoError(t, err)
		return raw
	}

	t.Run("all keywords present", func(t *testing.T) {
		task := benchmark.Task{ID: "m2", Expected: json.RawMessage(`["readme","summary"]`)}
		ok, err := a.Evaluate(task, output("Summary of the README: ..."))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing keyword fails", func(t *testing.T) {
		task := benchmark.Task{ID: "m2", Expected: json.RawMessage(`["readme","summary"]`)}
		ok, err := a.Evaluate(task, output("here is the readme"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no keywords passes on non-empty output", func(t *testing.T) {
		task := benchmark.Task{ID: "m3", Expected: json.RawMessage(`[]`)}
		ok, err := a.Evaluate(task, output("done"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = a.Evaluate(task, output(""))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
