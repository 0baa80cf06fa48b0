package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/domain"
)

func TestBuildResultQuery(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		query, args := buildResultQuery(Filter{})
		assert.NotContains(t, query, "WHERE")
		assert.Contains(t, query, "ORDER BY id ASC")
		assert.NotContains(t, query, "LIMIT")
		assert.Empty(t, args)
	})

	t.Run("single condition", func(t *testing.T) {
		query, args := buildResultQuery(Filter{RunID: "run-1"})
		assert.Contains(t, query, "WHERE run_id = $1")
		assert.Equal(t, []any{"run-1"}, args)
	})

	t.Run("conditions are numbered in order", func(t *testing.T) {
		query, args := buildResultQuery(Filter{
			RunID:     "run-1",
			ModelName: "llama3.1:8b",
			Status:    domain.StatusError,
			Limit:     10,
		})
		assert.Contains(t, query, "run_id = $1")
		assert.Contains(t, query, "model_name = $2")
		assert.Contains(t, query, "status = $3")
		assert.Contains(t, query, "LIMIT $4")
		assert.Equal(t, []any{"run-1", "llama3.1:8b", "error", 10}, args)
	})

	t.Run("conditions joined with AND", func(t *testing.T) {
		query, _ := buildResultQuery(Filter{
			ModelProvider: "ollama",
			MemoryMethod:  "truncation",
			Benchmark:     "nestful",
		})
		assert.Contains(t, query, "model_provider = $1 AND memory_method = $2 AND benchmark = $3")
	})

	t.Run("time bounds", func(t *testing.T) {
		since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		until := since.Add(24 * time.Hour)
		query, args := buildResultQuery(Filter{Since: since, Until: until})
		assert.Contains(t, query, "ts >= $1")
		assert.Contains(t, query, "ts < $2")
		assert.Equal(t, []any{since, until}, args)
	})

	t.Run("limit parameter comes last", func(t *testing.T) {
		query, args := buildResultQuery(Filter{Benchmark: "mcpbench", Limit: 5})
		assert.Contains(t, query, "ORDER BY id ASC LIMIT $2")
		assert.Equal(t, []any{"mcpbench", 5}, args)
	})
}

func TestPostgresStoreRequiresInitialize(t *testing.T) {
	ctx := context.Background()
	store := NewPostgresStore("postgres://localhost/membench")

	err := store.Write(ctx, newResult("run-1", "llama3.1:8b", domain.StatusSuccess))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)

	_, err = store.Query(ctx, Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuery)

	// Closing an unopened store is a no-op.
	assert.NoError(t, store.Close())
}

func TestPostgresSchemaIsIdempotent(t *testing.T) {
	assert.Contains(t, createJobResultsTable, "CREATE TABLE IF NOT EXISTS")
	for _, stmt := range createJobResultIndexes {
		assert.Contains(t, stmt, "CREATE INDEX IF NOT EXISTS")
	}
}
