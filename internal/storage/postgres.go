package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/membench/membench/internal/domain"
)

const pgPingTimeout = 5 * time.Second

// Schema statements are idempotent so Initialize can run on every
// start against the same database.
const (
	createJobResultsTable = `CREATE TABLE IF NOT EXISTS job_results (
		id BIGSERIAL PRIMARY KEY,
		job_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		model_provider TEXT NOT NULL,
		model_name TEXT NOT NULL,
		memory_method TEXT NOT NULL,
		benchmark TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL,
		retries INTEGER NOT NULL DEFAULT 0,
		payload JSONB,
		error_message TEXT
	)`

	insertJobResultQuery = `INSERT INTO job_results (
		job_id, run_id, ts, model_provider, model_name, memory_method,
		benchmark, status, duration_seconds, retries, payload, error_message
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	selectJobResultColumns = `SELECT job_id, run_id, ts, model_provider, model_name,
		memory_method, benchmark, status, duration_seconds, retries, payload, error_message
	 FROM job_results`
)

var createJobResultIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_job_results_run_id ON job_results (run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_job_results_model_name ON job_results (model_name)`,
	`CREATE INDEX IF NOT EXISTS idx_job_results_memory_method ON job_results (memory_method)`,
	`CREATE INDEX IF NOT EXISTS idx_job_results_benchmark ON job_results (benchmark)`,
	`CREATE INDEX IF NOT EXISTS idx_job_results_status ON job_results (status)`,
}

// PostgresStore persists results in a Postgres table through the pgx
// stdlib driver. Row atomicity comes for free from single-statement
// inserts; insertion order is the BIGSERIAL id.
type PostgresStore struct {
	dsn string
	db  *sql.DB
}

// NewPostgresStore creates a store for the given DSN. No connection is
// made until Initialize.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

// Initialize opens the pool, verifies connectivity, and creates the
// schema. Safe to call repeatedly.
func (s *PostgresStore) Initialize(ctx context.Context) error {
	if s.db == nil {
		db, err := sql.Open("pgx", s.dsn)
		if err != nil {
			return fmt.Errorf("%w: open: %w", ErrInit, err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pgPingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return fmt.Errorf("%w: ping: %w", ErrInit, err)
		}
		s.db = db
	}

	if _, err := s.db.ExecContext(ctx, createJobResultsTable); err != nil {
		return fmt.Errorf("%w: create table: %w", ErrInit, err)
	}
	for _, stmt := range createJobResultIndexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create index: %w", ErrInit, err)
		}
	}
	return nil
}

// Write inserts one result. The insert commits before returning, which
// is the durability guarantee the orchestrator relies on.
func (s *PostgresStore) Write(ctx context.Context, result domain.JobResult) error {
	if s.db == nil {
		return fmt.Errorf("%w: store not initialized", ErrWrite)
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	var payload any
	if len(result.Payload) > 0 {
		payload = string(result.Payload)
	}
	var errMsg any
	if result.ErrorMessage != "" {
		errMsg = result.ErrorMessage
	}

	_, err := s.db.ExecContext(ctx, insertJobResultQuery,
		result.JobID,
		result.RunID,
		result.Timestamp.UTC(),
		result.Spec.ModelProvider,
		result.Spec.ModelName,
		result.Spec.MemoryMethod,
		result.Spec.Benchmark,
		string(result.Status),
		result.DurationSeconds,
		result.Retries,
		payload,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Query returns matching rows in insertion order.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]domain.JobResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: store not initialized", ErrQuery)
	}

	query, args := buildResultQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var results []domain.JobResult
	for rows.Next() {
		var r domain.JobResult
		var payload, errMsg sql.NullString
		if err := rows.Scan(
			&r.JobID, &r.RunID, &r.Timestamp,
			&r.Spec.ModelProvider, &r.Spec.ModelName,
			&r.Spec.MemoryMethod, &r.Spec.Benchmark,
			&r.Status, &r.DurationSeconds, &r.Retries,
			&payload, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrQuery, err)
		}
		if payload.Valid {
			r.Payload = []byte(payload.String)
		}
		r.ErrorMessage = errMsg.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return results, nil
}

// Summarize aggregates every persisted row.
func (s *PostgresStore) Summarize(ctx context.Context) (Summary, error) {
	results, err := s.Query(ctx, Filter{})
	if err != nil {
		return Summary{}, err
	}
	return summarize(results), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// buildResultQuery assembles the filtered select with positional
// parameters, ordered by insertion id.
func buildResultQuery(filter Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(selectJobResultColumns)

	var conds []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.RunID != "" {
		add("run_id = $%d", filter.RunID)
	}
	if filter.ModelProvider != "" {
		add("model_provider = $%d", filter.ModelProvider)
	}
	if filter.ModelName != "" {
		add("model_name = $%d", filter.ModelName)
	}
	if filter.MemoryMethod != "" {
		add("memory_method = $%d", filter.MemoryMethod)
	}
	if filter.Benchmark != "" {
		add("benchmark = $%d", filter.Benchmark)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		add("ts >= $%d", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("ts < $%d", filter.Until.UTC())
	}

	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY id ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
