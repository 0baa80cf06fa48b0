package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/membench/membench/internal/domain"
)

// jsonlMaxLineBytes bounds one persisted row; payloads are opaque and
// can be large.
const jsonlMaxLineBytes = 8 << 20

// JSONLStore appends one JSON document per line to a local file. Every
// Write holds the store lock, appends a full line, and fsyncs before
// returning, so a Write that returned success is on disk and rows from
// concurrent jobs never interleave.
type JSONLStore struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewJSONLStore creates a store for the given file path. The file is
// not touched until Initialize.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Initialize creates the parent directory and opens the file for
// appending. Calling it again on an open store is a no-op; existing
// rows are never cleared.
func (s *JSONLStore) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create results dir: %w", ErrInit, err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrInit, s.path, err)
	}
	s.f = f
	return nil
}

// Write appends one result as a single line and syncs the file before
// returning.
func (s *JSONLStore) Write(_ context.Context, result domain.JobResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: marshal result: %w", ErrWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("%w: store not initialized", ErrWrite)
	}
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	// Durability guarantee: the caller treats return as "row survives a
	// crash", so flush before returning.
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrWrite, err)
	}
	return nil
}

// Query reads the file back and returns matching rows in insertion
// order. Queries use an independent read handle so they never disturb
// the append position.
func (s *JSONLStore) Query(_ context.Context, filter Filter) ([]domain.JobResult, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer f.Close()

	var results []domain.JobResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), jsonlMaxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var r domain.JobResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("%w: corrupt row at line %d: %w", ErrQuery, line, err)
		}
		if !filter.Matches(r) {
			continue
		}
		results = append(results, r)
		if filter.Limit > 0 && len(results) == filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return results, nil
}

// Summarize aggregates every persisted row.
func (s *JSONLStore) Summarize(ctx context.Context) (Summary, error) {
	results, err := s.Query(ctx, Filter{})
	if err != nil {
		return Summary{}, err
	}
	return summarize(results), nil
}

// Close closes the append handle. Further writes fail; a later
// Initialize reopens the store.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// summarize builds a Summary from rows in insertion order. Distinct
// component lists preserve first-seen order.
func summarize(results []domain.JobResult) Summary {
	sum := Summary{TotalRuns: len(results)}
	models := map[string]struct{}{}
	methods := map[string]struct{}{}
	benchmarks := map[string]struct{}{}
	for _, r := range results {
		switch r.Status {
		case domain.StatusSuccess:
			sum.SuccessfulRuns++
		case domain.StatusError:
			sum.FailedRuns++
		}
		if _, seen := models[r.Spec.ModelName]; !seen {
			models[r.Spec.ModelName] = struct{}{}
			sum.Models = append(sum.Models, r.Spec.ModelName)
		}
		if _, seen := methods[r.Spec.MemoryMethod]; !seen {
			methods[r.Spec.MemoryMethod] = struct{}{}
			sum.MemoryMethods = append(sum.MemoryMethods, r.Spec.MemoryMethod)
		}
		if _, seen := benchmarks[r.Spec.Benchmark]; !seen {
			benchmarks[r.Spec.Benchmark] = struct{}{}
			sum.Benchmarks = append(sum.Benchmarks, r.Spec.Benchmark)
		}
	}
	return sum
}
