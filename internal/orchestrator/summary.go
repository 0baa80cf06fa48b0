package orchestrator

import (
	"sync"

	"github.com/membench/membench/internal/domain"
)

// summaryAccumulator builds the run summary incrementally as jobs
// complete. It is the only state shared between workers besides the
// results store, and every mutation holds its lock.
type summaryAccumulator struct {
	mu        sync.Mutex
	summary   domain.RunSummary
	sampleCap int
}

func newSummaryAccumulator(runID string, sampleCap int) *summaryAccumulator {
	return &summaryAccumulator{
		summary:   domain.RunSummary{RunID: runID},
		sampleCap: sampleCap,
	}
}

// record counts one terminal result. errMsg overrides the result's own
// message for accounting, used when a computed outcome could not be
// persisted.
func (a *summaryAccumulator) record(result domain.JobResult, failed bool, errMsg string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.summary.TotalJobs++
	if !failed {
		a.summary.Succeeded++
		return
	}
	a.summary.Failed++

	if a.sampleCap > 0 && len(a.summary.Errors) >= a.sampleCap {
		a.summary.ErrorsOmitted++
		return
	}
	a.summary.Errors = append(a.summary.Errors, domain.JobError{
		JobID:   result.JobID,
		Spec:    result.Spec.String(),
		Message: errMsg,
	})
}

func (a *summaryAccumulator) finalize() *domain.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.summary
	return &s
}
