package domain

import "time"

// JobError pairs a failed job's identifier with its captured message so a
// run can be diagnosed from the summary alone, without re-running jobs.
type JobError struct {
	JobID   string `json:"job_id"`
	Spec    string `json:"spec"`
	Message string `json:"message"`
}

// RunSummary aggregates the outcomes of one orchestrator invocation.
// It is built incrementally as jobs complete and finalized once every
// spec has produced exactly one terminal result.
type RunSummary struct {
	RunID string `json:"run_id"`

	TotalJobs int `json:"total_jobs"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Errors holds up to the configured sample cap of job failures.
	// ErrorsOmitted counts failures beyond the cap; they are counted in
	// Failed but their messages are not retained.
	Errors        []JobError `json:"errors,omitempty"`
	ErrorsOmitted int        `json:"errors_omitted,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SuccessRate returns the fraction of jobs that succeeded, or zero for
// an empty run.
func (s *RunSummary) SuccessRate() float64 {
	if s.TotalJobs == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.TotalJobs)
}

// Duration returns the wall-clock span of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
