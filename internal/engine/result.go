package engine

import "time"

// Status is the outcome of a single model.
type Status string

// Model outcomes.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	// StatusSkipped marks models downstream of a failure. They emit no events.
	StatusSkipped Status = "skipped"
)

// ModelResult is the outcome of one model in a run.
type ModelResult struct {
	UniqueID string
	// RunID is the lineage run id; empty for skipped models
	RunID  string
	Status Status
	// Rows is the row count of table materializations
	Rows     int64
	Err      error
	Duration time.Duration
}

// RunResult collects the model outcomes of a run, in execution order.
type RunResult struct {
	Models   []ModelResult
	Duration time.Duration
}

// Count returns the number of models with the given status.
func (r *RunResult) Count(s Status) int {
	n := 0
	for _, m := range r.Models {
		if m.Status == s {
			n++
		}
	}
	return n
}

// Result returns the outcome of a model by unique id.
func (r *RunResult) Result(uniqueID string) (ModelResult, bool) {
	for _, m := range r.Models {
		if m.UniqueID == uniqueID {
			return m, true
		}
	}
	return ModelResult{}, false
}
