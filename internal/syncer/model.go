package syncer

import "time"

// Outcome describes how a run that did not fail ended.
type Outcome string

const (
	OutcomePushed          Outcome = "pushed"
	OutcomeNoChanges       Outcome = "no-changes"
	OutcomeNothingToCommit Outcome = "nothing-to-commit"
)

// StepStatus represents the outcome of a single step.
type StepStatus string

const (
	StatusPass StepStatus = "pass"
	StatusFail StepStatus = "fail"
	StatusSkip StepStatus = "skip"
)

// StepResult records one step of a run.
type StepResult struct {
	Step     string        `json:"step"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Note     string        `json:"note,omitempty"`
}

// Report summarizes a run. Steps lists every step in order; steps after
// the one that ended the run are StatusSkip.
type Report struct {
	Outcome Outcome      `json:"outcome,omitempty"`
	Archive string       `json:"archive,omitempty"`
	Message string       `json:"message,omitempty"`
	Steps   []StepResult `json:"steps"`
}

// Step returns the result recorded for id.
func (r *Report) Step(id string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == id {
			return s, true
		}
	}
	return StepResult{}, false
}
