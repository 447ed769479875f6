package domain

import "time"

type RunStatus string

const (
	RunStatusApplied   RunStatus = "applied"
	RunStatusErrored   RunStatus = "errored"
	RunStatusPlanned   RunStatus = "planned"
	RunStatusDiscarded RunStatus = "discarded"
	RunStatusCanceled  RunStatus = "canceled"
)

// IsChangeRelevant reports whether a run in this status may have changed
// cloud configuration. Only applied and errored runs touch real resources.
func (s RunStatus) IsChangeRelevant() bool {
	return s == RunStatusApplied || s == RunStatusErrored
}

// AutomationRun is a pipeline execution record used to explain a
// service-account-driven change.
type AutomationRun struct {
	Message   string
	ID        string
	Status    RunStatus
	ApplyTime *time.Time
	Org       string
	Workspace string
}

// FilterRelevantRuns keeps change-relevant runs whose apply time falls at
// or after changeTime minus window. Runs without an apply time are dropped.
func FilterRelevantRuns(runs []AutomationRun, changeTime time.Time, window time.Duration) []AutomationRun {
	start := changeTime.Add(-window)
	var relevant []AutomationRun
	for _, run := range runs {
		if !run.Status.IsChangeRelevant() {
			continue
		}
		if run.ApplyTime == nil || run.ApplyTime.Before(start) {
			continue
		}
		relevant = append(relevant, run)
	}
	return relevant
}
