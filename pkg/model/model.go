// Package model holds the records collaborators return and the report
// consumes.
package model

import "time"

// Issue is an open tracker issue listed in the backlog table.
type Issue struct {
	Key      string
	Summary  string
	Created  time.Time
	Severity string
	URL      string
}

// CreatedLabel formats the creation date the way the report prints it,
// e.g. "07/Mar/21".
func (i Issue) CreatedLabel() string {
	return i.Created.Format("02/Jan/06")
}

// BuildRun identifies one run of a CI job.
type BuildRun struct {
	Number int
	URL    string
}

// RunSummary is the result summary of one machine in a test run.
type RunSummary struct {
	Machine       string
	Total         int
	Passed        int
	Failed        int
	Errored       int
	Skipped       int
	Observed      int
	ExecutionTime time.Duration
}

// Executed is the number of cases that actually ran.
func (s RunSummary) Executed() int {
	return s.Total - s.Skipped - s.Observed
}

// GroupCount is the number of skipped or observed cases in one test group.
type GroupCount struct {
	Group string
	Count int
}

// GroupStats keeps groups in the order the report lists them.
type GroupStats []GroupCount

// TaskStatus is the completed and planned task lists of the status page.
type TaskStatus struct {
	Completed []string
	Planned   []string
}
