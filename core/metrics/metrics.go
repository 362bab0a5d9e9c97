package metrics

import "time"

// PlanRunEvent summarises one scheduler invocation.
type PlanRunEvent struct {
	RunID       string
	Items       int
	Scheduled   int
	Unscheduled int
	Conflicts   int
	Iterations  int
	Converged   bool
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records plan runs for observability purposes.
type MetricsSink interface {
	RecordPlanRun(ev PlanRunEvent) error
}

// ConflictEvent describes one detected resource conflict.
type ConflictEvent struct {
	RunID       string
	ItemIDs     []string
	ResourceIDs []string
	Start       time.Time
	End         time.Time
}

// ConflictRecorder is implemented by sinks that store individual conflicts.
type ConflictRecorder interface {
	RecordConflicts(evs []ConflictEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordPlanRun(PlanRunEvent) error      { return nil }
func (NopSink) RecordConflicts([]ConflictEvent) error { return nil }
