package metrics

import coremetrics "github.com/capaplan/capaplan/core/metrics"

// MultiSink fans plan events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanRun forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordConflicts forwards conflict events to the sinks that support them.
func (m *MultiSink) RecordConflicts(evs []coremetrics.ConflictEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ConflictRecorder); ok {
			if err := rec.RecordConflicts(evs); err != nil {
				return err
			}
		}
	}
	return nil
}
