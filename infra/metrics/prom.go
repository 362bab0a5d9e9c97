package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/capaplan/capaplan/core/metrics"
)

// PromSink records plan runs in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	iterations  prometheus.Histogram
	scheduled   prometheus.Gauge
	unscheduled prometheus.Gauge
	conflicts   prometheus.Gauge
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_runs_total",
		Help: "Total number of plan computations",
	}, []string{"converged"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plan_run_duration_seconds",
		Help:    "Wall time of one plan computation",
		Buckets: prometheus.DefBuckets,
	})
	iterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plan_iterations",
		Help:    "Refinement iterations used by one plan computation",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})
	scheduled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_items_scheduled",
		Help: "Items placed on the calendar in the latest plan",
	})
	unscheduled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_items_unscheduled",
		Help: "Items without deliverable capacity in the latest plan",
	})
	conflicts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_conflicts",
		Help: "Resource conflicts detected in the latest plan",
	})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(iterations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			iterations = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	for _, g := range []*prometheus.Gauge{&scheduled, &unscheduled, &conflicts} {
		if err := reg.Register(*g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				*g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return nil, err
			}
		}
	}

	return &PromSink{
		runs:        runs,
		duration:    duration,
		iterations:  iterations,
		scheduled:   scheduled,
		unscheduled: unscheduled,
		conflicts:   conflicts,
	}, nil
}

// RecordPlanRun updates counters and gauges for one plan computation.
func (s *PromSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	s.runs.WithLabelValues(strconv.FormatBool(ev.Converged)).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	s.iterations.Observe(float64(ev.Iterations))
	s.scheduled.Set(float64(ev.Scheduled))
	s.unscheduled.Set(float64(ev.Unscheduled))
	s.conflicts.Set(float64(ev.Conflicts))
	return nil
}
