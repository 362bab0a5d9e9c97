package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/capaplan/capaplan/config"
	coremetrics "github.com/capaplan/capaplan/core/metrics"
	"github.com/capaplan/capaplan/core/model"
	"github.com/capaplan/capaplan/core/planfile"
	"github.com/capaplan/capaplan/core/scheduler"
	"github.com/capaplan/capaplan/infra/logger"
	"github.com/capaplan/capaplan/infra/metrics"
	"github.com/capaplan/capaplan/infra/watch"
	"github.com/capaplan/capaplan/pkg/export"
)

// Service loads the plan input, runs the scheduler and hands the result to
// the configured outputs.
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	sched *scheduler.Scheduler
	sink  coremetrics.MetricsSink
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetGlobalLevel(cfg.Logging.Level)
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	return &Service{
		cfg:   cfg,
		log:   logg,
		sched: scheduler.New(logger.New("scheduler")),
		sink:  sink,
	}, nil
}

// Run computes the plan once, or keeps recomputing on input changes when
// watch mode is enabled. It blocks until the work is done or ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled && s.cfg.Plan.Watch {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if err := s.RunOnce(); err != nil {
		return err
	}
	if !s.cfg.Plan.Watch {
		return nil
	}

	s.log.Infof("watching %s for changes", s.cfg.Plan.Input)
	err := watch.File(ctx, s.cfg.Plan.Input, s.log, s.RunOnce)
	if err == context.Canceled {
		return nil
	}
	return err
}

// RunOnce loads the input, schedules it, records metrics and writes the
// output.
func (s *Service) RunOnce() error {
	plan, err := s.compute()
	if err != nil {
		return err
	}
	return s.write(plan)
}

func (s *Service) compute() (*model.Plan, error) {
	f, err := planfile.Load(s.cfg.Plan.Input)
	if err != nil {
		return nil, fmt.Errorf("load plan input: %w", err)
	}
	items, resources, err := f.Models()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	plan, err := s.sched.Schedule(items, resources)
	if err != nil {
		return nil, err
	}
	s.record(plan, len(items), time.Since(started))

	s.log.Infof("scheduled %d/%d items, %d conflicts, %d iterations",
		len(plan.Periods), len(items), len(plan.Conflicts), plan.Iterations)
	return plan, nil
}

func (s *Service) record(plan *model.Plan, items int, took time.Duration) {
	runID := uuid.NewString()
	ev := coremetrics.PlanRunEvent{
		RunID:       runID,
		Items:       items,
		Scheduled:   len(plan.Periods),
		Unscheduled: len(plan.Unscheduled),
		Conflicts:   len(plan.Conflicts),
		Iterations:  plan.Iterations,
		Converged:   plan.Converged,
		Duration:    took,
		Time:        time.Now(),
	}
	if err := s.sink.RecordPlanRun(ev); err != nil {
		s.log.Errorf("record plan run: %v", err)
	}
	if rec, ok := s.sink.(coremetrics.ConflictRecorder); ok && len(plan.Conflicts) > 0 {
		evs := make([]coremetrics.ConflictEvent, 0, len(plan.Conflicts))
		for _, c := range plan.Conflicts {
			evs = append(evs, coremetrics.ConflictEvent{
				RunID:       runID,
				ItemIDs:     c.ItemIDs,
				ResourceIDs: c.ResourceIDs,
				Start:       c.Start,
				End:         c.End,
			})
		}
		if err := rec.RecordConflicts(evs); err != nil {
			s.log.Errorf("record conflicts: %v", err)
		}
	}
}

func (s *Service) write(plan *model.Plan) error {
	var out io.Writer = os.Stdout
	if s.cfg.Plan.Output != "" {
		f, err := os.Create(s.cfg.Plan.Output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				s.log.Errorf("close output: %v", cerr)
			}
		}()
		out = f
	}
	switch s.cfg.Plan.Format {
	case "csv":
		return export.WriteCSV(out, plan)
	default:
		return export.WriteJSON(out, plan)
	}
}
