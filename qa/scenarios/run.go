package scenarios

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/capaplan/capaplan/core/model"
	"github.com/capaplan/capaplan/core/planfile"
	"github.com/capaplan/capaplan/core/scheduler"
)

// Run schedules the scenario's items and returns the plan.
func Run(sc Scenario) (*model.Plan, error) {
	f := planfile.File{Resources: sc.Resources, Items: sc.Items}
	items, resources, err := f.Models()
	if err != nil {
		return nil, err
	}
	return scheduler.New(nil).Schedule(items, resources)
}

// Check compares the plan against the scenario's expectations and returns
// the first mismatch.
func Check(sc Scenario, plan *model.Plan) error {
	for id, want := range sc.Expected.Starts {
		p, ok := plan.PeriodFor(id)
		if !ok {
			return fmt.Errorf("scenario %s: item %s has no period", sc.Name, id)
		}
		if got := p.Start.Format(planfile.DateLayout); got != want {
			return fmt.Errorf("scenario %s: item %s starts %s, want %s", sc.Name, id, got, want)
		}
	}
	for id, want := range sc.Expected.Ends {
		p, ok := plan.PeriodFor(id)
		if !ok {
			return fmt.Errorf("scenario %s: item %s has no period", sc.Name, id)
		}
		if got := p.End.Format(planfile.DateLayout); got != want {
			return fmt.Errorf("scenario %s: item %s ends %s, want %s", sc.Name, id, got, want)
		}
	}
	if got := len(plan.Conflicts); got != sc.Expected.Conflicts {
		return fmt.Errorf("scenario %s: %d conflicts, want %d", sc.Name, got, sc.Expected.Conflicts)
	}
	for _, id := range sc.Expected.Unscheduled {
		if !containsString(plan.Unscheduled, id) {
			return fmt.Errorf("scenario %s: item %s missing from unscheduled list", sc.Name, id)
		}
	}
	for _, id := range sc.Expected.ExcludedItems {
		if _, ok := plan.PeriodFor(id); ok {
			return fmt.Errorf("scenario %s: item %s unexpectedly scheduled", sc.Name, id)
		}
		for _, c := range plan.Conflicts {
			if c.Involves(id) {
				return fmt.Errorf("scenario %s: item %s unexpectedly in a conflict", sc.Name, id)
			}
		}
	}
	// Work conservation holds for every scenario, expected or not.
	for _, p := range plan.Periods {
		work := make([]float64, len(p.Segments))
		for i, sg := range p.Segments {
			work[i] = sg.WorkDone
		}
		total := floats.Sum(work)
		raw := rawEffortOf(sc, p.ItemID)
		if !scalar.EqualWithinAbs(total, raw, 1e-6) {
			return fmt.Errorf("scenario %s: item %s segment work %v != effort %v", sc.Name, p.ItemID, total, raw)
		}
	}
	return nil
}

func rawEffortOf(sc Scenario, id string) float64 {
	for _, it := range sc.Items {
		if it.ID == id {
			return it.EffortDays
		}
	}
	return 0
}

func containsString(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
