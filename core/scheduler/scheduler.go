package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/capaplan/capaplan/core/calendar"
	"github.com/capaplan/capaplan/core/logger"
	"github.com/capaplan/capaplan/core/model"
)

// MaxIterations caps the fixed-point refinement. If the timelines have not
// settled by then the best periods computed so far are returned; a slightly
// stale plan beats a hard failure for a caller that recomputes on every edit.
const MaxIterations = 10

// workEpsilon is the tolerance below which remaining effort counts as done.
const workEpsilon = 1e-9

// Scheduler turns work items and resources into a Plan.
type Scheduler struct {
	log logger.Logger
}

// New returns a Scheduler logging through log. A nil logger is replaced with
// a no-op one.
func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = nopLogger{}
	}
	return &Scheduler{log: log}
}

// schedule is the mutable per-item state during simulation.
type schedule struct {
	item     model.WorkItem
	start    time.Time
	end      time.Time
	naive    float64 // single-item man-days/day from the seed pass
	segments []model.Segment
}

// window is the immutable per-iteration snapshot of one item's timeline.
type window struct {
	start, end time.Time
	item       *model.WorkItem
}

// Schedule computes converged periods and resource conflicts for the given
// items. Items without a requested start or without assigned resources are
// silently excluded; items whose resources deliver no capacity at all are
// reported in Plan.Unscheduled. Iteration follows input order throughout so
// identical inputs yield identical plans.
func (s *Scheduler) Schedule(items []model.WorkItem, resources []model.Resource) (*model.Plan, error) {
	byID, err := indexResources(resources)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		for _, rid := range it.ResourceIDs {
			if _, ok := byID[rid]; !ok {
				return nil, fmt.Errorf("%w: item %s references unknown resource %s", model.ErrInvalidInput, it.ID, rid)
			}
		}
	}

	plan := &model.Plan{}
	scheds := s.seed(items, byID, plan)

	for plan.Iterations < MaxIterations {
		plan.Iterations++
		snap := snapshotOf(scheds)
		changed := false
		for i, sc := range scheds {
			end, segs := s.refine(sc, i, snap, byID)
			if !end.Equal(sc.end) {
				changed = true
			}
			sc.end = end
			sc.segments = segs
		}
		if !changed {
			plan.Converged = true
			break
		}
	}
	if !plan.Converged {
		s.log.Warnf("timelines did not settle within %d iterations, returning best effort", MaxIterations)
	}

	s.finalize(scheds, byID, plan)
	plan.Conflicts = detectConflicts(plan.Periods, scheds)
	return plan, nil
}

// seed gives every eligible item its naive single-item timeline: requested
// start snapped to a business day, duration from the summed unshared daily
// capacity of its resources.
func (s *Scheduler) seed(items []model.WorkItem, byID map[string]model.Resource, plan *model.Plan) []*schedule {
	scheds := make([]*schedule, 0, len(items))
	for _, it := range items {
		if !it.Schedulable() {
			continue
		}
		naive := naiveCapacity(it, byID)
		if naive <= workEpsilon {
			s.log.Warnf("item %s: assigned resources deliver no capacity, cannot schedule", it.ID)
			plan.Unscheduled = append(plan.Unscheduled, it.ID)
			continue
		}
		start := calendar.NextBusinessDay(calendar.Date(*it.RequestedStart))
		scheds = append(scheds, &schedule{
			item:  it,
			start: start,
			end:   calendar.AddBusinessDays(start, ceilDays(it.RawEffort, naive)),
			naive: naive,
		})
	}
	return scheds
}

// refine recomputes one item's end date against the previous iteration's
// snapshot. The walk slices the item's timeline at every change point and
// consumes effort segment by segment until it can solve exactly.
func (s *Scheduler) refine(sc *schedule, idx int, snap []window, byID map[string]model.Resource) (time.Time, []model.Segment) {
	points := changePoints(snap, sc.start)
	if len(points) == 0 {
		points = append(points, snap[idx].end)
	}

	segments := sc.segments[:0]
	remaining := sc.item.RawEffort
	segStart := sc.start
	for _, p := range points {
		if !p.After(segStart) {
			continue
		}
		segEnd := p
		capacity := effectiveCapacity(&sc.item, idx, snap, segStart, segEnd, byID)
		segWork := float64(businessDaysHalfOpen(segStart, segEnd)) * capacity
		if capacity > workEpsilon && segWork >= remaining-workEpsilon {
			end := calendar.AddBusinessDays(segStart, ceilDays(remaining, capacity))
			segments = append(segments, model.Segment{Start: segStart, End: end, EffectiveCapacity: capacity, WorkDone: remaining})
			return end, segments
		}
		segments = append(segments, model.Segment{Start: segStart, End: segEnd, EffectiveCapacity: capacity, WorkDone: segWork})
		remaining -= segWork
		segStart = segEnd
	}

	// Effort outlives every change point: extend past the last one using the
	// items still active there. If nothing is active with capacity to spare,
	// fall back to the item's naive single-item rate so the item always
	// completes.
	capacity := effectiveCapacity(&sc.item, idx, snap, segStart, farFuture, byID)
	if capacity <= workEpsilon {
		capacity = sc.naive
	}
	end := calendar.AddBusinessDays(segStart, ceilDays(remaining, capacity))
	segments = append(segments, model.Segment{Start: segStart, End: end, EffectiveCapacity: capacity, WorkDone: remaining})
	return end, segments
}

// finalize turns the converged schedules into output periods. The effective
// capacity is recomputed one last time against the converged set, over each
// item's full window.
func (s *Scheduler) finalize(scheds []*schedule, byID map[string]model.Resource, plan *model.Plan) {
	snap := snapshotOf(scheds)
	plan.Periods = make([]model.Period, 0, len(scheds))
	for i, sc := range scheds {
		capacity := effectiveCapacity(&sc.item, i, snap, sc.start, sc.end, byID)
		if capacity <= workEpsilon {
			capacity = sc.naive
		}
		if total := floats.Sum(segmentWork(sc.segments)); !scalar.EqualWithinAbs(total, sc.item.RawEffort, 1e-6) {
			s.log.Debugw("segment work drifted from raw effort", map[string]any{
				"item": sc.item.ID, "total": total, "raw_effort": sc.item.RawEffort,
			})
		}
		plan.Periods = append(plan.Periods, model.Period{
			ItemID:            sc.item.ID,
			Start:             sc.start,
			End:               sc.end,
			WorkingDays:       calendar.BusinessDaysBetween(sc.start, sc.end),
			CalendarDays:      int(sc.end.Sub(sc.start).Hours()/24) + 1,
			EffectiveCapacity: capacity,
			Segments:          sc.segments,
		})
	}
}

// farFuture bounds open-ended extension segments when collecting the active
// set past the last change point.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// effectiveCapacity returns the man-days per business day the item receives
// in [segStart, segEnd). Each assigned resource's daily rate is divided by
// the number of items active in the segment that use it, the item itself
// included. Zero-capacity resources contribute nothing.
func effectiveCapacity(item *model.WorkItem, idx int, snap []window, segStart, segEnd time.Time, byID map[string]model.Resource) float64 {
	hours := 0.0
	for ri, rid := range item.ResourceIDs {
		if seenBefore(item.ResourceIDs, ri) {
			continue
		}
		daily := byID[rid].DailyCapacityHours()
		if daily <= 0 {
			continue
		}
		share := 1
		for j := range snap {
			if j == idx {
				continue
			}
			w := &snap[j]
			if w.start.Before(segEnd) && w.end.After(segStart) && w.item.UsesResource(rid) {
				share++
			}
		}
		hours += daily / float64(share)
	}
	return hours / model.HoursPerManDay
}

// naiveCapacity is the single-item man-days/day an item would receive if
// nothing else competed for its resources.
func naiveCapacity(item model.WorkItem, byID map[string]model.Resource) float64 {
	hours := 0.0
	for ri, rid := range item.ResourceIDs {
		if seenBefore(item.ResourceIDs, ri) {
			continue
		}
		hours += byID[rid].DailyCapacityHours()
	}
	return hours / model.HoursPerManDay
}

// seenBefore reports whether ids[i] already occurs at a lower index, so
// duplicated assignments are counted once without allocating a set.
func seenBefore(ids []string, i int) bool {
	for j := 0; j < i; j++ {
		if ids[j] == ids[i] {
			return true
		}
	}
	return false
}

// changePoints gathers the start and end dates of every scheduled item at or
// after from, sorted ascending and deduplicated.
func changePoints(snap []window, from time.Time) []time.Time {
	points := make([]time.Time, 0, 2*len(snap))
	for i := range snap {
		if !snap[i].start.Before(from) {
			points = append(points, snap[i].start)
		}
		if !snap[i].end.Before(from) {
			points = append(points, snap[i].end)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })
	dedup := points[:0]
	for i, p := range points {
		if i == 0 || !p.Equal(dedup[len(dedup)-1]) {
			dedup = append(dedup, p)
		}
	}
	return dedup
}

func snapshotOf(scheds []*schedule) []window {
	snap := make([]window, len(scheds))
	for i, sc := range scheds {
		snap[i] = window{start: sc.start, end: sc.end, item: &sc.item}
	}
	return snap
}

// businessDaysHalfOpen counts business days in [start, end).
func businessDaysHalfOpen(start, end time.Time) int {
	return calendar.BusinessDaysBetween(start, end.AddDate(0, 0, -1))
}

// ceilDays converts remaining effort at a daily rate into whole business
// days, never fewer than one.
func ceilDays(effort, capacityPerDay float64) int {
	d := int(math.Ceil(effort / capacityPerDay))
	if d < 1 {
		d = 1
	}
	return d
}

func segmentWork(segs []model.Segment) []float64 {
	work := make([]float64, len(segs))
	for i, sg := range segs {
		work[i] = sg.WorkDone
	}
	return work
}

func indexResources(resources []model.Resource) (map[string]model.Resource, error) {
	byID := make(map[string]model.Resource, len(resources))
	for _, r := range resources {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate resource id %s", model.ErrInvalidInput, r.ID)
		}
		byID[r.ID] = r
	}
	return byID, nil
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
