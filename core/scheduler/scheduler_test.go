package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capaplan/capaplan/core/calendar"
	"github.com/capaplan/capaplan/core/model"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

func startAt(t time.Time) *time.Time { return &t }

func fullTime(id string) model.Resource {
	return model.Resource{ID: id, WeeklyCapacityHours: 40}
}

func TestScheduleSingleItemFullResource(t *testing.T) {
	// One resource at 40 h/week is one man-day per business day, so ten
	// man-days of effort end ten business days after the start.
	items := []model.WorkItem{{
		ID: "uc1", RawEffort: 10, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"},
	}}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 1)

	p := plan.Periods[0]
	assert.Equal(t, monday, p.Start)
	assert.Equal(t, calendar.AddBusinessDays(monday, 10), p.End)
	assert.InDelta(t, 1.0, p.EffectiveCapacity, 1e-9)
	// Ten business days forward from a Monday spans two weekends.
	assert.Equal(t, 15, p.CalendarDays)
	assert.True(t, plan.Converged)
	assert.Empty(t, plan.Conflicts)
}

func TestScheduleTwoItemsSharedResource(t *testing.T) {
	// Two items on the same 40 h/week resource, both starting the same
	// Monday, each needing five man-days: the concurrency factor of two
	// halves the effective capacity, so each takes ten business days, and
	// the contention is reported as a mutual conflict.
	items := []model.WorkItem{
		{ID: "a", RawEffort: 5, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
		{ID: "b", RawEffort: 5, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
	}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 2)

	wantEnd := calendar.AddBusinessDays(monday, 10)
	for _, p := range plan.Periods {
		assert.Equal(t, monday, p.Start, p.ItemID)
		assert.Equal(t, wantEnd, p.End, p.ItemID)
	}

	require.Len(t, plan.Conflicts, 1)
	c := plan.Conflicts[0]
	assert.True(t, c.Involves("a"))
	assert.True(t, c.Involves("b"))
	assert.Equal(t, []string{"dev1"}, c.ResourceIDs)
	assert.Equal(t, monday, c.Start)
}

func TestScheduleWeekendStartSnapsForward(t *testing.T) {
	sat := time.Date(2025, time.June, 7, 0, 0, 0, 0, time.UTC)
	items := []model.WorkItem{{
		ID: "a", RawEffort: 2, RequestedStart: startAt(sat), ResourceIDs: []string{"dev1"},
	}}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC), plan.Periods[0].Start)
}

func TestScheduleExcludesIncompleteItems(t *testing.T) {
	items := []model.WorkItem{
		{ID: "no-resources", RawEffort: 3, RequestedStart: startAt(monday)},
		{ID: "no-start", RawEffort: 3, ResourceIDs: []string{"dev1"}},
		{ID: "ok", RawEffort: 3, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
	}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, "ok", plan.Periods[0].ItemID)
	assert.Empty(t, plan.Conflicts)
	assert.Empty(t, plan.Unscheduled)
}

func TestScheduleStaggeredOverlaps(t *testing.T) {
	// Three items on one resource starting Monday, Wednesday and Friday of
	// the same week produce multi-segment timelines whose capacity changes
	// as neighbours start and finish, while each item's segment work still
	// sums to its effort.
	items := []model.WorkItem{
		{ID: "a", RawEffort: 5, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
		{ID: "b", RawEffort: 5, RequestedStart: startAt(monday.AddDate(0, 0, 2)), ResourceIDs: []string{"dev1"}},
		{ID: "c", RawEffort: 5, RequestedStart: startAt(monday.AddDate(0, 0, 4)), ResourceIDs: []string{"dev1"}},
	}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 3)

	multiSegment := 0
	for _, p := range plan.Periods {
		total := 0.0
		for _, sg := range p.Segments {
			total += sg.WorkDone
		}
		item := items[indexOfItem(items, p.ItemID)]
		assert.InDelta(t, item.RawEffort, total, 1e-6, p.ItemID)
		assert.False(t, p.End.Before(p.Start), p.ItemID)
		assert.True(t, calendar.IsBusinessDay(p.End), p.ItemID)
		if len(p.Segments) > 1 {
			multiSegment++
		}
	}
	assert.Equal(t, 3, multiSegment, "every staggered timeline should split into segments")

	wantEnds := map[string]time.Time{
		"a": time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC),
		"b": time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC),
		"c": time.Date(2025, time.June, 23, 0, 0, 0, 0, time.UTC),
	}
	for id, want := range wantEnds {
		p, ok := plan.PeriodFor(id)
		require.True(t, ok, id)
		assert.Equal(t, want, p.End, id)
	}
	assert.Len(t, plan.Conflicts, 3)
	assert.True(t, plan.Converged)
}

func indexOfItem(items []model.WorkItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func TestScheduleNoSharingEquivalence(t *testing.T) {
	// Items on disjoint resources keep their naive single-item duration
	// even when their windows overlap.
	items := []model.WorkItem{
		{ID: "a", RawEffort: 7, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
		{ID: "b", RawEffort: 4, RequestedStart: startAt(monday), ResourceIDs: []string{"dev2"}},
	}
	resources := []model.Resource{fullTime("dev1"), fullTime("dev2")}
	plan, err := New(nil).Schedule(items, resources)
	require.NoError(t, err)

	a, ok := plan.PeriodFor("a")
	require.True(t, ok)
	assert.Equal(t, calendar.AddBusinessDays(monday, 7), a.End)

	b, ok := plan.PeriodFor("b")
	require.True(t, ok)
	assert.Equal(t, calendar.AddBusinessDays(monday, 4), b.End)

	assert.Empty(t, plan.Conflicts)
}

func TestScheduleIdempotent(t *testing.T) {
	items := []model.WorkItem{
		{ID: "a", RawEffort: 5, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1", "dev2"}},
		{ID: "b", RawEffort: 8, RequestedStart: startAt(monday.AddDate(0, 0, 2)), ResourceIDs: []string{"dev1"}},
		{ID: "c", RawEffort: 3, RequestedStart: startAt(monday.AddDate(0, 0, 9)), ResourceIDs: []string{"dev2"}},
	}
	resources := []model.Resource{fullTime("dev1"), {ID: "dev2", WeeklyCapacityHours: 20}}

	s := New(nil)
	first, err := s.Schedule(items, resources)
	require.NoError(t, err)
	second, err := s.Schedule(items, resources)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScheduleMonotonicEffort(t *testing.T) {
	resources := []model.Resource{fullTime("dev1")}
	competitor := model.WorkItem{ID: "x", RawEffort: 6, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}}

	prevDays := 0
	for _, effort := range []float64{2, 4, 6, 9, 13} {
		items := []model.WorkItem{
			{ID: "a", RawEffort: effort, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
			competitor,
		}
		plan, err := New(nil).Schedule(items, resources)
		require.NoError(t, err)
		p, ok := plan.PeriodFor("a")
		require.True(t, ok)
		assert.GreaterOrEqual(t, p.WorkingDays, prevDays, "effort %v", effort)
		prevDays = p.WorkingDays
	}
}

func TestScheduleWorkConservation(t *testing.T) {
	items := []model.WorkItem{
		{ID: "a", RawEffort: 6.5, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
		{ID: "b", RawEffort: 2.25, RequestedStart: startAt(monday.AddDate(0, 0, 3)), ResourceIDs: []string{"dev1", "dev2"}},
		{ID: "c", RawEffort: 4, RequestedStart: startAt(monday.AddDate(0, 0, 7)), ResourceIDs: []string{"dev2"}},
	}
	resources := []model.Resource{fullTime("dev1"), {ID: "dev2", WeeklyCapacityHours: 30}}
	plan, err := New(nil).Schedule(items, resources)
	require.NoError(t, err)

	for _, p := range plan.Periods {
		total := 0.0
		for _, sg := range p.Segments {
			assert.False(t, sg.End.Before(sg.Start), "segment inverted for %s", p.ItemID)
			total += sg.WorkDone
		}
		want := items[indexOfItem(items, p.ItemID)].RawEffort
		assert.InDelta(t, want, total, 1e-6, p.ItemID)
	}
}

func TestScheduleConflictSymmetry(t *testing.T) {
	items := []model.WorkItem{
		{ID: "a", RawEffort: 5, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1"}},
		{ID: "b", RawEffort: 5, RequestedStart: startAt(monday.AddDate(0, 0, 1)), ResourceIDs: []string{"dev1"}},
	}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)

	aConf := plan.ConflictsFor("a")
	bConf := plan.ConflictsFor("b")
	require.Len(t, aConf, 1)
	require.Len(t, bConf, 1)
	assert.Equal(t, aConf, bConf)
	assert.Equal(t, aConf[0].ResourceIDs, bConf[0].ResourceIDs)
}

func TestScheduleZeroCapacityResource(t *testing.T) {
	// An item whose only resource has zero weekly hours can never complete,
	// so it is reported instead of scheduled.
	items := []model.WorkItem{
		{ID: "stuck", RawEffort: 3, RequestedStart: startAt(monday), ResourceIDs: []string{"idle"}},
		{ID: "ok", RawEffort: 3, RequestedStart: startAt(monday), ResourceIDs: []string{"idle", "dev1"}},
	}
	resources := []model.Resource{{ID: "idle", WeeklyCapacityHours: 0}, fullTime("dev1")}
	plan, err := New(nil).Schedule(items, resources)
	require.NoError(t, err)

	assert.Equal(t, []string{"stuck"}, plan.Unscheduled)
	_, ok := plan.PeriodFor("stuck")
	assert.False(t, ok)

	// The zero-capacity resource contributes nothing to the mixed item.
	p, ok := plan.PeriodFor("ok")
	require.True(t, ok)
	assert.Equal(t, calendar.AddBusinessDays(monday, 3), p.End)
	assert.Empty(t, plan.Conflicts)
}

func TestScheduleDuplicateResourceAssignment(t *testing.T) {
	// A resource listed twice on the same item counts once.
	items := []model.WorkItem{{
		ID: "a", RawEffort: 4, RequestedStart: startAt(monday), ResourceIDs: []string{"dev1", "dev1"},
	}}
	plan, err := New(nil).Schedule(items, []model.Resource{fullTime("dev1")})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, calendar.AddBusinessDays(monday, 4), plan.Periods[0].End)
}

func TestScheduleHalfTimeResource(t *testing.T) {
	// 20 h/week is half a man-day per business day.
	items := []model.WorkItem{{
		ID: "a", RawEffort: 5, RequestedStart: startAt(monday), ResourceIDs: []string{"half"},
	}}
	plan, err := New(nil).Schedule(items, []model.Resource{{ID: "half", WeeklyCapacityHours: 20}})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, calendar.AddBusinessDays(monday, 10), plan.Periods[0].End)
	assert.InDelta(t, 0.5, plan.Periods[0].EffectiveCapacity, 1e-9)
}

func TestScheduleEmptyInputs(t *testing.T) {
	plan, err := New(nil).Schedule(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Periods)
	assert.Empty(t, plan.Conflicts)
	assert.True(t, plan.Converged)
}

func TestScheduleRejectsInvalidInput(t *testing.T) {
	start := monday
	cases := map[string]struct {
		items     []model.WorkItem
		resources []model.Resource
	}{
		"negative effort": {
			items:     []model.WorkItem{{ID: "a", RawEffort: -1, RequestedStart: &start, ResourceIDs: []string{"dev1"}}},
			resources: []model.Resource{fullTime("dev1")},
		},
		"zero effort": {
			items:     []model.WorkItem{{ID: "a", RawEffort: 0}},
			resources: []model.Resource{fullTime("dev1")},
		},
		"negative capacity": {
			items:     []model.WorkItem{{ID: "a", RawEffort: 1, RequestedStart: &start, ResourceIDs: []string{"dev1"}}},
			resources: []model.Resource{{ID: "dev1", WeeklyCapacityHours: -40}},
		},
		"unknown resource": {
			items:     []model.WorkItem{{ID: "a", RawEffort: 1, RequestedStart: &start, ResourceIDs: []string{"ghost"}}},
			resources: []model.Resource{fullTime("dev1")},
		},
		"duplicate resource id": {
			items:     nil,
			resources: []model.Resource{fullTime("dev1"), fullTime("dev1")},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(nil).Schedule(tc.items, tc.resources)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 10, ceilDays(10, 1))
	assert.Equal(t, 10, ceilDays(5, 0.5))
	assert.Equal(t, 3, ceilDays(2.5, 1))
	assert.Equal(t, 1, ceilDays(0.1, 1))
	assert.Equal(t, 1, ceilDays(1e-12, 1))
}

func TestChangePointsSortedAndDeduped(t *testing.T) {
	a := model.WorkItem{ID: "a"}
	b := model.WorkItem{ID: "b"}
	snap := []window{
		{start: monday, end: monday.AddDate(0, 0, 7), item: &a},
		{start: monday, end: monday.AddDate(0, 0, 3), item: &b},
	}
	points := changePoints(snap, monday)
	require.Len(t, points, 3)
	assert.Equal(t, monday, points[0])
	assert.Equal(t, monday.AddDate(0, 0, 3), points[1])
	assert.Equal(t, monday.AddDate(0, 0, 7), points[2])

	// Points before the cutoff are dropped.
	points = changePoints(snap, monday.AddDate(0, 0, 5))
	require.Len(t, points, 1)
	assert.Equal(t, monday.AddDate(0, 0, 7), points[0])
}

func TestEffectiveCapacityConcurrency(t *testing.T) {
	byID := map[string]model.Resource{
		"dev1": fullTime("dev1"),
		"dev2": {ID: "dev2", WeeklyCapacityHours: 20},
	}
	a := model.WorkItem{ID: "a", ResourceIDs: []string{"dev1", "dev2"}}
	b := model.WorkItem{ID: "b", ResourceIDs: []string{"dev1"}}
	snap := []window{
		{start: monday, end: monday.AddDate(0, 0, 14), item: &a},
		{start: monday, end: monday.AddDate(0, 0, 7), item: &b},
	}

	// While b is active, dev1 is split two ways: 8/2 + 4 hours = 1 man-day.
	got := effectiveCapacity(&a, 0, snap, monday, monday.AddDate(0, 0, 7), byID)
	assert.InDelta(t, 1.0, got, 1e-9)

	// After b finishes, a has dev1 to itself: 8 + 4 hours = 1.5 man-days.
	got = effectiveCapacity(&a, 0, snap, monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 14), byID)
	assert.InDelta(t, 1.5, got, 1e-9)

	// An item ending exactly at the segment start does not count as active.
	got = effectiveCapacity(&a, 0, snap, snap[1].end, monday.AddDate(0, 0, 10), byID)
	assert.InDelta(t, 1.5, got, 1e-9)
}

func TestScheduleIterationCapReturnsBestEffort(t *testing.T) {
	// A dense, heavily shared plan must come back with periods even when it
	// uses up the whole iteration budget.
	var items []model.WorkItem
	for i := 0; i < 8; i++ {
		items = append(items, model.WorkItem{
			ID:             string(rune('a' + i)),
			RawEffort:      float64(3 + i),
			RequestedStart: startAt(monday.AddDate(0, 0, i)),
			ResourceIDs:    []string{"dev1", "dev2"},
		})
	}
	resources := []model.Resource{fullTime("dev1"), {ID: "dev2", WeeklyCapacityHours: 10}}
	plan, err := New(nil).Schedule(items, resources)
	require.NoError(t, err)
	assert.Len(t, plan.Periods, len(items))
	assert.LessOrEqual(t, plan.Iterations, MaxIterations)
	for _, p := range plan.Periods {
		assert.False(t, p.End.Before(p.Start))
		assert.False(t, math.IsNaN(p.EffectiveCapacity))
	}
}
