package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks domain errors rejected at the planning boundary
// before the simulation runs.
var ErrInvalidInput = errors.New("invalid input")

const (
	// HoursPerManDay converts resource hours into man-days.
	HoursPerManDay = 8.0
	// BusinessDaysPerWeek converts weekly capacity into a daily rate.
	BusinessDaysPerWeek = 5.0
)

// Resource is a shared capacity provider, typically one developer.
type Resource struct {
	ID                  string
	Name                string
	WeeklyCapacityHours float64
}

// DailyCapacityHours is the hours per business day this resource delivers
// when it is not shared.
func (r Resource) DailyCapacityHours() float64 {
	return r.WeeklyCapacityHours / BusinessDaysPerWeek
}

// Validate checks that the resource definition is sound. A zero capacity is
// allowed and simply contributes nothing; a negative one is rejected.
func (r Resource) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: resource id is required", ErrInvalidInput)
	}
	if r.WeeklyCapacityHours < 0 {
		return fmt.Errorf("%w: resource %s: weekly capacity must not be negative", ErrInvalidInput, r.ID)
	}
	return nil
}

// WorkItem is a unit of work to be placed on the calendar. RawEffort is the
// precomputed effort estimate in man-days; the estimation formula itself
// lives outside this module.
type WorkItem struct {
	ID             string
	Name           string
	RawEffort      float64
	RequestedStart *time.Time
	ResourceIDs    []string
}

// Validate checks the domain invariants that make the simulation meaningful.
func (w WorkItem) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("%w: work item id is required", ErrInvalidInput)
	}
	if w.RawEffort <= 0 {
		return fmt.Errorf("%w: item %s: raw effort must be positive", ErrInvalidInput, w.ID)
	}
	return nil
}

// Schedulable reports whether the item carries enough information to be
// placed on the calendar. Items that are not schedulable are skipped, not
// rejected.
func (w WorkItem) Schedulable() bool {
	return w.RequestedStart != nil && len(w.ResourceIDs) > 0
}

// UsesResource reports whether the item is assigned the given resource.
func (w WorkItem) UsesResource(id string) bool {
	for _, rid := range w.ResourceIDs {
		if rid == id {
			return true
		}
	}
	return false
}

// Segment is a sub-interval [Start, End) of an item's timeline during which
// its concurrency level, and therefore its effective capacity, is constant.
type Segment struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	EffectiveCapacity float64   `json:"effective_capacity"`
	WorkDone          float64   `json:"work_done"`
}

// Period is the converged timeline of one work item.
type Period struct {
	ItemID string    `json:"item_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	// WorkingDays is the inclusive business-day span of [Start, End].
	WorkingDays int `json:"working_days"`
	// CalendarDays is the inclusive calendar-day span, weekends included.
	CalendarDays int `json:"calendar_days"`
	// EffectiveCapacity is the man-days per business day the item actually
	// received over its window at the end of the simulation.
	EffectiveCapacity float64   `json:"effective_capacity"`
	Segments          []Segment `json:"segments,omitempty"`
}

// Conflict reports work items whose timelines overlap while sharing at least
// one resource.
type Conflict struct {
	ItemIDs     []string  `json:"item_ids"`
	ResourceIDs []string  `json:"resource_ids"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Involves reports whether the conflict names the given work item.
func (c Conflict) Involves(itemID string) bool {
	for _, id := range c.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Plan is the result of one scheduler invocation. It is recomputed from
// scratch on every call; nothing in it is mutated incrementally.
type Plan struct {
	// Periods holds one entry per scheduled item, in input order.
	Periods   []Period   `json:"periods"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Unscheduled lists items whose assigned resources deliver no capacity
	// at all; they can never complete and are reported instead of scheduled.
	Unscheduled []string `json:"unscheduled,omitempty"`
	Iterations  int      `json:"iterations"`
	Converged   bool     `json:"converged"`
}

// PeriodFor returns the period computed for the given item, if any.
func (p *Plan) PeriodFor(itemID string) (Period, bool) {
	for _, per := range p.Periods {
		if per.ItemID == itemID {
			return per, true
		}
	}
	return Period{}, false
}

// ConflictsFor returns the conflicts naming the given item.
func (p *Plan) ConflictsFor(itemID string) []Conflict {
	var out []Conflict
	for _, c := range p.Conflicts {
		if c.Involves(itemID) {
			out = append(out, c)
		}
	}
	return out
}
