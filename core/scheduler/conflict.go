package scheduler

import (
	"time"

	"github.com/capaplan/capaplan/core/model"
)

// detectConflicts finds unordered pairs of scheduled items whose periods
// overlap (inclusive on both ends) while sharing at least one resource.
// A discovered pair folds into an existing conflict when that conflict
// already covers both items and touches one of the shared resources, so the
// same underlying contention is reported once.
func detectConflicts(periods []model.Period, scheds []*schedule) []model.Conflict {
	var conflicts []model.Conflict
	for i := 0; i < len(periods); i++ {
		for j := i + 1; j < len(periods); j++ {
			a, b := &periods[i], &periods[j]
			if a.Start.After(b.End) || b.Start.After(a.End) {
				continue
			}
			shared := sharedResources(scheds[i].item.ResourceIDs, scheds[j].item.ResourceIDs)
			if len(shared) == 0 {
				continue
			}
			start := laterOf(a.Start, b.Start)
			end := earlierOf(a.End, b.End)
			if mergeConflict(conflicts, a.ItemID, b.ItemID, shared, start, end) {
				continue
			}
			conflicts = append(conflicts, model.Conflict{
				ItemIDs:     []string{a.ItemID, b.ItemID},
				ResourceIDs: shared,
				Start:       start,
				End:         end,
			})
		}
	}
	return conflicts
}

// mergeConflict folds the pair into an existing record when one already
// covers both items and an overlapping resource. The record's resource set
// and window absorb the pair's.
func mergeConflict(conflicts []model.Conflict, aID, bID string, shared []string, start, end time.Time) bool {
	for k := range conflicts {
		c := &conflicts[k]
		if !c.Involves(aID) || !c.Involves(bID) || !intersects(c.ResourceIDs, shared) {
			continue
		}
		for _, rid := range shared {
			if !containsString(c.ResourceIDs, rid) {
				c.ResourceIDs = append(c.ResourceIDs, rid)
			}
		}
		if start.Before(c.Start) {
			c.Start = start
		}
		if end.After(c.End) {
			c.End = end
		}
		return true
	}
	return false
}

// sharedResources returns the ids present in both lists, in the order of the
// first list.
func sharedResources(a, b []string) []string {
	var shared []string
	for i, rid := range a {
		if seenBefore(a, i) {
			continue
		}
		if containsString(b, rid) {
			shared = append(shared, rid)
		}
	}
	return shared
}

func intersects(a, b []string) bool {
	for _, id := range a {
		if containsString(b, id) {
			return true
		}
	}
	return false
}

func containsString(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
