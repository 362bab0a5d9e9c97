// Package scheduler computes business-day timelines for work items that
// compete for shared, capacity-limited resources.
//
// A resource split across several concurrently active items delivers only a
// fraction of its weekly capacity to each, so end dates cannot be derived by
// simple date arithmetic. The scheduler seeds every item with its single-item
// duration and then refines all timelines together: each pass slices an
// item's window into segments at the start/end dates of every other item,
// computes the effective capacity per segment from the concurrency on each
// shared resource, and re-solves the end date. Passes repeat until no end
// date moves, capped at MaxIterations.
//
// The computation is synchronous, stateless and side-effect-free; identical
// inputs always produce identical outputs. Worst-case cost is
// O(items x iterations x changePoints x items) because every segment
// recomputes its active set pairwise. That bound is part of the behavioural
// contract: the caller re-runs the scheduler on every edit and item counts
// stay in the low hundreds.
package scheduler
