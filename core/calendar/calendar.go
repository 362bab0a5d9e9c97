package calendar

import "time"

// Date truncates t to midnight UTC. All planning arithmetic works on
// day-granular timestamps.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether t falls on Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextBusinessDay returns t unchanged when it is a business day, otherwise
// the following Monday.
func NextBusinessDay(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

// AddBusinessDays returns the n-th business day counted after t. The start
// day itself is never counted: t is first snapped forward to a business day,
// then calendar days are walked one at a time until n business days have been
// consumed. For n <= 0 the input is returned unchanged.
//
// Note the asymmetry with BusinessDaysBetween: this function is exclusive of
// its start day, while BusinessDaysBetween is inclusive on both ends. The
// scheduler relies on both conventions.
func AddBusinessDays(t time.Time, n int) time.Time {
	if n <= 0 {
		return t
	}
	d := NextBusinessDay(t)
	for added := 0; added < n; {
		d = d.AddDate(0, 0, 1)
		if IsBusinessDay(d) {
			added++
		}
	}
	return d
}

// BusinessDaysBetween counts the business days in [start, end], inclusive on
// both ends. It returns 0 when start is after end.
func BusinessDaysBetween(start, end time.Time) int {
	if start.After(end) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			n++
		}
	}
	return n
}
