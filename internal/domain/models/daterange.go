package models

import "time"

// DateLayout is the canonical calendar date format used on every surface.
const DateLayout = "2006-01-02"

// DateRange is an inclusive [Start, End] interval of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range selects nothing (Start after End).
func (r DateRange) Empty() bool { return r.Start.After(r.End) }

// Contains reports whether d falls within the range, bounds included.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Clamp limits the range to bounds. An already empty range stays empty.
func (r DateRange) Clamp(bounds DateRange) DateRange {
	if r.Empty() {
		return r
	}
	out := r
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out
}

// String renders the range as "start..end".
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
