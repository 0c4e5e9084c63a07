package models

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the sampling interval of generated series.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
)

// ParseFrequency accepts the long names plus the pandas-style aliases D, W, M, Q.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d":
		return Daily, nil
	case "weekly", "w":
		return Weekly, nil
	case "monthly", "m", "ms":
		return Monthly, nil
	case "quarterly", "q", "qs":
		return Quarterly, nil
	default:
		return "", fmt.Errorf("unsupported frequency %q", s)
	}
}

// Step returns the date of period i counted from start.
// Monthly and quarterly steps use calendar arithmetic.
func (f Frequency) Step(start time.Time, i int) time.Time {
	switch f {
	case Weekly:
		return start.AddDate(0, 0, 7*i)
	case Monthly:
		return start.AddDate(0, i, 0)
	case Quarterly:
		return start.AddDate(0, 3*i, 0)
	default:
		return start.AddDate(0, 0, i)
	}
}

// PeriodsPerYear is the year-over-year lookback for this frequency.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case Weekly:
		return 52
	case Monthly:
		return 12
	case Quarterly:
		return 4
	default:
		return 365
	}
}

// Periods lists every period date from start up to and including end.
// It returns an empty slice when start is after end.
func (f Frequency) Periods(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	out := []time.Time{}
	for i := 0; ; i++ {
		d := f.Step(start, i)
		if d.After(end) {
			return out
		}
		out = append(out, d)
	}
}
