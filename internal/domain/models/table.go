package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Missing marks an absent cell in a MergedTable column.
var Missing = math.NaN()

// IsMissing reports whether v is the missing marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Point is a single (date, value) observation.
type Point struct {
	Date  time.Time
	Value float64
}

// IndicatorSeries is a named numeric signal keyed by date.
// After cleaning, dates are unique and ascending.
type IndicatorSeries struct {
	Name   string
	Unit   string
	Points []Point
}

// Len returns the number of observations.
func (s IndicatorSeries) Len() int { return len(s.Points) }

// MergedTable is the wide-format join of several indicator series on a
// shared ascending date axis. A table is never mutated after construction;
// derived tables share the column slices they do not change.
type MergedTable struct {
	dates   []time.Time
	columns []string
	values  map[string][]float64
	units   map[string]string
}

// NewMergedTable validates and builds a table. Every column must have one
// value per date and dates must be strictly ascending.
func NewMergedTable(dates []time.Time, columns []string, values map[string][]float64) (*MergedTable, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("date axis not strictly ascending at row %d (%s)", i, dates[i].Format(DateLayout))
		}
	}
	seen := make(map[string]struct{}, len(columns))
	vals := make(map[string][]float64, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
		v, ok := values[c]
		if !ok {
			return nil, fmt.Errorf("column %q has no values", c)
		}
		if len(v) != len(dates) {
			return nil, fmt.Errorf("column %q has %d values, want %d", c, len(v), len(dates))
		}
		vals[c] = v
	}
	return &MergedTable{
		dates:   dates,
		columns: append([]string(nil), columns...),
		values:  vals,
		units:   map[string]string{},
	}, nil
}

// EmptyTable returns a zero-row table carrying the given column set.
func EmptyTable(columns ...string) *MergedTable {
	vals := make(map[string][]float64, len(columns))
	for _, c := range columns {
		vals[c] = []float64{}
	}
	return &MergedTable{
		dates:   []time.Time{},
		columns: append([]string(nil), columns...),
		values:  vals,
		units:   map[string]string{},
	}
}

// Len returns the number of rows.
func (t *MergedTable) Len() int { return len(t.dates) }

// Dates returns a copy of the date axis.
func (t *MergedTable) Dates() []time.Time { return append([]time.Time(nil), t.dates...) }

// Date returns the date of row i.
func (t *MergedTable) Date(i int) time.Time { return t.dates[i] }

// Columns returns the column names in table order.
func (t *MergedTable) Columns() []string { return append([]string(nil), t.columns...) }

// HasColumn reports whether name is a column of t.
func (t *MergedTable) HasColumn(name string) bool {
	_, ok := t.values[name]
	return ok
}

// Column returns a copy of the named column.
func (t *MergedTable) Column(name string) ([]float64, bool) {
	v, ok := t.values[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), v...), true
}

// Value returns the cell at row i of column name, or Missing if the column is absent.
func (t *MergedTable) Value(i int, name string) float64 {
	v, ok := t.values[name]
	if !ok {
		return Missing
	}
	return v[i]
}

// Unit returns the descriptive unit of a column, if known.
func (t *MergedTable) Unit(name string) string { return t.units[name] }

// WithUnits returns a copy of t annotated with column units.
func (t *MergedTable) WithUnits(units map[string]string) *MergedTable {
	out := t.shallow()
	for k, v := range units {
		if v != "" && t.HasColumn(k) {
			out.units[k] = v
		}
	}
	return out
}

// Bounds returns the first and last dates; ok is false for an empty table.
func (t *MergedTable) Bounds() (DateRange, bool) {
	if len(t.dates) == 0 {
		return DateRange{}, false
	}
	return DateRange{Start: t.dates[0], End: t.dates[len(t.dates)-1]}, true
}

// WithColumn returns a new table with column name set to values. An existing
// column of the same name is replaced in place (order kept); otherwise the
// column is appended.
func (t *MergedTable) WithColumn(name string, values []float64) (*MergedTable, error) {
	if name == "" {
		return nil, fmt.Errorf("empty column name")
	}
	if len(values) != len(t.dates) {
		return nil, fmt.Errorf("column %q has %d values, want %d", name, len(values), len(t.dates))
	}
	out := t.shallow()
	if _, exists := out.values[name]; !exists {
		out.columns = append(out.columns, name)
	}
	out.values[name] = values
	return out, nil
}

// Select returns a table restricted to columns, in the given order.
func (t *MergedTable) Select(columns []string) (*MergedTable, error) {
	if unknown := t.Unknown(columns); len(unknown) > 0 {
		return nil, &UnknownColumnError{Columns: unknown}
	}
	vals := make(map[string][]float64, len(columns))
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, dup := vals[c]; dup {
			continue
		}
		vals[c] = t.values[c]
		cols = append(cols, c)
	}
	out := &MergedTable{dates: t.dates, columns: cols, values: vals, units: map[string]string{}}
	for _, c := range cols {
		if u := t.units[c]; u != "" {
			out.units[c] = u
		}
	}
	return out, nil
}

// Rows returns rows [from, to) as a new table sharing no mutable state with t.
func (t *MergedTable) Rows(from, to int) *MergedTable {
	if from < 0 {
		from = 0
	}
	if to > len(t.dates) {
		to = len(t.dates)
	}
	if from >= to {
		out := EmptyTable(t.columns...)
		out.units = copyUnits(t.units)
		return out
	}
	vals := make(map[string][]float64, len(t.columns))
	for _, c := range t.columns {
		vals[c] = t.values[c][from:to:to]
	}
	return &MergedTable{
		dates:   t.dates[from:to:to],
		columns: append([]string(nil), t.columns...),
		values:  vals,
		units:   copyUnits(t.units),
	}
}

// Search returns the first row whose date is not before d.
func (t *MergedTable) Search(d time.Time) int {
	return sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(d) })
}

// SearchAfter returns the first row whose date is after d.
func (t *MergedTable) SearchAfter(d time.Time) int {
	return sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(d) })
}

// Unknown lists the names in columns that t does not contain.
func (t *MergedTable) Unknown(columns []string) []string {
	var unknown []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			unknown = append(unknown, c)
		}
	}
	return unknown
}

func (t *MergedTable) shallow() *MergedTable {
	vals := make(map[string][]float64, len(t.values)+1)
	for k, v := range t.values {
		vals[k] = v
	}
	return &MergedTable{
		dates:   t.dates,
		columns: append([]string(nil), t.columns...),
		values:  vals,
		units:   copyUnits(t.units),
	}
}

func copyUnits(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
