// Package query slices merged tables by date range and column and summarizes
// the result.
package query

import (
	"EconDash/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Slice returns the rows of t inside r (bounds included) restricted to
// columns, in request order. An empty column list selects every column.
// A range with Start after End yields an empty table; a range reaching past
// the table is clamped to its bounds.
func Slice(t *models.MergedTable, r models.DateRange, columns []string) (*models.MergedTable, error) {
	if len(columns) == 0 {
		columns = t.Columns()
	}
	sel, err := t.Select(columns)
	if err != nil {
		return nil, err
	}
	bounds, ok := t.Bounds()
	if !ok || r.Empty() {
		return sel.Rows(0, 0), nil
	}
	r = r.Clamp(bounds)
	if r.Empty() {
		return sel.Rows(0, 0), nil
	}
	from := sel.Search(r.Start)
	to := sel.SearchAfter(r.End)
	return sel.Rows(from, to), nil
}

// Summarize computes SummaryStats for each column over the rows of t.
// Missing cells are ignored; a column with no values gets MissingStats.
func Summarize(t *models.MergedTable, columns []string) (map[string]models.SummaryStats, error) {
	if len(columns) == 0 {
		columns = t.Columns()
	}
	if unknown := t.Unknown(columns); len(unknown) > 0 {
		return nil, &models.UnknownColumnError{Columns: unknown}
	}
	out := make(map[string]models.SummaryStats, len(columns))
	for _, c := range columns {
		vals, _ := t.Column(c)
		out[c] = summarize(present(vals))
	}
	return out, nil
}

func summarize(vals []float64) models.SummaryStats {
	if len(vals) == 0 {
		return models.MissingStats()
	}
	latest := vals[len(vals)-1]
	return models.SummaryStats{
		Count:  len(vals),
		Latest: latest,
		Mean:   stat.Mean(vals, nil),
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
		Change: latest - vals[0],
	}
}

func present(vals []float64) []float64 {
	out := vals[:0]
	for _, v := range vals {
		if !models.IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}
