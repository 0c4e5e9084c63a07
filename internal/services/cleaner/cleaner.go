// Package cleaner normalizes raw indicator series and outer-joins them on date.
package cleaner

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"EconDash/internal/domain/models"
	"EconDash/pkg/util"
)

// Stats counts what Clean kept and dropped.
type Stats struct {
	Read      int
	BadDate   int
	BadValue  int
	Duplicate int
	Kept      int
}

// Dropped is the total number of discarded rows.
func (s Stats) Dropped() int { return s.BadDate + s.BadValue + s.Duplicate }

// Clean parses dates and values, drops rows that fail either, removes
// duplicate dates keeping the first occurrence and sorts ascending.
func Clean(raw models.RawSeries) models.IndicatorSeries {
	s, _ := CleanWithStats(raw)
	return s
}

// CleanWithStats is Clean plus drop counters for logging.
func CleanWithStats(raw models.RawSeries) (models.IndicatorSeries, Stats) {
	st := Stats{Read: len(raw.Records)}
	seen := make(map[time.Time]struct{}, len(raw.Records))
	pts := make([]models.Point, 0, len(raw.Records))
	for _, rec := range raw.Records {
		d, ok := util.ParseDate(rec[0])
		if !ok {
			st.BadDate++
			continue
		}
		v, ok := parseValue(rec[1])
		if !ok {
			st.BadValue++
			continue
		}
		if _, dup := seen[d]; dup {
			st.Duplicate++
			continue
		}
		seen[d] = struct{}{}
		pts = append(pts, models.Point{Date: d, Value: v})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	st.Kept = len(pts)
	return models.IndicatorSeries{Name: strings.TrimSpace(raw.Name), Unit: raw.Unit, Points: pts}, st
}

// parseValue accepts finite floats; "." is FRED's missing marker.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Merge performs a full outer join on date. The date axis is the sorted union
// of all input dates; cells a series lacks stay Missing. Empty series yield an
// all-missing column. A repeated name keeps the first series.
func Merge(series []models.IndicatorSeries) *models.MergedTable {
	cols := make([]string, 0, len(series))
	kept := make([]models.IndicatorSeries, 0, len(series))
	units := map[string]string{}
	names := map[string]struct{}{}
	for _, s := range series {
		if s.Name == "" {
			continue
		}
		if _, dup := names[s.Name]; dup {
			continue
		}
		names[s.Name] = struct{}{}
		cols = append(cols, s.Name)
		kept = append(kept, s)
		units[s.Name] = s.Unit
	}

	axis := unionDates(kept)
	index := make(map[time.Time]int, len(axis))
	for i, d := range axis {
		index[d] = i
	}

	values := make(map[string][]float64, len(kept))
	for _, s := range kept {
		col := make([]float64, len(axis))
		for i := range col {
			col[i] = models.Missing
		}
		for _, p := range s.Points {
			col[index[p.Date]] = p.Value
		}
		values[s.Name] = col
	}

	t, err := models.NewMergedTable(axis, cols, values)
	if err != nil {
		// unreachable: axis is sorted and unique, columns sized to axis
		return models.EmptyTable(cols...)
	}
	return t.WithUnits(units)
}

func unionDates(series []models.IndicatorSeries) []time.Time {
	set := map[time.Time]struct{}{}
	for _, s := range series {
		for _, p := range s.Points {
			set[p.Date] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// FromTable splits a wide table back into per-column raw series so that
// file-sourced tables go through the same cleaning rules.
func FromTable(header []string, records [][]string, dateCol int) []models.RawSeries {
	out := make([]models.RawSeries, 0, len(header))
	for c, name := range header {
		if c == dateCol {
			continue
		}
		raw := models.RawSeries{Name: name, Records: make([][2]string, 0, len(records))}
		for _, rec := range records {
			if c >= len(rec) || dateCol >= len(rec) {
				continue
			}
			raw.Records = append(raw.Records, [2]string{rec[dateCol], rec[c]})
		}
		out = append(out, raw)
	}
	return out
}
