package query

import (
	"errors"
	"math"
	"testing"
	"time"

	"EconDash/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sample(t *testing.T) *models.MergedTable {
	t.Helper()
	dates := []time.Time{day("2020-01-01"), day("2020-02-01"), day("2020-03-01"), day("2020-04-01")}
	tbl, err := models.NewMergedTable(dates, []string{"GDP", "UNRATE", "EMPTY"}, map[string][]float64{
		"GDP":    {100, 102, math.NaN(), 110},
		"UNRATE": {4, 5, 6, 3},
		"EMPTY":  {math.NaN(), math.NaN(), math.NaN(), math.NaN()},
	})
	require.NoError(t, err)
	return tbl
}

func TestSliceInclusiveRange(t *testing.T) {
	out, err := Slice(sample(t), models.DateRange{Start: day("2020-02-01"), End: day("2020-03-01")}, []string{"UNRATE", "GDP"})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2020-02-01"), day("2020-03-01")}, out.Dates())
	assert.Equal(t, []string{"UNRATE", "GDP"}, out.Columns())
	u, _ := out.Column("UNRATE")
	assert.Equal(t, []float64{5, 6}, u)
}

func TestSliceEndWithTimeOfDay(t *testing.T) {
	end := day("2020-02-01").Add(12 * time.Hour)
	out, err := Slice(sample(t), models.DateRange{Start: day("2020-01-01"), End: end}, []string{"GDP"})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2020-01-01"), day("2020-02-01")}, out.Dates())

	out, err = Slice(sample(t), models.DateRange{Start: day("2020-01-01"), End: day("2020-01-01").Add(12 * time.Hour)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2020-01-01")}, out.Dates())
}

func TestSliceClampsAndDefaultsColumns(t *testing.T) {
	out, err := Slice(sample(t), models.DateRange{Start: day("1990-01-01"), End: day("2030-01-01")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())
	assert.Equal(t, []string{"GDP", "UNRATE", "EMPTY"}, out.Columns())
}

func TestSliceBetweenRows(t *testing.T) {
	out, err := Slice(sample(t), models.DateRange{Start: day("2020-01-15"), End: day("2020-01-20")}, []string{"GDP"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []string{"GDP"}, out.Columns())
}

func TestSliceReversedRange(t *testing.T) {
	out, err := Slice(sample(t), models.DateRange{Start: day("2020-04-01"), End: day("2020-01-01")}, []string{"GDP"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())

	stats, err := Summarize(out, []string{"GDP"})
	require.NoError(t, err)
	assert.Equal(t, 0, stats["GDP"].Count)
	assert.True(t, models.IsMissing(stats["GDP"].Mean))
}

func TestSliceUnknownColumn(t *testing.T) {
	_, err := Slice(sample(t), models.DateRange{Start: day("2020-01-01"), End: day("2020-04-01")}, []string{"GDP", "XYZ"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownColumn))
	var uc *models.UnknownColumnError
	require.True(t, errors.As(err, &uc))
	assert.Equal(t, []string{"XYZ"}, uc.Columns)
}

func TestSummarize(t *testing.T) {
	stats, err := Summarize(sample(t), nil)
	require.NoError(t, err)

	gdp := stats["GDP"]
	assert.Equal(t, 3, gdp.Count)
	assert.InDelta(t, 104.0, gdp.Mean, 1e-9)
	assert.Equal(t, 100.0, gdp.Min)
	assert.Equal(t, 110.0, gdp.Max)
	assert.Equal(t, 110.0, gdp.Latest)
	assert.Equal(t, 10.0, gdp.Change)

	assert.Equal(t, 3.0, stats["UNRATE"].Min)
	assert.Equal(t, 0, stats["EMPTY"].Count)
	assert.True(t, models.IsMissing(stats["EMPTY"].Latest))

	_, err = Summarize(sample(t), []string{"NOPE"})
	assert.True(t, errors.Is(err, models.ErrUnknownColumn))
}
