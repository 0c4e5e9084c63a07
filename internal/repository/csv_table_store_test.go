package repository

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"EconDash/internal/domain/models"
	"EconDash/internal/services/synthetic"
	applogger "EconDash/pkg/logger"

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

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "merged.csv")
	dates := []time.Time{day("2020-01-01"), day("2020-01-02"), day("2020-01-03")}
	tbl, err := models.NewMergedTable(dates, []string{"GDP", "UNRATE"}, map[string][]float64{
		"GDP":    {10000.123456789, math.NaN(), 10002.5},
		"UNRATE": {3.5, 3.6, math.NaN()},
	})
	require.NoError(t, err)

	store := NewCSVTableStore(path, path, applogger.Nop())
	require.NoError(t, store.Save(context.Background(), &models.TableSnapshot{Table: tbl}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,GDP,UNRATE\n2020-01-01,10000.123456789,3.5\n2020-01-02,,3.6\n2020-01-03,10002.5,\n", string(b))

	got, err := store.Provide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dates, got.Dates())
	assert.Equal(t, []string{"GDP", "UNRATE"}, got.Columns())
	gdp, _ := got.Column("GDP")
	assert.Equal(t, 10000.123456789, gdp[0])
	assert.True(t, models.IsMissing(gdp[1]))
	un, _ := got.Column("UNRATE")
	assert.True(t, models.IsMissing(un[2]))
}

func TestCSVRoundTripWithoutRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.csv")
	start := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	empty := synthetic.Generate(42, start, start.AddDate(0, 0, -1), models.Monthly, synthetic.DefaultSpecs())
	require.Equal(t, 0, empty.Len())

	require.NoError(t, WriteTableCSV(path, empty))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,GDP,FEDFUNDS,UNRATE,CPIAUCSL,INDPRO\n", string(b))

	got, err := ReadTableCSV(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, empty.Columns(), got.Columns())
}

func TestCSVProviderCleansColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	body := "GDP,Date,CPI\n" +
		"1,2020-02-01,x\n" +
		"2,not-a-date,5\n" +
		"3,2020-01-01,4\n" +
		"4,2020-01-01,9\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := NewCSVTableStore(path, "", nil).Provide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2020-01-01"), day("2020-02-01")}, got.Dates())
	assert.Equal(t, []string{"GDP", "CPI"}, got.Columns())
	gdp, _ := got.Column("GDP")
	assert.Equal(t, []float64{3, 1}, gdp)
	cpi, _ := got.Column("CPI")
	assert.Equal(t, 4.0, cpi[0])
	assert.True(t, models.IsMissing(cpi[1]))
}

func TestCSVProviderFailures(t *testing.T) {
	dir := t.TempDir()
	_, err := NewCSVTableStore(filepath.Join(dir, "missing.csv"), "", nil).Provide(context.Background())
	assert.True(t, errors.Is(err, models.ErrSourceUnavailable))

	noDate := filepath.Join(dir, "nodate.csv")
	require.NoError(t, os.WriteFile(noDate, []byte("when,GDP\n2020-01-01,1\n"), 0o644))
	_, err = NewCSVTableStore(noDate, "", nil).Provide(context.Background())
	assert.True(t, errors.Is(err, models.ErrParse))

	blank := filepath.Join(dir, "blank.csv")
	require.NoError(t, os.WriteFile(blank, nil, 0o644))
	_, err = NewCSVTableStore(blank, "", nil).Provide(context.Background())
	assert.True(t, errors.Is(err, models.ErrParse))
}

func TestSeriesFileStore(t *testing.T) {
	dir := t.TempDir()
	store := NewSeriesFileStore(filepath.Join(dir, "raw"), filepath.Join(dir, "clean"))
	ctx := context.Background()

	require.NoError(t, store.SaveRaw(ctx, "GDP", models.RawSeries{Name: "GDP", Records: [][2]string{{"2020-01-01", "."}, {"2020-04-01", "21"}}}))
	require.NoError(t, store.SaveClean(ctx, models.IndicatorSeries{Name: "GDP", Points: []models.Point{{Date: day("2020-04-01"), Value: 21}}}))

	raw, err := os.ReadFile(filepath.Join(dir, "raw", "GDP.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,value\n2020-01-01,.\n2020-04-01,21\n", string(raw))
	clean, err := os.ReadFile(filepath.Join(dir, "clean", "GDP_clean.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,GDP\n2020-04-01,21\n", string(clean))

	assert.NoError(t, NewSeriesFileStore("", "").SaveRaw(ctx, "GDP", models.RawSeries{}))
}
