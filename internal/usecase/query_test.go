package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"EconDash/internal/domain/models"
	"EconDash/pkg/cache"
	applogger "EconDash/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct{ snap *models.TableSnapshot }

func (s staticSource) Snapshot() *models.TableSnapshot { return s.snap }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func querySnapshot(t *testing.T) *models.TableSnapshot {
	rate := seq(24, 1, 0.25)
	rate[3] = models.Missing
	tbl := monthlyTable(t, 24, map[string][]float64{
		"GDP":      seq(24, 100, 2),
		"FEDFUNDS": rate,
		"UNRATE":   seq(24, 5, 0),
	}, "GDP", "FEDFUNDS", "UNRATE").WithUnits(map[string]string{"FEDFUNDS": "Percent"})
	return &models.TableSnapshot{Table: tbl, Version: 7, BuildID: "build-7", Source: "file", BuiltAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestQuery_NotReady(t *testing.T) {
	q := NewQueryUseCase(staticSource{}, nil, 0, newCountingMetrics(), applogger.Nop())

	_, err := q.Indicators(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = q.Series(context.Background(), SeriesParams{})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = q.Dashboard(context.Background(), DashboardParams{})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestQuery_Indicators(t *testing.T) {
	q := NewQueryUseCase(staticSource{querySnapshot(t)}, nil, 0, newCountingMetrics(), applogger.Nop())

	res, err := q.Indicators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Version)
	assert.Equal(t, "build-7", res.BuildID)
	assert.Equal(t, 24, res.Rows)
	assert.Equal(t, "2020-01-01", res.Start)
	assert.Equal(t, "2021-12-01", res.End)
	assert.Equal(t, []IndicatorView{{Name: "GDP"}, {Name: "FEDFUNDS", Unit: "Percent"}, {Name: "UNRATE"}}, res.Indicators)
}

func TestQuery_Series(t *testing.T) {
	q := NewQueryUseCase(staticSource{querySnapshot(t)}, nil, 0, newCountingMetrics(), applogger.Nop())

	res, err := q.Series(context.Background(), SeriesParams{
		Columns:     []string{"FEDFUNDS", "GDP"},
		RangeParams: RangeParams{Start: day(2020, 3, 15), End: day(2020, 5, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"FEDFUNDS", "GDP"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2020-04-01", res.Rows[0].Date)
	assert.False(t, res.Rows[0].Values[0].Valid)
	assert.Equal(t, 106.0, res.Rows[0].Values[1].Float64)
	assert.Equal(t, 2.0, res.Rows[1].Values[0].Float64)

	reversed, err := q.Series(context.Background(), SeriesParams{RangeParams: RangeParams{Start: day(2021, 1, 1), End: day(2020, 1, 1)}})
	require.NoError(t, err)
	assert.Empty(t, reversed.Rows)
	assert.Len(t, reversed.Columns, 3)

	_, err = q.Series(context.Background(), SeriesParams{Columns: []string{"GDP", "NOPE"}})
	var unknown *models.UnknownColumnError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"NOPE"}, unknown.Columns)
}

func TestQuery_Summary(t *testing.T) {
	q := NewQueryUseCase(staticSource{querySnapshot(t)}, nil, 0, newCountingMetrics(), applogger.Nop())

	res, err := q.Summary(context.Background(), SeriesParams{
		Columns:     []string{"GDP", "FEDFUNDS"},
		RangeParams: RangeParams{End: day(2020, 4, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", res.Start)
	assert.Equal(t, "2020-04-01", res.End)
	require.Len(t, res.Stats, 2)

	gdp := res.Stats[0]
	assert.Equal(t, "GDP", gdp.Column)
	assert.Equal(t, 4, gdp.Count)
	assert.Equal(t, 106.0, gdp.Latest.Float64)
	assert.Equal(t, 103.0, gdp.Mean.Float64)
	assert.Equal(t, 6.0, gdp.Change.Float64)

	rate := res.Stats[1]
	assert.Equal(t, 3, rate.Count)
	assert.Equal(t, 1.5, rate.Latest.Float64)
	assert.Equal(t, 1.0, rate.Min.Float64)

	empty, err := q.Summary(context.Background(), SeriesParams{RangeParams: RangeParams{Start: day(2030, 1, 1)}})
	require.NoError(t, err)
	require.Len(t, empty.Stats, 3)
	assert.Zero(t, empty.Stats[0].Count)
	assert.False(t, empty.Stats[0].Mean.Valid)
}

func TestQuery_DashboardDefaults(t *testing.T) {
	q := NewQueryUseCase(staticSource{querySnapshot(t)}, nil, 0, newCountingMetrics(), applogger.Nop())

	res, err := q.Dashboard(context.Background(), DashboardParams{})
	require.NoError(t, err)
	assert.Equal(t, "GDP", res.Primary)
	assert.Equal(t, "FEDFUNDS", res.Secondary)
	assert.Equal(t, "2020-01-01", res.Start, "fewer rows than the default window")
	assert.Equal(t, []string{"GDP", "FEDFUNDS"}, res.Series.Columns)
	assert.Len(t, res.Series.Rows, 24)
	require.Len(t, res.Summary, 2)
	assert.Equal(t, []string{"GDP", "FEDFUNDS", "UNRATE"}, res.Latest.Columns)
	require.Len(t, res.Latest.Rows, 10)
	assert.Equal(t, "2021-12-01", res.Latest.Rows[9].Date)

	res, err = q.Dashboard(context.Background(), DashboardParams{
		Primary:     "UNRATE",
		Secondary:   "UNRATE",
		RangeParams: RangeParams{Start: day(2021, 6, 1), End: day(2021, 8, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"UNRATE"}, res.Series.Columns)
	assert.Len(t, res.Latest.Rows, 3)

	_, err = q.Dashboard(context.Background(), DashboardParams{Primary: "NOPE"})
	assert.ErrorIs(t, err, models.ErrUnknownColumn)
}

func TestQuery_CachesByBuild(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	m := newCountingMetrics()
	snap := querySnapshot(t)
	src := &staticSource{snap: snap}
	q := NewQueryUseCase(src, mc, time.Minute, m, applogger.Nop())
	p := SeriesParams{Columns: []string{"GDP"}, RangeParams: RangeParams{End: day(2020, 2, 1)}}

	first, err := q.Series(context.Background(), p)
	require.NoError(t, err)
	second, err := q.Series(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)

	src.snap = &models.TableSnapshot{Table: snap.Table, Version: 8, BuildID: "build-8"}
	third, err := q.Series(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), third.Version)
	assert.Equal(t, 2, m.misses)
}

func TestQuery_NotifyPurgesSupersededBuild(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	src := &staticSource{snap: querySnapshot(t)}
	q := NewQueryUseCase(src, mc, time.Minute, newCountingMetrics(), applogger.Nop())

	_, err := q.Series(context.Background(), SeriesParams{})
	require.NoError(t, err)
	_, err = q.Summary(context.Background(), SeriesParams{})
	require.NoError(t, err)
	require.Equal(t, 2, mc.Len())

	q.Notify(models.RebuildEvent{Version: 1, BuildID: "first"})
	assert.Equal(t, 2, mc.Len(), "first build supersedes nothing")

	q.Notify(models.RebuildEvent{Version: 8, BuildID: "build-8", Supersedes: "other-replica"})
	assert.Equal(t, 2, mc.Len(), "other builds untouched")

	q.Notify(models.RebuildEvent{Version: 8, BuildID: "build-8", Supersedes: "build-7"})
	assert.Zero(t, mc.Len())
}

func TestQuery_SharedCacheKeepsReplicasApart(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	replicaTable := func(base float64) *models.TableSnapshot {
		tbl := monthlyTable(t, 3, map[string][]float64{"GDP": seq(3, base, 1)}, "GDP")
		return &models.TableSnapshot{Table: tbl, Version: 1, BuildID: fmt.Sprintf("build-%v", base)}
	}
	a := NewQueryUseCase(staticSource{replicaTable(100)}, mc, time.Minute, newCountingMetrics(), applogger.Nop())
	b := NewQueryUseCase(staticSource{replicaTable(500)}, mc, time.Minute, newCountingMetrics(), applogger.Nop())

	fromA, err := a.Series(context.Background(), SeriesParams{Columns: []string{"GDP"}})
	require.NoError(t, err)
	fromB, err := b.Series(context.Background(), SeriesParams{Columns: []string{"GDP"}})
	require.NoError(t, err)

	assert.Equal(t, 100.0, fromA.Rows[0].Values[0].Float64)
	assert.Equal(t, 500.0, fromB.Rows[0].Values[0].Float64)
}
