package repository

import (
	"math"
	"strings"
	"testing"
	"time"

	"EconDash/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationRowsPivotBack(t *testing.T) {
	dates := []time.Time{day("2021-01-01"), day("2021-02-01")}
	tbl, err := models.NewMergedTable(dates, []string{"UNRATE", "GDP"}, map[string][]float64{
		"UNRATE": {6.4, 6.2},
		"GDP":    {math.NaN(), 22000},
	})
	require.NoError(t, err)
	snap := &models.TableSnapshot{Table: tbl, Version: 7, BuildID: "b-7", BuiltAt: time.Date(2021, 3, 1, 12, 0, 0, 5, time.UTC)}

	rows := observationRows(snap)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, "b-7", r[0], "every row carries the build id")
	}
	assert.Equal(t, uint64(7), rows[0][1])
	assert.Equal(t, time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC), rows[0][2])
	assert.Nil(t, rows[1][6].(*float64), "missing GDP is NULL")

	// simulate the scan: rows come back ordered by date, indicators shuffled
	obs := []observation{
		{date: dates[0], indicator: "GDP", position: 1, value: models.Missing},
		{date: dates[0], indicator: "UNRATE", position: 0, value: 6.4},
		{date: dates[1], indicator: "UNRATE", position: 0, value: 6.2},
		{date: dates[1], indicator: "GDP", position: 1, value: 22000},
	}
	back, err := pivotObservations(obs)
	require.NoError(t, err)
	assert.Equal(t, []string{"UNRATE", "GDP"}, back.Columns())
	assert.Equal(t, dates, back.Dates())
	gdp, _ := back.Column("GDP")
	assert.True(t, models.IsMissing(gdp[0]))
	assert.Equal(t, 22000.0, gdp[1])
}

func TestObservationQueriesSelectOneBuild(t *testing.T) {
	assert.Contains(t, latestBuildQuery, "ORDER BY built_at DESC")
	assert.Contains(t, buildRowsQuery, "WHERE build_id = ?")
	assert.NotContains(t, buildRowsQuery, "version")
	assert.Equal(t, 7, strings.Count(insertObservation, "?"))
}

func TestPivotEmpty(t *testing.T) {
	tbl, err := pivotObservations(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}
