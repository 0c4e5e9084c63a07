package cleaner

import (
	"testing"
	"time"

	"EconDash/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestCleanDropsBadRowsAndDuplicates(t *testing.T) {
	raw := models.RawSeries{
		Name: "gdp",
		Records: [][2]string{
			{"2020-03-01", "3"},
			{"garbage", "1"},
			{"2020-01-01", "1"},
			{"2020-02-01", "."},
			{"2020-01-01", "99"},
			{"2020-04-01", "abc"},
			{"2020-05-01", ""},
		},
	}

	s, st := CleanWithStats(raw)
	require.Len(t, s.Points, 2)
	assert.Equal(t, "gdp", s.Name)
	assert.Equal(t, d("2020-01-01"), s.Points[0].Date)
	assert.Equal(t, 1.0, s.Points[0].Value, "first occurrence wins")
	assert.Equal(t, d("2020-03-01"), s.Points[1].Date)

	assert.Equal(t, 7, st.Read)
	assert.Equal(t, 1, st.BadDate)
	assert.Equal(t, 3, st.BadValue)
	assert.Equal(t, 1, st.Duplicate)
	assert.Equal(t, 5, st.Dropped())
}

func TestMergeOuterJoin(t *testing.T) {
	a := Clean(models.RawSeries{Name: "A", Records: [][2]string{{"2020-01-01", "1"}, {"2020-02-01", "2"}}})
	b := Clean(models.RawSeries{Name: "B", Records: [][2]string{{"2020-02-01", "20"}, {"2020-03-01", "30"}}})

	tbl := Merge([]models.IndicatorSeries{a, b})
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"A", "B"}, tbl.Columns())

	colA, _ := tbl.Column("A")
	colB, _ := tbl.Column("B")
	assert.Equal(t, 1.0, colA[0])
	assert.Equal(t, 2.0, colA[1])
	assert.True(t, models.IsMissing(colA[2]))
	assert.True(t, models.IsMissing(colB[0]))
	assert.Equal(t, 20.0, colB[1])
	assert.Equal(t, 30.0, colB[2])
}

func TestMergeKeepsMalformedSeriesAsEmptyColumn(t *testing.T) {
	good := Clean(models.RawSeries{Name: "good", Records: [][2]string{{"2020-01-01", "1"}}})
	bad := Clean(models.RawSeries{Name: "bad", Records: [][2]string{{"x", "y"}}})
	dup := Clean(models.RawSeries{Name: "good", Records: [][2]string{{"2021-01-01", "5"}}})

	tbl := Merge([]models.IndicatorSeries{good, bad, dup})
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"good", "bad"}, tbl.Columns())
	assert.True(t, models.IsMissing(tbl.Value(0, "bad")))
}

func TestFromTableSplitsColumns(t *testing.T) {
	header := []string{"GDP", "date", "UNRATE"}
	records := [][]string{{"1", "2020-01-01", "4"}, {"2", "2020-02-01"}}
	raws := FromTable(header, records, 1)
	require.Len(t, raws, 2)
	assert.Equal(t, "GDP", raws[0].Name)
	assert.Equal(t, [2]string{"2020-02-01", "2"}, raws[0].Records[1])
	assert.Len(t, raws[1].Records, 1, "short rows are skipped for the missing column")
}
