package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// SeriesFileStore writes one CSV per indicator: raw downloads as
// <raw_dir>/<SERIES_ID>.csv and cleaned series as <clean_dir>/<name>_clean.csv.
// An empty directory disables that half.
type SeriesFileStore struct {
	rawDir   string
	cleanDir string
}

var _ domrepo.RawSeriesStore = (*SeriesFileStore)(nil)

func NewSeriesFileStore(rawDir, cleanDir string) *SeriesFileStore {
	return &SeriesFileStore{rawDir: rawDir, cleanDir: cleanDir}
}

func (s *SeriesFileStore) SaveRaw(_ context.Context, seriesID string, raw models.RawSeries) error {
	if s.rawDir == "" {
		return nil
	}
	dates := make([]string, len(raw.Records))
	values := make([]string, len(raw.Records))
	for i, r := range raw.Records {
		dates[i], values[i] = r[0], r[1]
	}
	df := dataframe.New(
		series.New(dates, series.String, "date"),
		series.New(values, series.String, "value"),
	)
	return writeFrame(filepath.Join(s.rawDir, fileSafe(seriesID)+".csv"), df)
}

func (s *SeriesFileStore) SaveClean(_ context.Context, ser models.IndicatorSeries) error {
	if s.cleanDir == "" {
		return nil
	}
	dates := make([]string, len(ser.Points))
	values := make([]string, len(ser.Points))
	for i, p := range ser.Points {
		dates[i] = p.Date.Format(models.DateLayout)
		values[i] = FormatValue(p.Value)
	}
	df := dataframe.New(
		series.New(dates, series.String, "date"),
		series.New(values, series.String, ser.Name),
	)
	return writeFrame(filepath.Join(s.cleanDir, fileSafe(ser.Name)+"_clean.csv"), df)
}

func writeFrame(path string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return df.Err
	}
	return writeAtomic(path, func(f *os.File) error {
		return df.WriteCSV(f)
	})
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}
