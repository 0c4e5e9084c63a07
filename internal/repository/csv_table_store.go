package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/services/cleaner"
	applogger "EconDash/pkg/logger"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CSVTableStore reads and writes the wide merged table as a flat CSV file:
// a date column first, then one column per indicator, blank cells for
// missing values.
type CSVTableStore struct {
	readPath  string
	writePath string
	l         *applogger.Logger
}

var (
	_ domrepo.TableProvider = (*CSVTableStore)(nil)
	_ domrepo.TableSink     = (*CSVTableStore)(nil)
)

// NewCSVTableStore reads from readPath and writes to writePath; either may be
// the same file.
func NewCSVTableStore(readPath, writePath string, l *applogger.Logger) *CSVTableStore {
	return &CSVTableStore{readPath: readPath, writePath: writePath, l: l}
}

func (s *CSVTableStore) Name() string { return "file" }

// Provide loads the file. Every non-date column is cleaned independently and
// the results are merged, so bad cells drop only from their own column.
func (s *CSVTableStore) Provide(_ context.Context) (*models.MergedTable, error) {
	return ReadTableCSV(s.readPath, s.l)
}

// Save writes the snapshot's table to writePath, replacing it atomically.
func (s *CSVTableStore) Save(_ context.Context, snap *models.TableSnapshot) error {
	return WriteTableCSV(s.writePath, snap.Table)
}

// ReadTableCSV parses a wide table file.
func ReadTableCSV(path string, l *applogger.Logger) (*models.MergedTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrParse, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", models.ErrParse, path)
	}
	// gota rejects a header without rows; such a file is a valid empty table.
	if len(records) > 1 {
		df := dataframe.LoadRecords(records,
			dataframe.HasHeader(true),
			dataframe.DetectTypes(false),
			dataframe.DefaultType(series.String),
			dataframe.NaNValues(nil),
		)
		if df.Err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", models.ErrParse, path, df.Err)
		}
		records = df.Records()
	}

	header := records[0]
	dateCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "date") {
			dateCol = i
			break
		}
	}
	if dateCol < 0 {
		return nil, fmt.Errorf("%w: %s has no date column", models.ErrParse, path)
	}

	raws := cleaner.FromTable(header, records[1:], dateCol)
	cols := make([]models.IndicatorSeries, 0, len(raws))
	for _, raw := range raws {
		clean, st := cleaner.CleanWithStats(raw)
		if st.Dropped() > 0 && l != nil {
			l.Debug("csv column cleaned",
				applogger.String("column", raw.Name),
				applogger.Int("read", st.Read),
				applogger.Int("bad_date", st.BadDate),
				applogger.Int("bad_value", st.BadValue),
				applogger.Int("duplicate", st.Duplicate),
			)
		}
		cols = append(cols, clean)
	}
	return cleaner.Merge(cols), nil
}

// WriteTableCSV renders t and replaces path with it. A table without rows
// is written as its header line.
func WriteTableCSV(path string, t *models.MergedTable) error {
	cols := t.Columns()
	frame := make([]series.Series, 0, len(cols)+1)

	dates := make([]string, t.Len())
	for i := range dates {
		dates[i] = t.Date(i).Format(models.DateLayout)
	}
	frame = append(frame, series.New(dates, series.String, "date"))
	for _, c := range cols {
		cells := make([]string, t.Len())
		for i := range cells {
			cells[i] = FormatValue(t.Value(i, c))
		}
		frame = append(frame, series.New(cells, series.String, c))
	}

	return writeFrame(path, dataframe.New(frame...))
}

// FormatValue renders a cell: blank for missing, shortest round-trip form
// otherwise.
func FormatValue(v float64) string {
	if models.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
