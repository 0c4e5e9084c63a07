package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	pkgch "EconDash/pkg/clickhouse"
	applogger "EconDash/pkg/logger"
)

// ObservationSchema creates the long-format mirror of published tables.
// Rows of one build share a build_id; version is only the per-process counter.
// The ALTER upgrades tables created before build ids.
var ObservationSchema = []string{`
        CREATE TABLE IF NOT EXISTS observations (
            build_id  String,
            version   UInt64,
            built_at  DateTime,
            date      Date,
            indicator LowCardinality(String),
            position  UInt16,
            value     Nullable(Float64)
        ) ENGINE = MergeTree
        ORDER BY (build_id, indicator, date)`,
	`ALTER TABLE observations ADD COLUMN IF NOT EXISTS build_id String`,
}

const insertObservation = `INSERT INTO observations (build_id, version, built_at, date, indicator, position, value) VALUES (?, ?, ?, ?, ?, ?, ?)`

// CHObservationStore mirrors every snapshot into ClickHouse and can load
// the most recently built one back as a table.
type CHObservationStore struct {
	ch        *pkgch.Client
	batchSize int
	l         *applogger.Logger
}

var (
	_ domrepo.TableSink     = (*CHObservationStore)(nil)
	_ domrepo.TableProvider = (*CHObservationStore)(nil)
)

func NewCHObservationStore(ch *pkgch.Client, batchSize int, l *applogger.Logger) *CHObservationStore {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &CHObservationStore{ch: ch, batchSize: batchSize, l: l}
}

func (s *CHObservationStore) Name() string { return "clickhouse" }

// Init creates the observations table.
func (s *CHObservationStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, ObservationSchema)
}

func (s *CHObservationStore) Save(ctx context.Context, snap *models.TableSnapshot) error {
	start := time.Now()
	rows := observationRows(snap)
	for from := 0; from < len(rows); from += s.batchSize {
		to := from + s.batchSize
		if to > len(rows) {
			to = len(rows)
		}
		if err := s.ch.InsertBatch(ctx, insertObservation, rows[from:to]); err != nil {
			return fmt.Errorf("insert observations: %w", err)
		}
	}
	s.l.Info("clickhouse observations saved",
		applogger.String("build_id", snap.BuildID),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Provide loads the most recently built table. Rows written before build
// IDs existed are ignored.
func (s *CHObservationStore) Provide(ctx context.Context) (*models.MergedTable, error) {
	db := s.ch.DB()
	var buildID string
	err := db.QueryRowContext(ctx, latestBuildQuery).Scan(&buildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: clickhouse mirror is empty", models.ErrSourceUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest build: %v", models.ErrSourceUnavailable, err)
	}

	rows, err := db.QueryContext(ctx, buildRowsQuery, buildID)
	if err != nil {
		return nil, fmt.Errorf("%w: load observations: %v", models.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var obs []observation
	for rows.Next() {
		var o observation
		var v sql.NullFloat64
		if err := rows.Scan(&o.date, &o.indicator, &o.position, &v); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.value = models.Missing
		if v.Valid {
			o.value = v.Float64
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return pivotObservations(obs)
}

const (
	latestBuildQuery = `
        SELECT build_id
        FROM observations
        WHERE build_id != ''
        ORDER BY built_at DESC, build_id DESC
        LIMIT 1`

	buildRowsQuery = `
        SELECT date, indicator, position, value
        FROM observations
        WHERE build_id = ?
        ORDER BY date ASC`
)

type observation struct {
	date      time.Time
	indicator string
	position  uint16
	value     float64
}

func observationRows(snap *models.TableSnapshot) [][]any {
	t := snap.Table
	cols := t.Columns()
	builtAt := snap.BuiltAt.UTC().Truncate(time.Second)
	out := make([][]any, 0, t.Len()*len(cols))
	for i := 0; i < t.Len(); i++ {
		for pos, c := range cols {
			var v *float64
			if x := t.Value(i, c); !models.IsMissing(x) {
				v = &x
			}
			out = append(out, []any{snap.BuildID, snap.Version, builtAt, t.Date(i), c, uint16(pos), v})
		}
	}
	return out
}

func pivotObservations(obs []observation) (*models.MergedTable, error) {
	positions := map[string]uint16{}
	dateIdx := map[time.Time]int{}
	var dates []time.Time
	for _, o := range obs {
		positions[o.indicator] = o.position
		d := models.Day(o.date)
		if _, ok := dateIdx[d]; !ok {
			dateIdx[d] = len(dates)
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	for i, d := range dates {
		dateIdx[d] = i
	}

	cols := make([]string, 0, len(positions))
	for c := range positions {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return positions[cols[i]] < positions[cols[j]] })

	values := make(map[string][]float64, len(cols))
	for _, c := range cols {
		v := make([]float64, len(dates))
		for i := range v {
			v[i] = models.Missing
		}
		values[c] = v
	}
	for _, o := range obs {
		values[o.indicator][dateIdx[models.Day(o.date)]] = o.value
	}
	if dates == nil {
		dates = []time.Time{}
	}
	return models.NewMergedTable(dates, cols, values)
}
