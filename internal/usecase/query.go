package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/services/query"
	"EconDash/pkg/cache"
	applogger "EconDash/pkg/logger"

	"github.com/guregu/null/v6"
)

const (
	dashboardWindowRows = 365
	dashboardLatestRows = 10
)

// SnapshotSource exposes the current published table.
type SnapshotSource interface {
	Snapshot() *models.TableSnapshot
}

// RangeParams is an optional inclusive date range; nil ends default to the
// table bounds.
type RangeParams struct {
	Start *time.Time
	End   *time.Time
}

type SeriesParams struct {
	Columns []string
	RangeParams
}

type DashboardParams struct {
	Primary   string
	Secondary string
	RangeParams
}

// IndicatorView describes one column of the published table.
type IndicatorView struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

type IndicatorsResult struct {
	Version    uint64          `json:"version"`
	BuildID    string          `json:"build_id"`
	Source     string          `json:"source"`
	BuiltAt    time.Time       `json:"built_at"`
	Rows       int             `json:"rows"`
	Start      string          `json:"start,omitempty"`
	End        string          `json:"end,omitempty"`
	Indicators []IndicatorView `json:"indicators"`
}

// SeriesRow holds one date and the values of SeriesResult.Columns, in order.
type SeriesRow struct {
	Date   string       `json:"date"`
	Values []null.Float `json:"values"`
}

type SeriesResult struct {
	Version uint64      `json:"version"`
	Columns []string    `json:"columns"`
	Rows    []SeriesRow `json:"rows"`
}

type StatsView struct {
	Column string     `json:"column"`
	Count  int        `json:"count"`
	Latest null.Float `json:"latest"`
	Mean   null.Float `json:"mean"`
	Min    null.Float `json:"min"`
	Max    null.Float `json:"max"`
	Change null.Float `json:"change"`
}

type SummaryResult struct {
	Version uint64      `json:"version"`
	Start   string      `json:"start,omitempty"`
	End     string      `json:"end,omitempty"`
	Stats   []StatsView `json:"stats"`
}

type DashboardResult struct {
	Version   uint64       `json:"version"`
	Primary   string       `json:"primary"`
	Secondary string       `json:"secondary,omitempty"`
	Start     string       `json:"start,omitempty"`
	End       string       `json:"end,omitempty"`
	Series    SeriesResult `json:"series"`
	Summary   []StatsView  `json:"summary"`
	Latest    SeriesResult `json:"latest"`
}

// QueryUseCase answers read requests against the current snapshot.
type QueryUseCase struct {
	source  SnapshotSource
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

// NewQueryUseCase builds the read side. A nil cache disables result caching.
func NewQueryUseCase(source SnapshotSource, c cache.Service, ttl time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *QueryUseCase {
	return &QueryUseCase{source: source, cache: c, ttl: ttl, metrics: metrics, l: l}
}

func (q *QueryUseCase) Indicators(ctx context.Context) (*IndicatorsResult, error) {
	snap, err := q.snapshot()
	if err != nil {
		return nil, err
	}
	t := snap.Table
	res := &IndicatorsResult{
		Version:    snap.Version,
		BuildID:    snap.BuildID,
		Source:     snap.Source,
		BuiltAt:    snap.BuiltAt,
		Rows:       t.Len(),
		Indicators: make([]IndicatorView, 0, len(t.Columns())),
	}
	if b, ok := t.Bounds(); ok {
		res.Start, res.End = b.Start.Format(models.DateLayout), b.End.Format(models.DateLayout)
	}
	for _, c := range t.Columns() {
		res.Indicators = append(res.Indicators, IndicatorView{Name: c, Unit: t.Unit(c)})
	}
	return res, nil
}

func (q *QueryUseCase) Series(ctx context.Context, p SeriesParams) (*SeriesResult, error) {
	snap, err := q.snapshot()
	if err != nil {
		return nil, err
	}
	var res SeriesResult
	err = q.cached(ctx, snap.BuildID, "series", paramsKey(p.Columns, p.RangeParams), &res, func() error {
		slice, err := query.Slice(snap.Table, resolveRange(snap.Table, p.RangeParams), p.Columns)
		if err != nil {
			return err
		}
		res = seriesOf(snap.Version, slice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (q *QueryUseCase) Summary(ctx context.Context, p SeriesParams) (*SummaryResult, error) {
	snap, err := q.snapshot()
	if err != nil {
		return nil, err
	}
	var res SummaryResult
	err = q.cached(ctx, snap.BuildID, "summary", paramsKey(p.Columns, p.RangeParams), &res, func() error {
		r := resolveRange(snap.Table, p.RangeParams)
		slice, err := query.Slice(snap.Table, r, p.Columns)
		if err != nil {
			return err
		}
		stats, err := statsOf(slice)
		if err != nil {
			return err
		}
		res = SummaryResult{Version: snap.Version, Stats: stats}
		res.Start, res.End = rangeText(slice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Dashboard returns the primary and secondary series over the requested
// range (by default the last 365 rows), their summaries and the latest
// rows of every column.
func (q *QueryUseCase) Dashboard(ctx context.Context, p DashboardParams) (*DashboardResult, error) {
	snap, err := q.snapshot()
	if err != nil {
		return nil, err
	}
	t := snap.Table
	cols := t.Columns()
	if p.Primary == "" && len(cols) > 0 {
		p.Primary = cols[0]
	}
	if p.Secondary == "" && len(cols) > 1 {
		p.Secondary = cols[1]
		if p.Secondary == p.Primary {
			p.Secondary = cols[0]
		}
	}
	if p.Start == nil && t.Len() > 0 {
		start := t.Date(max(0, t.Len()-dashboardWindowRows))
		p.Start = &start
	}
	selected := []string{p.Primary}
	if p.Secondary != "" && p.Secondary != p.Primary {
		selected = append(selected, p.Secondary)
	}

	var res DashboardResult
	key := fmt.Sprintf("%s|%s|%s", p.Primary, p.Secondary, paramsKey(nil, p.RangeParams))
	err = q.cached(ctx, snap.BuildID, "dashboard", key, &res, func() error {
		r := resolveRange(t, p.RangeParams)
		slice, err := query.Slice(t, r, selected)
		if err != nil {
			return err
		}
		stats, err := statsOf(slice)
		if err != nil {
			return err
		}
		all, err := query.Slice(t, r, nil)
		if err != nil {
			return err
		}
		res = DashboardResult{
			Version:   snap.Version,
			Primary:   p.Primary,
			Secondary: p.Secondary,
			Series:    seriesOf(snap.Version, slice),
			Summary:   stats,
			Latest:    seriesOf(snap.Version, all.Rows(all.Len()-dashboardLatestRows, all.Len())),
		}
		res.Start, res.End = rangeText(slice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Notify drops cached results of the build ev supersedes.
func (q *QueryUseCase) Notify(ev models.RebuildEvent) {
	if q.cache == nil || ev.Supersedes == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pattern := cache.BuildPattern(cache.GenerateKeyWithParams("query", ev.Supersedes) + ":")
	if err := q.cache.DeleteByPattern(ctx, pattern); err != nil {
		q.l.Warn("query cache purge failed", applogger.String("build_id", ev.Supersedes), applogger.Error(err))
	}
}

func (q *QueryUseCase) snapshot() (*models.TableSnapshot, error) {
	snap := q.source.Snapshot()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// cached serves dest from the cache or fills it with compute and stores it.
// Keys embed the build ID, so replicas sharing Redis never read each other's
// tables.
func (q *QueryUseCase) cached(ctx context.Context, buildID, op, params string, dest interface{}, compute func() error) error {
	start := time.Now()
	defer func() { q.metrics.RecordQuery(op, time.Since(start).Seconds()) }()

	if q.cache == nil {
		return compute()
	}
	key := cache.GenerateKeyWithParams("query", buildID, op, cache.HashKey(params))
	err := q.cache.Get(ctx, key, dest)
	if err == nil {
		q.metrics.RecordCache(op, true)
		return nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		q.l.Warn("query cache read failed", applogger.String("op", op), applogger.Error(err))
	}
	q.metrics.RecordCache(op, false)

	if err := compute(); err != nil {
		return err
	}
	if err := q.cache.Set(ctx, key, dest, q.ttl); err != nil {
		q.l.Warn("query cache write failed", applogger.String("op", op), applogger.Error(err))
	}
	return nil
}

func resolveRange(t *models.MergedTable, p RangeParams) models.DateRange {
	bounds, _ := t.Bounds()
	r := bounds
	if p.Start != nil {
		r.Start = models.Day(*p.Start)
	}
	if p.End != nil {
		r.End = models.Day(*p.End)
	}
	return r
}

func paramsKey(columns []string, p RangeParams) string {
	return fmt.Sprintf("%s|%s|%s", strings.Join(columns, ","), dayText(p.Start), dayText(p.End))
}

func dayText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(models.DateLayout)
}

func rangeText(t *models.MergedTable) (string, string) {
	b, ok := t.Bounds()
	if !ok {
		return "", ""
	}
	return b.Start.Format(models.DateLayout), b.End.Format(models.DateLayout)
}

func seriesOf(version uint64, t *models.MergedTable) SeriesResult {
	cols := t.Columns()
	rows := make([]SeriesRow, t.Len())
	for i := range rows {
		vals := make([]null.Float, len(cols))
		for j, c := range cols {
			vals[j] = nullable(t.Value(i, c))
		}
		rows[i] = SeriesRow{Date: t.Date(i).Format(models.DateLayout), Values: vals}
	}
	return SeriesResult{Version: version, Columns: cols, Rows: rows}
}

func statsOf(t *models.MergedTable) ([]StatsView, error) {
	cols := t.Columns()
	stats, err := query.Summarize(t, cols)
	if err != nil {
		return nil, err
	}
	out := make([]StatsView, 0, len(cols))
	for _, c := range cols {
		s := stats[c]
		out = append(out, StatsView{
			Column: c,
			Count:  s.Count,
			Latest: nullable(s.Latest),
			Mean:   nullable(s.Mean),
			Min:    nullable(s.Min),
			Max:    nullable(s.Max),
			Change: nullable(s.Change),
		})
	}
	return out, nil
}

func nullable(v float64) null.Float {
	return null.NewFloat(v, !models.IsMissing(v))
}
