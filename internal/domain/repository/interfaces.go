package repository

import (
	"context"
	"time"

	"EconDash/internal/domain/models"
)

// TableProvider produces a merged table or fails. Providers are tried in order
// by the source chain until one succeeds.
type TableProvider interface {
	Name() string
	Provide(ctx context.Context) (*models.MergedTable, error)
}

// TableSink persists a built snapshot (flat file, ClickHouse mirror, ...).
type TableSink interface {
	Name() string
	Save(ctx context.Context, snap *models.TableSnapshot) error
}

// SeriesSource fetches one raw indicator series from a remote provider.
type SeriesSource interface {
	FetchSeries(ctx context.Context, seriesID string, start time.Time) (models.RawSeries, error)
}

// RawSeriesStore keeps per-series raw and cleaned copies for inspection.
type RawSeriesStore interface {
	SaveRaw(ctx context.Context, seriesID string, raw models.RawSeries) error
	SaveClean(ctx context.Context, s models.IndicatorSeries) error
}

// EventPublisher announces rebuilt tables to other services.
type EventPublisher interface {
	PublishRebuild(ctx context.Context, ev models.RebuildEvent) error
	Close() error
}

// Notifier pushes rebuild events to connected dashboards.
type Notifier interface {
	Notify(ev models.RebuildEvent)
}

// Locker guards rebuilds across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Metrics records pipeline and query observations.
type Metrics interface {
	RecordBuild(source string, rows, columns int, seconds float64)
	RecordFallback(provider string)
	RecordError(kind string)
	RecordQuery(op string, seconds float64)
	RecordCache(op string, hit bool)
	RecordLatency(op string, seconds float64)
}
