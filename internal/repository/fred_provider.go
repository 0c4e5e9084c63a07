package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/services/cleaner"
	applogger "EconDash/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// FREDSeries maps a remote series id to its column name.
type FREDSeries struct {
	ID   string
	Name string
	Unit string
}

// FREDProvider downloads every configured series, cleans each and merges
// them. A failed series becomes an empty column; the provider fails only
// when nothing came back.
type FREDProvider struct {
	source      domrepo.SeriesSource
	series      []FREDSeries
	start       time.Time
	concurrency int
	store       domrepo.RawSeriesStore
	l           *applogger.Logger
}

var _ domrepo.TableProvider = (*FREDProvider)(nil)

func NewFREDProvider(source domrepo.SeriesSource, series []FREDSeries, start time.Time, concurrency int, store domrepo.RawSeriesStore, l *applogger.Logger) *FREDProvider {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FREDProvider{source: source, series: series, start: start, concurrency: concurrency, store: store, l: l}
}

func (p *FREDProvider) Name() string { return "fred" }

func (p *FREDProvider) Provide(ctx context.Context) (*models.MergedTable, error) {
	if len(p.series) == 0 {
		return nil, fmt.Errorf("%w: no FRED series configured", models.ErrSourceUnavailable)
	}

	results := make([]models.IndicatorSeries, len(p.series))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, s := range p.series {
		i, s := i, s
		g.Go(func() error {
			clean, err := p.fetchOne(gctx, s)
			if errors.Is(err, ErrMissingAPIKey) {
				return err
			}
			results[i] = clean
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nonEmpty := 0
	for _, s := range results {
		if s.Len() > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, fmt.Errorf("%w: every FRED series came back empty", models.ErrSourceUnavailable)
	}
	return cleaner.Merge(results), nil
}

func (p *FREDProvider) fetchOne(ctx context.Context, s FREDSeries) (models.IndicatorSeries, error) {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	empty := models.IndicatorSeries{Name: name, Unit: s.Unit}

	raw, err := p.source.FetchSeries(ctx, s.ID, p.start)
	if err != nil {
		if !errors.Is(err, ErrMissingAPIKey) {
			p.l.Warn("fred series unavailable", applogger.String("series_id", s.ID), applogger.Error(err))
		}
		return empty, err
	}
	if p.store != nil {
		if err := p.store.SaveRaw(ctx, s.ID, raw); err != nil {
			p.l.Warn("save raw series failed", applogger.String("series_id", s.ID), applogger.Error(err))
		}
	}

	raw.Name = name
	if s.Unit != "" {
		raw.Unit = s.Unit
	}
	clean, st := cleaner.CleanWithStats(raw)
	p.l.Debug("fred series cleaned",
		applogger.String("series_id", s.ID),
		applogger.Int("read", st.Read),
		applogger.Int("kept", st.Kept),
		applogger.Int("dropped", st.Dropped()),
	)
	if p.store != nil {
		if err := p.store.SaveClean(ctx, clean); err != nil {
			p.l.Warn("save clean series failed", applogger.String("series", name), applogger.Error(err))
		}
	}
	return clean, nil
}
