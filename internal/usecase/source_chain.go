package usecase

import (
	"context"
	"fmt"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	applogger "EconDash/pkg/logger"
)

// SourceChain tries providers in order and returns the first usable table.
type SourceChain struct {
	providers []domrepo.TableProvider
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewSourceChain(providers []domrepo.TableProvider, metrics domrepo.Metrics, l *applogger.Logger) *SourceChain {
	return &SourceChain{providers: providers, metrics: metrics, l: l}
}

// Load returns the table and the name of the provider that produced it.
// A provider error or a table without columns moves on to the next one;
// ErrNoUsableTable is returned only once every provider has failed.
func (c *SourceChain) Load(ctx context.Context) (*models.MergedTable, string, error) {
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		start := time.Now()
		t, err := p.Provide(ctx)
		if err == nil && (t == nil || len(t.Columns()) == 0) {
			err = fmt.Errorf("provider returned a table without indicator columns")
		}
		if err != nil {
			c.metrics.RecordFallback(p.Name())
			c.l.Warn("table provider failed, falling back",
				applogger.String("provider", p.Name()),
				applogger.Error(err),
			)
			continue
		}
		c.metrics.RecordLatency("provider_"+p.Name(), time.Since(start).Seconds())
		c.l.Info("table loaded",
			applogger.String("provider", p.Name()),
			applogger.Int("rows", t.Len()),
			applogger.Strings("columns", t.Columns()),
		)
		return t, p.Name(), nil
	}
	return nil, "", models.ErrNoUsableTable
}
