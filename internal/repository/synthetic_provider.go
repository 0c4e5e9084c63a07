package repository

import (
	"context"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/services/synthetic"
)

// SyntheticProvider is the last resort of the source chain; it cannot fail.
type SyntheticProvider struct {
	seed  int64
	start time.Time
	end   func() time.Time
	freq  models.Frequency
	specs []synthetic.IndicatorSpec
}

var _ domrepo.TableProvider = (*SyntheticProvider)(nil)

// NewSyntheticProvider generates from start to end(); end is evaluated per
// build so a long-running service keeps extending the table.
func NewSyntheticProvider(seed int64, start time.Time, end func() time.Time, freq models.Frequency, specs []synthetic.IndicatorSpec) *SyntheticProvider {
	if len(specs) == 0 {
		specs = synthetic.DefaultSpecs()
	}
	return &SyntheticProvider{seed: seed, start: start, end: end, freq: freq, specs: specs}
}

func (p *SyntheticProvider) Name() string { return "synthetic" }

func (p *SyntheticProvider) Provide(ctx context.Context) (*models.MergedTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return synthetic.Generate(p.seed, p.start, p.end(), p.freq, p.specs), nil
}
