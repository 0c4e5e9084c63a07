package usecase

import (
	"EconDash/internal/domain/models"
	"EconDash/internal/services/features"
	applogger "EconDash/pkg/logger"
)

// Deriver forward-fills base columns and then adds derived metrics.
type Deriver struct {
	fill           []string
	specs          []features.Spec
	periodsPerYear int
	l              *applogger.Logger
}

// NewDeriver fills the fill columns (all base columns when empty) and applies
// specs in order. A spec with Window 0 looks back one year of periods.
func NewDeriver(fill []string, specs []features.Spec, freq models.Frequency, l *applogger.Logger) *Deriver {
	return &Deriver{fill: fill, specs: specs, periodsPerYear: freq.PeriodsPerYear(), l: l}
}

// Apply never fails: a metric that cannot be computed is skipped with a warning.
func (d *Deriver) Apply(t *models.MergedTable) *models.MergedTable {
	fill := d.fill
	if len(fill) == 0 {
		fill = t.Columns()
	}
	for _, c := range fill {
		if !t.HasColumn(c) {
			continue
		}
		filled, err := features.ForwardFill(t, c)
		if err != nil {
			d.l.Warn("forward fill skipped", applogger.String("column", c), applogger.Error(err))
			continue
		}
		t = filled
	}

	for _, s := range d.specs {
		if s.Window == 0 {
			s.Window = d.periodsPerYear
		}
		if !t.HasColumn(s.Source) {
			d.l.Warn("derived metric skipped, source column absent",
				applogger.String("target", s.DefaultTarget()),
				applogger.String("source", s.Source),
			)
			continue
		}
		out, err := features.Apply(t, s)
		if err != nil {
			d.l.Warn("derived metric skipped",
				applogger.String("target", s.DefaultTarget()),
				applogger.Error(err),
			)
			continue
		}
		t = out
	}
	return t
}
