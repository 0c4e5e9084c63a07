// Package synthetic produces deterministic, plausible-looking indicator
// tables for when no real source is reachable.
package synthetic

import (
	"math"
	"math/rand"
	"time"

	"EconDash/internal/domain/models"
)

const daysPerMonth = 30.44

// IndicatorSpec shapes one synthetic series as trend + cycle + noise.
type IndicatorSpec struct {
	Name        string
	Unit        string
	Base        float64
	SlopePerDay float64
	Amplitude   float64
	CycleMonths float64
	NoiseSigma  float64
	// Clamp enables clipping to [Min, Max].
	Clamp bool
	Min   float64
	Max   float64
}

// DefaultSeed keeps generated tables stable across runs.
const DefaultSeed int64 = 42

// DefaultSpecs mirrors the indicators served by the live source.
func DefaultSpecs() []IndicatorSpec {
	return []IndicatorSpec{
		{Name: "GDP", Unit: "Billions of Dollars", Base: 10000, SlopePerDay: 2.8, Amplitude: 60, CycleMonths: 60, NoiseSigma: 4},
		{Name: "FEDFUNDS", Unit: "Percent", Base: 5.5, SlopePerDay: -0.00026, Amplitude: 2.2, CycleMonths: 42, NoiseSigma: 0.012, Clamp: true, Min: 0.1, Max: 10},
		{Name: "UNRATE", Unit: "Percent", Base: 7.8, SlopePerDay: -0.0005, Amplitude: 1.8, CycleMonths: 55, NoiseSigma: 0.015, Clamp: true, Min: 3.2, Max: 12},
		{Name: "CPIAUCSL", Unit: "Index 1982-1984=100", Base: 175, SlopePerDay: 0.0115, Amplitude: 6, CycleMonths: 28, NoiseSigma: 0.03},
		{Name: "INDPRO", Unit: "Index 2017=100", Base: 95, SlopePerDay: 0.02, Amplitude: 12, CycleMonths: 38, NoiseSigma: 0.08},
	}
}

// Generate builds a table with one column per spec over every freq period
// in [start, end]. The same seed always yields the same table.
func Generate(seed int64, start, end time.Time, freq models.Frequency, specs []IndicatorSpec) *models.MergedTable {
	names := make([]string, 0, len(specs))
	units := make(map[string]string, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
		units[s.Name] = s.Unit
	}
	dates := freq.Periods(models.Day(start), models.Day(end))
	if len(dates) == 0 {
		return models.EmptyTable(names...).WithUnits(units)
	}

	rng := rand.New(rand.NewSource(seed))
	origin := dates[0]
	values := make(map[string][]float64, len(specs))
	for _, s := range specs {
		col := make([]float64, len(dates))
		for i, d := range dates {
			days := d.Sub(origin).Hours() / 24
			months := days / daysPerMonth
			v := s.Base + s.SlopePerDay*days
			if s.CycleMonths > 0 {
				v += s.Amplitude * math.Sin(2*math.Pi*months/s.CycleMonths)
			}
			v += noise(rng, s.NoiseSigma)
			if s.Clamp {
				v = math.Max(s.Min, math.Min(s.Max, v))
			}
			col[i] = v
		}
		values[s.Name] = col
	}

	t, err := models.NewMergedTable(dates, names, values)
	if err != nil {
		// duplicate spec names
		return models.EmptyTable()
	}
	return t.WithUnits(units)
}

func noise(rng *rand.Rand, sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	n := rng.NormFloat64()
	if n > 3 {
		n = 3
	} else if n < -3 {
		n = -3
	}
	return n * sigma
}
