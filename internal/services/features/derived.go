// Package features computes derived indicator columns: growth rates, trailing
// moving averages and forward fill. Every function returns a new table and
// leaves its input untouched.
package features

import (
    "fmt"

    "EconDash/internal/domain/models"
)

// Kind selects a derived metric formula.
type Kind string

const (
    KindGrowth        Kind = "growth"
    KindMovingAverage Kind = "moving_average"
)

// Spec describes one derived column.
type Spec struct {
    Kind   Kind
    Source string
    Target string
    Window int
}

// DefaultTarget names a derived column when the spec leaves Target empty.
func (s Spec) DefaultTarget() string {
    if s.Target != "" {
        return s.Target
    }
    switch s.Kind {
    case KindMovingAverage:
        return fmt.Sprintf("%s_MA%d", s.Source, s.Window)
    default:
        return s.Source + "_Growth"
    }
}

// Apply computes the spec on t.
func Apply(t *models.MergedTable, s Spec) (*models.MergedTable, error) {
    switch s.Kind {
    case KindGrowth:
        return AddGrowth(t, s.Source, s.Window, s.DefaultTarget())
    case KindMovingAverage:
        return AddMovingAverage(t, s.Source, s.Window, s.DefaultTarget())
    default:
        return nil, fmt.Errorf("unknown derived metric kind %q", s.Kind)
    }
}

// AddGrowth computes (v[t]-v[t-period]) / v[t-period] * 100 into target.
// The first period rows are missing, as are rows where either operand is
// missing or the base is zero.
func AddGrowth(t *models.MergedTable, column string, period int, target string) (*models.MergedTable, error) {
    src, err := source(t, column, period)
    if err != nil {
        return nil, err
    }
    out := make([]float64, len(src))
    for i := range out {
        out[i] = models.Missing
        if i < period {
            continue
        }
        base, cur := src[i-period], src[i]
        if models.IsMissing(base) || models.IsMissing(cur) || base == 0 {
            continue
        }
        out[i] = (cur - base) / base * 100
    }
    return t.WithColumn(target, out)
}

// AddMovingAverage computes the trailing mean of the last window rows into
// target. Rows before the window fills, or whose window holds a missing
// value, are missing.
func AddMovingAverage(t *models.MergedTable, column string, window int, target string) (*models.MergedTable, error) {
    src, err := source(t, column, window)
    if err != nil {
        return nil, err
    }
    out := make([]float64, len(src))
    sum := 0.0
    gaps := 0
    for i, v := range src {
        if models.IsMissing(v) {
            gaps++
        } else {
            sum += v
        }
        if i >= window {
            old := src[i-window]
            if models.IsMissing(old) {
                gaps--
            } else {
                sum -= old
            }
        }
        if i < window-1 || gaps > 0 {
            out[i] = models.Missing
            continue
        }
        out[i] = sum / float64(window)
    }
    return t.WithColumn(target, out)
}

// ForwardFill carries the last known value forward. Leading missing values
// stay missing.
func ForwardFill(t *models.MergedTable, column string) (*models.MergedTable, error) {
    src, ok := t.Column(column)
    if !ok {
        return nil, &models.UnknownColumnError{Columns: []string{column}}
    }
    last := models.Missing
    for i, v := range src {
        if models.IsMissing(v) {
            src[i] = last
            continue
        }
        last = v
    }
    return t.WithColumn(column, src)
}

func source(t *models.MergedTable, column string, window int) ([]float64, error) {
    if window <= 0 {
        return nil, fmt.Errorf("%w: %d", models.ErrInvalidWindow, window)
    }
    src, ok := t.Column(column)
    if !ok {
        return nil, &models.UnknownColumnError{Columns: []string{column}}
    }
    return src, nil
}
