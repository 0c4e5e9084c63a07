package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"EconDash/internal/domain/models"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	table *models.MergedTable
	err   error
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Provide(context.Context) (*models.MergedTable, error) {
	p.calls++
	return p.table, p.err
}

type fakeSink struct {
	name  string
	err   error
	saved []uint64
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Save(_ context.Context, snap *models.TableSnapshot) error {
	s.saved = append(s.saved, snap.Version)
	return s.err
}

type fakePublisher struct {
	events []models.RebuildEvent
	err    error
}

func (p *fakePublisher) PublishRebuild(_ context.Context, ev models.RebuildEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeNotifier struct{ events []models.RebuildEvent }

func (n *fakeNotifier) Notify(ev models.RebuildEvent) { n.events = append(n.events, ev) }

type fakeLocker struct {
	deny     bool
	err      error
	unlocked int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (bool, error) {
	return !l.deny, l.err
}

func (l *fakeLocker) Unlock(context.Context, string) error {
	l.unlocked++
	return nil
}

type countingMetrics struct {
	mu        sync.Mutex
	builds    int
	fallbacks map[string]int
	errors    map[string]int
	hits      int
	misses    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{fallbacks: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RecordBuild(string, int, int, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++
}

func (m *countingMetrics) RecordFallback(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[p]++
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) RecordQuery(string, float64) {}

func (m *countingMetrics) RecordCache(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *countingMetrics) RecordLatency(string, float64) {}

var errBoom = errors.New("boom")

// monthlyTable builds n monthly rows from 2020-01-01 with the given columns.
func monthlyTable(t *testing.T, n int, cols map[string][]float64, order ...string) *models.MergedTable {
	t.Helper()
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = models.Monthly.Step(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), i)
	}
	tbl, err := models.NewMergedTable(dates, order, cols)
	require.NoError(t, err)
	return tbl
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("build-%d", n)
	}
}

func seq(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}
