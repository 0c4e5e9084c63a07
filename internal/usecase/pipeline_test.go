package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	"EconDash/internal/services/features"
	applogger "EconDash/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceChain_FallsBackInOrder(t *testing.T) {
	good := monthlyTable(t, 3, map[string][]float64{"GDP": seq(3, 1, 1)}, "GDP")
	failing := &fakeProvider{name: "fred", err: models.ErrSourceUnavailable}
	empty := &fakeProvider{name: "file", table: models.EmptyTable()}
	synthetic := &fakeProvider{name: "synthetic", table: good}
	unused := &fakeProvider{name: "later", table: good}
	m := newCountingMetrics()

	chain := NewSourceChain([]domrepo.TableProvider{failing, empty, synthetic, unused}, m, applogger.Nop())
	tbl, source, err := chain.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "synthetic", source)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, map[string]int{"fred": 1, "file": 1}, m.fallbacks)
	assert.Zero(t, unused.calls)
}

func TestSourceChain_AllFail(t *testing.T) {
	chain := NewSourceChain([]domrepo.TableProvider{
		&fakeProvider{name: "fred", err: errBoom},
		&fakeProvider{name: "file", err: errBoom},
	}, newCountingMetrics(), applogger.Nop())

	_, _, err := chain.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrNoUsableTable)
}

func TestSourceChain_NilTableFallsBack(t *testing.T) {
	good := monthlyTable(t, 2, map[string][]float64{"GDP": {1, 2}}, "GDP")
	m := newCountingMetrics()
	chain := NewSourceChain([]domrepo.TableProvider{
		&fakeProvider{name: "clickhouse"},
		&fakeProvider{name: "synthetic", table: good},
	}, m, applogger.Nop())

	_, source, err := chain.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "synthetic", source)
	assert.Equal(t, 1, m.fallbacks["clickhouse"])
}

func TestSourceChain_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{name: "file", table: models.EmptyTable("GDP")}
	chain := NewSourceChain([]domrepo.TableProvider{p}, newCountingMetrics(), applogger.Nop())

	_, _, err := chain.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls)
}

func TestDeriver_FillsThenDerives(t *testing.T) {
	gdp := seq(13, 100, 1)
	gdp[5] = models.Missing
	tbl := monthlyTable(t, 13, map[string][]float64{"GDP": gdp}, "GDP")

	d := NewDeriver(nil, []features.Spec{
		{Kind: features.KindGrowth, Source: "GDP", Target: "GDP_Growth"},
		{Kind: features.KindGrowth, Source: "CPIAUCSL", Target: "Inflation"},
		{Kind: features.KindMovingAverage, Source: "GDP", Window: 3},
	}, models.Monthly, applogger.Nop())
	out := d.Apply(tbl)

	assert.Equal(t, []string{"GDP", "GDP_Growth", "GDP_MA3"}, out.Columns())
	assert.Equal(t, 104.0, out.Value(5, "GDP"), "gap carried forward before deriving")
	assert.True(t, models.IsMissing(out.Value(11, "GDP_Growth")))
	assert.InDelta(t, 12.0, out.Value(12, "GDP_Growth"), 1e-9)
	assert.InDelta(t, 111.0, out.Value(12, "GDP_MA3"), 1e-9)
	assert.True(t, math.IsNaN(tbl.Value(5, "GDP")), "input table untouched")
}

func TestPipeline_BuildPublishesSnapshots(t *testing.T) {
	tbl := monthlyTable(t, 2, map[string][]float64{"GDP": {1, 2}}, "GDP")
	sink := &fakeSink{name: "file"}
	broken := &fakeSink{name: "clickhouse", err: errBoom}
	pub := &fakePublisher{}
	notifier := &fakeNotifier{}
	m := newCountingMetrics()
	built := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := NewPipeline(
		NewSourceChain([]domrepo.TableProvider{&fakeProvider{name: "file", table: tbl}}, m, applogger.Nop()),
		NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
		m, applogger.Nop(),
		WithSinks(sink, broken),
		WithPublisher(pub),
		WithNotifiers(notifier),
		WithClock(func() time.Time { return built }),
		WithIDGenerator(sequentialIDs()),
	)
	assert.Nil(t, p.Snapshot())

	first, err := p.Build(context.Background())
	require.NoError(t, err)
	second, err := p.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)
	assert.Same(t, second, p.Snapshot())
	assert.Equal(t, "file", second.Source)
	assert.Equal(t, built, second.BuiltAt)
	assert.Equal(t, []uint64{1, 2}, sink.saved)
	assert.Equal(t, 2, m.errors["sink_clickhouse"])
	assert.Equal(t, 2, m.builds)
	require.Len(t, pub.events, 2)
	assert.Equal(t, models.EventTableRebuilt, pub.events[1].Type)
	assert.Equal(t, uint64(2), pub.events[1].Version)
	assert.Equal(t, "build-2", pub.events[1].BuildID)
	assert.Equal(t, "build-1", pub.events[1].Supersedes)
	require.Len(t, notifier.events, 2)
	assert.Empty(t, notifier.events[0].Supersedes)
	assert.Equal(t, "build-1", first.BuildID)
}

func TestPipeline_BuildIDsAreUnique(t *testing.T) {
	tbl := monthlyTable(t, 1, map[string][]float64{"GDP": {1}}, "GDP")
	newPipeline := func() *Pipeline {
		return NewPipeline(
			NewSourceChain([]domrepo.TableProvider{&fakeProvider{name: "file", table: tbl}}, newCountingMetrics(), applogger.Nop()),
			NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
			newCountingMetrics(), applogger.Nop(),
		)
	}
	a, err := newPipeline().Build(context.Background())
	require.NoError(t, err)
	b, err := newPipeline().Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Version, b.Version)
	assert.NotEmpty(t, a.BuildID)
	assert.NotEqual(t, a.BuildID, b.BuildID)
}

func TestPipeline_FailedBuildKeepsPreviousSnapshot(t *testing.T) {
	tbl := monthlyTable(t, 1, map[string][]float64{"GDP": {1}}, "GDP")
	provider := &fakeProvider{name: "file", table: tbl}
	m := newCountingMetrics()
	p := NewPipeline(
		NewSourceChain([]domrepo.TableProvider{provider}, m, applogger.Nop()),
		NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
		m, applogger.Nop(),
	)
	first, err := p.Build(context.Background())
	require.NoError(t, err)

	provider.table, provider.err = nil, errBoom
	_, err = p.Build(context.Background())
	assert.ErrorIs(t, err, models.ErrNoUsableTable)
	assert.Same(t, first, p.Snapshot())
	assert.Equal(t, 1, m.errors["build"])
}

func TestPipeline_Locker(t *testing.T) {
	tbl := monthlyTable(t, 1, map[string][]float64{"GDP": {1}}, "GDP")
	type parts struct {
		p        *Pipeline
		sink     *fakeSink
		pub      *fakePublisher
		notifier *fakeNotifier
	}
	newPipeline := func(l *fakeLocker, opts ...PipelineOption) parts {
		x := parts{sink: &fakeSink{name: "file"}, pub: &fakePublisher{}, notifier: &fakeNotifier{}}
		opts = append([]PipelineOption{
			WithLocker(l, time.Minute),
			WithSinks(x.sink),
			WithPublisher(x.pub),
			WithNotifiers(x.notifier),
		}, opts...)
		x.p = NewPipeline(
			NewSourceChain([]domrepo.TableProvider{&fakeProvider{name: "file", table: tbl}}, newCountingMetrics(), applogger.Nop()),
			NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
			newCountingMetrics(), applogger.Nop(),
			opts...,
		)
		return x
	}

	t.Run("held elsewhere still publishes locally", func(t *testing.T) {
		x := newPipeline(&fakeLocker{deny: true})
		snap, err := x.p.Build(context.Background())
		require.NoError(t, err)
		assert.Same(t, snap, x.p.Snapshot())
		assert.Len(t, x.notifier.events, 1)
		assert.Empty(t, x.sink.saved)
		assert.Empty(t, x.pub.events)
	})

	t.Run("held elsewhere fails a strict build", func(t *testing.T) {
		x := newPipeline(&fakeLocker{deny: true}, WithStrictSinks())
		_, err := x.p.Build(context.Background())
		assert.ErrorIs(t, err, ErrRebuildInProgress)
		assert.Empty(t, x.sink.saved)
	})

	t.Run("acquired and released", func(t *testing.T) {
		l := &fakeLocker{}
		x := newPipeline(l)
		_, err := x.p.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, l.unlocked)
		assert.Equal(t, []uint64{1}, x.sink.saved)
		assert.Len(t, x.pub.events, 1)
	})

	t.Run("lock backend down", func(t *testing.T) {
		l := &fakeLocker{deny: true, err: errBoom}
		x := newPipeline(l)
		snap, err := x.p.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1), snap.Version)
		assert.Zero(t, l.unlocked)
		assert.Equal(t, []uint64{1}, x.sink.saved)
	})
}

func TestPipeline_StrictSinks(t *testing.T) {
	tbl := monthlyTable(t, 1, map[string][]float64{"GDP": {1}}, "GDP")
	newPipeline := func(opts ...PipelineOption) *Pipeline {
		return NewPipeline(
			NewSourceChain([]domrepo.TableProvider{&fakeProvider{name: "file", table: tbl}}, newCountingMetrics(), applogger.Nop()),
			NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
			newCountingMetrics(), applogger.Nop(),
			append([]PipelineOption{WithSinks(&fakeSink{name: "file", err: errBoom})}, opts...)...,
		)
	}

	_, err := newPipeline().Build(context.Background())
	assert.NoError(t, err, "sink failures are only logged by default")

	_, err = newPipeline(WithStrictSinks()).Build(context.Background())
	assert.ErrorIs(t, err, ErrSinkFailed)
	assert.ErrorContains(t, err, "file")
}

func TestRefreshHandler(t *testing.T) {
	tbl := monthlyTable(t, 1, map[string][]float64{"GDP": {1}}, "GDP")
	p := NewPipeline(
		NewSourceChain([]domrepo.TableProvider{&fakeProvider{name: "file", table: tbl}}, newCountingMetrics(), applogger.Nop()),
		NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
		newCountingMetrics(), applogger.Nop(),
	)
	h := NewRefreshHandler("econdash.refresh", p, newCountingMetrics(), applogger.Nop())

	assert.Equal(t, "econdash.refresh", h.Topic())
	require.NoError(t, h.Handle(context.Background(), []byte(`{"reason":"nightly"}`)))
	require.NoError(t, h.Handle(context.Background(), []byte("not json")))
	require.NoError(t, h.Handle(context.Background(), nil))
	assert.Equal(t, uint64(3), p.Snapshot().Version)

	busy := NewPipeline(
		NewSourceChain([]domrepo.TableProvider{&fakeProvider{name: "file", table: tbl}}, newCountingMetrics(), applogger.Nop()),
		NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
		newCountingMetrics(), applogger.Nop(),
		WithLocker(&fakeLocker{deny: true}, time.Minute),
	)
	assert.NoError(t, NewRefreshHandler("t", busy, newCountingMetrics(), applogger.Nop()).Handle(context.Background(), nil))
	assert.NotNil(t, busy.Snapshot(), "replica without the lock still refreshes its own table")

	failing := NewRefreshHandler("t", NewPipeline(
		NewSourceChain(nil, newCountingMetrics(), applogger.Nop()),
		NewDeriver(nil, nil, models.Monthly, applogger.Nop()),
		newCountingMetrics(), applogger.Nop(),
	), newCountingMetrics(), applogger.Nop())
	assert.ErrorIs(t, failing.Handle(context.Background(), nil), models.ErrNoUsableTable)
}
