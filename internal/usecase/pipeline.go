package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"
	applogger "EconDash/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrNotReady is returned by readers before the first build completes.
	ErrNotReady = errors.New("no table has been built yet")
	// ErrRebuildInProgress means another replica holds the rebuild lock and
	// a strict pipeline could not write its outputs.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	// ErrSinkFailed wraps a sink error returned by a strict pipeline.
	ErrSinkFailed = errors.New("table sink failed")
)

const rebuildLockKey = "lock:rebuild"

// PipelineOption configures Pipeline.
type PipelineOption func(*Pipeline)

// WithSinks adds persistence targets, written in order after every build.
func WithSinks(sinks ...domrepo.TableSink) PipelineOption {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

// WithPublisher announces rebuilds to other services.
func WithPublisher(pub domrepo.EventPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithNotifiers are told about every published snapshot, in order.
func WithNotifiers(ns ...domrepo.Notifier) PipelineOption {
	return func(p *Pipeline) { p.notifiers = append(p.notifiers, ns...) }
}

// WithLocker serializes writes to the shared outputs (sinks and the event
// publisher) across replicas. Every replica still publishes its own snapshot.
func WithLocker(l domrepo.Locker, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.locker = l
		p.lockTTL = ttl
	}
}

// WithStrictSinks makes Build fail when a sink fails or when the shared
// outputs are locked by another replica. One-shot runs use it.
func WithStrictSinks() PipelineOption {
	return func(p *Pipeline) { p.strict = true }
}

// WithIDGenerator overrides the build ID source.
func WithIDGenerator(newID func() string) PipelineOption {
	return func(p *Pipeline) { p.newID = newID }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline builds the merged table and publishes it as an immutable
// snapshot. Readers never observe a partially built table.
type Pipeline struct {
	chain   *SourceChain
	deriver *Deriver
	metrics domrepo.Metrics
	l       *applogger.Logger

	sinks     []domrepo.TableSink
	publisher domrepo.EventPublisher
	notifiers []domrepo.Notifier
	locker    domrepo.Locker
	lockTTL   time.Duration
	strict    bool
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	current atomic.Pointer[models.TableSnapshot]
}

func NewPipeline(chain *SourceChain, deriver *Deriver, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		chain:   chain,
		deriver: deriver,
		metrics: metrics,
		l:       l,
		lockTTL: 2 * time.Minute,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddNotifier subscribes n to later builds.
func (p *Pipeline) AddNotifier(n domrepo.Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifiers = append(p.notifiers, n)
}

// Snapshot returns the current snapshot, or nil before the first build.
func (p *Pipeline) Snapshot() *models.TableSnapshot {
	return p.current.Load()
}

// Build loads, derives and publishes a new snapshot, then persists it and
// announces it to other services. Concurrent calls in this process queue up.
// The snapshot is published locally even when the shared outputs are skipped
// because another replica holds the lock.
func (p *Pipeline) Build(ctx context.Context) (*models.TableSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	table, source, err := p.chain.Load(ctx)
	if err != nil {
		p.metrics.RecordError("build")
		p.l.Error("table build failed", applogger.Error(err))
		return nil, fmt.Errorf("build table: %w", err)
	}
	table = p.deriver.Apply(table)

	var version uint64 = 1
	var supersedes string
	if prev := p.current.Load(); prev != nil {
		version = prev.Version + 1
		supersedes = prev.BuildID
	}
	snap := &models.TableSnapshot{
		Table:   table,
		Version: version,
		BuildID: p.newID(),
		Source:  source,
		BuiltAt: p.now().UTC(),
	}

	p.current.Store(snap)
	took := p.now().Sub(start)
	p.metrics.RecordBuild(source, table.Len(), len(table.Columns()), took.Seconds())
	p.l.Info("table published",
		applogger.Uint64("version", version),
		applogger.String("build_id", snap.BuildID),
		applogger.String("source", source),
		applogger.Int("rows", table.Len()),
		applogger.Int("columns", len(table.Columns())),
		applogger.Duration("duration_ms", took),
	)

	ev := models.NewRebuildEvent(snap, took)
	ev.Supersedes = supersedes
	for _, n := range p.notifiers {
		n.Notify(ev)
	}

	if err := p.share(ctx, snap, ev); err != nil {
		return nil, err
	}
	return snap, nil
}

// share writes snap to the sinks and publishes ev. With a locker only the
// replica holding the lock does so.
func (p *Pipeline) share(ctx context.Context, snap *models.TableSnapshot, ev models.RebuildEvent) error {
	if p.locker != nil {
		ok, err := p.locker.TryLock(ctx, rebuildLockKey, p.lockTTL)
		switch {
		case err != nil:
			p.metrics.RecordError("rebuild_lock")
			p.l.Warn("rebuild lock unavailable, writing outputs without it", applogger.Error(err))
		case !ok:
			p.l.Info("outputs written by another replica, skipped", applogger.String("build_id", snap.BuildID))
			if p.strict {
				return ErrRebuildInProgress
			}
			return nil
		default:
			defer func() {
				if err := p.locker.Unlock(context.Background(), rebuildLockKey); err != nil {
					p.l.Warn("rebuild unlock failed", applogger.Error(err))
				}
			}()
		}
	}

	for _, s := range p.sinks {
		if err := s.Save(ctx, snap); err != nil {
			p.metrics.RecordError("sink_" + s.Name())
			p.l.Warn("table sink failed", applogger.String("sink", s.Name()), applogger.Error(err))
			if p.strict {
				return fmt.Errorf("%w: %s: %v", ErrSinkFailed, s.Name(), err)
			}
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishRebuild(ctx, ev); err != nil {
			p.metrics.RecordError("publish_rebuild")
			p.l.Warn("rebuild event not published", applogger.Error(err))
		}
	}
	return nil
}
