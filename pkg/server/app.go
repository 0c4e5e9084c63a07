package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EconDash/internal/handler/ws"
	"EconDash/internal/service/ratelimit"
	"EconDash/internal/usecase"
	"EconDash/pkg/config"
	xhttp "EconDash/pkg/http"
	pkgkafka "EconDash/pkg/kafka"
	applogger "EconDash/pkg/logger"
)

const limiterIdle = 30 * time.Minute

// App encapsulates the service lifecycle: first build, HTTP API, optional
// scheduled refresh and Kafka refresh commands.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	pipeline   *usecase.Pipeline
	httpServer *xhttp.Server
	hub        *ws.Hub
	limiter    *ratelimit.Limiter
	consumer   *pkgkafka.Consumer
	refresh    pkgkafka.MessageHandler
	closers    []func()
}

// New creates a new App. consumer and refresh may be nil when Kafka is off.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.Pipeline,
	httpServer *xhttp.Server,
	hub *ws.Hub,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	refresh pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		pipeline:   pipeline,
		httpServer: httpServer,
		hub:        hub,
		limiter:    limiter,
		consumer:   consumer,
		refresh:    refresh,
	}
}

// OnClose registers infrastructure cleanup run after the servers stop.
func (a *App) OnClose(fn func()) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Run builds the first table and serves until SIGINT/SIGTERM. A first build
// that finds no usable source is fatal.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.Run(ctx)

	if err := a.build(ctx, "startup"); err != nil {
		a.close()
		return fmt.Errorf("initial build: %w", err)
	}

	if a.consumer != nil && a.refresh != nil {
		a.consumer.RegisterHandler(a.refresh)
		a.consumer.WithHook(pkgkafka.LoggingHook{Log: a.log})
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.refresh.Topic()))
		}
	}

	go a.maintain(ctx)

	httpErr := a.httpServer.Start()
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-httpErr:
		if ok && err != nil {
			a.log.Error("http server failed", applogger.Error(err))
			a.shutdown()
			return err
		}
	}
	return a.shutdown()
}

// maintain runs the refresh schedule and forgets idle rate-limit clients.
func (a *App) maintain(ctx context.Context) {
	sweep := time.NewTicker(limiterIdle)
	defer sweep.Stop()

	var refresh <-chan time.Time
	if every := a.cfg.Pipeline.RefreshInterval; every > 0 {
		t := time.NewTicker(every)
		defer t.Stop()
		refresh = t.C
		a.log.Info("scheduled refresh enabled", applogger.Duration("interval_ms", every))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh:
			if err := a.build(ctx, "schedule"); err != nil {
				a.log.Error("scheduled rebuild failed", applogger.Error(err))
			}
		case <-sweep.C:
			if n := a.limiter.Sweep(limiterIdle); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("clients", n))
			}
		}
	}
}

func (a *App) build(ctx context.Context, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Pipeline.BuildTimeout)
	defer cancel()
	a.log.Info("building table", applogger.String("reason", reason))
	_, err := a.pipeline.Build(ctx)
	return err
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.close()
	a.log.Info("shutdown complete")
	return firstErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
