package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/internal/handler/ws"
	mid "PairFlow/internal/middleware"
	"PairFlow/internal/usecase"
	"PairFlow/pkg/cache"
	"PairFlow/pkg/config"
	xhttp "PairFlow/pkg/http"
	pkgkafka "PairFlow/pkg/kafka"
	applogger "PairFlow/pkg/logger"
)

// Deps lists everything the application runs. Consumer and TicksHandler are
// nil when Kafka ingestion is disabled.
type Deps struct {
	Config       *config.Config
	Logger       *applogger.Logger
	Metrics      domrepo.Metrics
	Pipeline     *mid.RealtimePipeline
	Collector    *usecase.TickCollector
	Consumer     *pkgkafka.Consumer
	TicksHandler *usecase.KafkaTicksHandler
	Analytics    *usecase.AnalyticsRunner
	Alerts       *usecase.AlertService
	Hub          *ws.Hub
	HTTP         *xhttp.Server
	Publisher    domrepo.Publisher
	Cache        cache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
	log     *applogger.Logger
	cancel  context.CancelFunc
	started bool
}

// New creates a new App instance with all dependencies.
func New(deps Deps) *App {
	log := deps.Logger
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{Deps: deps, log: log}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	return a.Shutdown(ctx)
}

// Start brings the components up in dependency order: persisted alerts, the
// ingest pipeline, the periodic loops, the tick sources and finally HTTP.
func (a *App) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	if err := a.Alerts.Load(ctx); err != nil {
		a.log.Warn("alerts load failed, starting empty", applogger.Error(err))
	}

	a.Pipeline.Start(ctx)
	a.Analytics.Start(ctx)
	a.Alerts.Start(ctx)

	a.Collector.Start(ctx)
	if a.Config != nil {
		a.log.Info("collector started", applogger.Strings("symbols", a.Config.Feed.Symbols))
	}

	if a.Consumer != nil && a.TicksHandler != nil {
		a.Consumer.RegisterHandler(a.TicksHandler)
		a.Consumer.WithConsumerHook(pkgkafka.TimingHook(a.observeKafka))
		if err := a.Consumer.Start(); err != nil {
			cancel()
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.TicksHandler.Topic()))
	}

	if err := a.HTTP.Start(); err != nil {
		cancel()
		return fmt.Errorf("http server: %w", err)
	}
	a.started = true
	return nil
}

func (a *App) observeKafka(topic string, d time.Duration, err error) {
	if a.Metrics == nil {
		return
	}
	a.Metrics.RecordLatency("kafka_handle", d.Seconds())
	if err != nil {
		a.Metrics.RecordError("kafka_handle")
	}
}

// Shutdown stops the tick sources first so the pipeline can drain, then the
// loops (the alert service saves once more), HTTP, the websocket clients and
// the infrastructure clients. Every step runs; errors are joined.
func (a *App) Shutdown(ctx context.Context) error {
	if !a.started {
		return nil
	}
	a.started = false
	a.log.Info("shutting down...")

	var errs []error
	step := func(name string, err error) {
		if err != nil {
			a.log.Warn(name+" stop error", applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("collector", a.Collector.Stop())
	if a.Consumer != nil {
		step("kafka consumer", a.Consumer.Stop(ctx))
	}
	a.Pipeline.Stop()
	a.Analytics.Stop()
	step("alerts", a.Alerts.Stop(ctx))
	step("http", a.HTTP.Stop(ctx))
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}

	// the log collector flushes through the publisher, so it goes first
	if c := a.log.Collector(); c != nil {
		c.Close()
	}
	if a.Publisher != nil {
		step("publisher", a.Publisher.Close())
	}
	if a.Cache != nil {
		step("cache", a.Cache.Close())
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config != nil && a.Config.Server.ShutdownTimeout > 0 {
		// http gets its own ShutdownTimeout; leave room for the rest
		return 2 * a.Config.Server.ShutdownTimeout
	}
	return 20 * time.Second
}
