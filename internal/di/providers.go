package di

import (
	"fmt"

	"PairFlow/internal/domain/models"
	"PairFlow/internal/domain/repository"
	"PairFlow/internal/handler/api"
	"PairFlow/internal/handler/ws"
	mid "PairFlow/internal/middleware"
	internalrepo "PairFlow/internal/repository"
	"PairFlow/internal/service/feed"
	"PairFlow/internal/service/ratelimit"
	"PairFlow/internal/services/alerts"
	"PairFlow/internal/store"
	"PairFlow/internal/usecase"
	"PairFlow/pkg/cache"
	"PairFlow/pkg/config"
	xhttp "PairFlow/pkg/http"
	pkgkafka "PairFlow/pkg/kafka"
	applogger "PairFlow/pkg/logger"
	"PairFlow/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.NewWithRegisterer(prometheus.DefaultRegisterer)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	pkgkafka.SetProducerMetricsRegisterer(prometheus.DefaultRegisterer)
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvidePublisher publishes ticks, bars and alert notifications to Kafka, or
// discards them when no producer is configured.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Ticks:  cfg.Kafka.Topics.Ticks,
		Bars:   cfg.Kafka.Topics.Bars,
		Alerts: cfg.Kafka.Topics.Alerts,
	})
}

// ProvideLogger builds the application logger with the log panel attached.
// Error and warn entries are also shipped to the logs topic when Kafka is on.
func ProvideLogger(cfg *config.Config, pub repository.Publisher) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	panel := &applogger.CollectionConfig{Capacity: cfg.Logging.Panel.Capacity}
	if lp, ok := pub.(applogger.Publisher); ok && cfg.Kafka.Enabled {
		panel.Publisher = lp
		panel.Topic = cfg.Kafka.Topics.Logs
		panel.FlushInterval = cfg.Logging.Panel.FlushInterval
	}
	l.AddCollector(panel)
	return l, nil
}

// ProvideCache uses Redis when enabled and an in-process cache otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		l.Info("alerts: using in-memory cache")
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPoolSize(cfg.Redis.PoolSize),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	l.Info("alerts: using redis", applogger.String("addr", cfg.Redis.Addr))
	return rc, nil
}

// ProvideAlertRepository persists alerts in the cache.
func ProvideAlertRepository(c cache.Service) repository.AlertRepository {
	return internalrepo.NewAlertRepository(c)
}

// ProvideStore creates the tick store with the configured ring capacities.
func ProvideStore(cfg *config.Config) *store.Store {
	return store.New(
		store.WithTickCapacity(cfg.Store.TickCapacity),
		store.WithBarCapacity(cfg.Store.BarCapacity),
	)
}

// ProvideSettings seeds the analytics settings from the first two feed symbols.
func ProvideSettings(cfg *config.Config) (*usecase.SettingsStore, error) {
	symbols := cfg.Feed.Symbols
	if len(symbols) > 2 {
		symbols = symbols[:2]
	}
	return usecase.NewSettingsStore(models.Settings{
		Symbols:       symbols,
		Timeframe:     cfg.Analytics.Timeframe,
		RollingWindow: cfg.Analytics.RollingWindow,
	})
}

// ProvideHub creates the /ws/market broadcaster.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l.With(applogger.String("component", "ws")))
}

// ProvideTickProcessor stores ticks and fans them out to the websocket hub
// and the publisher.
func ProvideTickProcessor(
	st *store.Store,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
	hub *ws.Hub,
) *usecase.TickProcessor {
	p := usecase.NewTickProcessor(st, pub, m, l)
	p.AddTickSink(hub)
	return p
}

// ProvidePipeline sits between every tick source and the processor.
func ProvidePipeline(cfg *config.Config, proc *usecase.TickProcessor, m repository.Metrics, l *applogger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(proc, m, l, mid.WithQueueSize(cfg.Feed.PipelineQueue))
}

// ProvideFeedStream creates the websocket feed client.
func ProvideFeedStream(cfg *config.Config, l *applogger.Logger, m repository.Metrics) repository.MarketStream {
	return feed.New(l.With(applogger.String("component", "feed")), m,
		feed.WithURL(cfg.Feed.URL),
		feed.WithMode(feed.Mode(cfg.Feed.Mode)),
		feed.WithSymbols(cfg.Feed.Symbols),
		feed.WithPingInterval(cfg.Feed.PingInterval),
		feed.WithReadTimeout(cfg.Feed.ReadTimeout),
		feed.WithHandshakeTimeout(cfg.Feed.HandshakeTimeout),
		feed.WithBufferSize(cfg.Feed.BufferSize),
	)
}

// ProvideStatusTracker tracks per-symbol feed activity for /api/status.
func ProvideStatusTracker(cfg *config.Config) *usecase.FeedStatusTracker {
	return usecase.NewFeedStatusTracker(cfg.Feed.Symbols)
}

// ProvideTickCollector creates the reconnecting feed collector.
func ProvideTickCollector(
	cfg *config.Config,
	stream repository.MarketStream,
	pipe *mid.RealtimePipeline,
	status *usecase.FeedStatusTracker,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TickCollector {
	return usecase.NewTickCollector(stream, pipe, status, m, l,
		usecase.WithBackoff(cfg.Feed.InitialBackoff, cfg.Feed.MaxBackoff),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when Kafka ingestion is off.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	pkgkafka.SetConsumerMetricsRegisterer(prometheus.DefaultRegisterer)
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l.With(applogger.String("component", "kafka"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTicksHandler feeds relay ticks from Kafka into the pipeline.
func ProvideKafkaTicksHandler(
	cfg *config.Config,
	consumer *pkgkafka.Consumer,
	pipe *mid.RealtimePipeline,
	status *usecase.FeedStatusTracker,
	m repository.Metrics,
) *usecase.KafkaTicksHandler {
	if consumer == nil {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Consumer.Topic, pipe, status, m)
}

// ProvideAnalyticsRunner recomputes pair analytics on a fixed interval.
func ProvideAnalyticsRunner(
	cfg *config.Config,
	st *store.Store,
	settings *usecase.SettingsStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AnalyticsRunner {
	return usecase.NewAnalyticsRunner(st, settings, m, l, cfg.Analytics.Interval)
}

// ProvideAlertBook holds the alert rules and recent notifications.
func ProvideAlertBook(cfg *config.Config) *alerts.Book {
	return alerts.NewBook(
		alerts.WithThrottle(cfg.Alerts.Throttle),
		alerts.WithMaxNotifications(cfg.Alerts.MaxNotifications),
	)
}

// ProvideAlertService evaluates the alert book against the latest analytics.
func ProvideAlertService(
	cfg *config.Config,
	book *alerts.Book,
	runner *usecase.AnalyticsRunner,
	repo repository.AlertRepository,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AlertService {
	return usecase.NewAlertService(book, runner, repo, pub, m, l, cfg.Alerts.Interval)
}

// ProvideMarket serves store reads for the HTTP API.
func ProvideMarket(st *store.Store) *usecase.Market {
	return usecase.NewMarket(st)
}

// ProvideHandlers collects every route group the HTTP server registers.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	market *usecase.Market,
	runner *usecase.AnalyticsRunner,
	settings *usecase.SettingsStore,
	alertSvc *usecase.AlertService,
	status *usecase.FeedStatusTracker,
	c cache.Service,
	hub *ws.Hub,
) []xhttp.Handler {
	limit := api.ExportLimit{Capacity: cfg.RateLimit.Capacity, RefillPerSec: cfg.RateLimit.RefillPerSec}
	return []xhttp.Handler{
		api.NewMarketHandler(l, market, ratelimit.New(), limit),
		api.NewAnalyticsHandler(l, runner, settings),
		api.NewAlertsHandler(l, alertSvc),
		api.NewSystemHandler(l, status, c),
		hub,
	}
}

// ProvideHTTPServer creates the Echo server with every handler mounted.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
		xhttp.WithPrometheus(prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
	)
}
