//go:build wireinject
// +build wireinject

package di

import (
	"PairFlow/pkg/config"
	"PairFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics and infrastructure clients
		ProvideMetrics,
		ProvideKafkaProducer,
		ProvidePublisher,
		ProvideLogger,
		ProvideCache,

		// Repositories and state
		ProvideAlertRepository,
		ProvideStore,
		ProvideSettings,
		ProvideStatusTracker,

		// Tick ingest
		ProvideHub,
		ProvideTickProcessor,
		ProvidePipeline,
		ProvideFeedStream,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// Use cases
		ProvideAnalyticsRunner,
		ProvideAlertBook,
		ProvideAlertService,
		ProvideMarket,

		// HTTP
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		wire.Struct(new(server.Deps), "*"),
		server.New,
	)
	return &server.App{}, nil
}
