//go:build wireinject
// +build wireinject

package di

import (
	"NgxQuant/pkg/config"
	"NgxQuant/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaConsumer,

		// Storage
		ProvideBarStore,
		ProvideIngestPipeline,

		// Use cases
		ProvideBacktestRunner,
		ProvideKafkaBarsHandler,
		ProvideJobQueue,

		// HTTP surface
		ProvideAnalyticsHandler,

		// Application server
		ProvideLogger,
		ProvideApp,
	)
	return &server.App{}, nil
}
