//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/config"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideCacheService,

		// Simulation feeds
		ProvideFeedFactory,
		ProvideDefaultFeed,
		ProvideMarketStream,

		// Repositories
		ProvideTickStorage,
		ProvideTickPublisher,

		// Use cases
		ProvideTickProcessor,
		ProvideFeedCollector,
		ProvideCandlesUseCase,
		ProvideKafkaTicksHandler,

		// HTTP and queue surfaces
		ProvideHTTPHandler,
		ProvideAnomalyQueue,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
