//go:build wireinject
// +build wireinject

package di

import (
	"StockCast/pkg/config"
	"StockCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories and sources
		ProvideBarStore,
		ProvideResultPublisher,
		ProvideBarSource,
		ProvideModelLoader,

		// Use cases
		ProvidePredictUseCase,
		ProvideHistoricalUseCase,
		ProvideModelCheckUseCase,
		ProvideSearchUseCase,
		ProvideScheduler,
		ProvideForecastRequestHandler,

		// Transport
		ProvideRateLimiter,
		ProvideForecastHandler,
		ProvideStreamHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
