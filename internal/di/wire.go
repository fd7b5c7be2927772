//go:build wireinject
// +build wireinject

package di

import (
	"SalesPulse/pkg/config"
	"SalesPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,
		ProvidePostgresClient,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideSalesSource,
		ProvideModelStore,
		ProvideRunStore,
		ProvideEventPublisher,

		// Model and use cases
		ProvideForecaster,
		ProvideForecastService,

		// HTTP
		ProvideRateLimiter,
		ProvideHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
