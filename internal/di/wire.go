//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"ChainPulse/pkg/config"
	"ChainPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application with
// a cleanup that releases connections in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideRegistry,
		ProvideLogger,
		ProvideMetrics,

		// Caching
		ProvideRedisCache,
		ProvideCacheStore,
		ProvideFitCache,

		// Engine and storage
		ProvideEngine,
		ProvideClickHouseClient,
		ProvideSeriesProvider,
		ProvideAssetAnalysis,

		// Kafka
		ProvideKafkaProducer,
		ProvideResultPublisher,
		ProvideKafkaConsumer,
		ProvideKafkaAnalysisHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideAnalysisHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
