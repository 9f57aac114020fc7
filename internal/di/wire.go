//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TradeCore/pkg/config"
	"TradeCore/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,
		ProvideEventPublisher,
		ProvideMetrics,

		// Collaborators
		ProvideFeatureStore,
		ProvideTalibService,
		ProvideIndicatorService,
		ProvideIndicatorCalculator,
		ProvideBrainService,
		ProvidePriceBook,
		ProvideMarketData,

		// Use cases
		ProvideSignalAggregator,
		ProvideDecisionEnricher,
		ProvideRouteSelector,
		ProvidePaperLedger,
		ProvideEvolutionGuard,
		ProvideTradingCycle,
		ProvideEvolutionJob,
		ProvideEvolutionQueue,
		ProvideQueueService,
		ProvideCandles,

		// Tick path
		ProvideFinnhubStream,
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaHandlers,

		ProvideHandlers,
		ProvideApp,
	)
	return &server.App{}, nil
}
