//go:build wireinject
// +build wireinject

package di

import (
	"EconDash/internal/usecase"
	"EconDash/pkg/config"
	"EconDash/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideObservationStore,
	ProvideRedis,
	ProvideKafkaProducer,
	ProvidePublisher,
)

var pipelineSet = wire.NewSet(
	ProvideCSVTableStore,
	ProvideFREDProvider,
	ProvideSyntheticProvider,
	ProvideSourceChain,
	ProvideDeriver,
	ProvideHub,
	ProvidePipeline,
)

// InitializeApp wires the long-running service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		pipelineSet,

		ProvideQueryCache,
		ProvideQueryUseCase,
		ProvideKafkaConsumer,
		ProvideRefreshHandler,
		ProvideLimiter,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}

// InitializePipeline wires a one-shot build without the HTTP side.
func InitializePipeline(cfg *config.Config) (*usecase.Pipeline, func(), error) {
	wire.Build(infraSet, pipelineSet)
	return nil, nil, nil
}
