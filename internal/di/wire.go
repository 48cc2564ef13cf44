//go:build wireinject
// +build wireinject

package di

import (
	"EarlyPump/pkg/config"
	"EarlyPump/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Display region and renderer
		ProvideTemplates,
		ProvideRegionHub,
		ProvideDisplayRegion,
		ProvideFeedSource,
		ProvideSignalRenderer,

		// Detection and streaming
		ProvideTickerSource,
		ProvidePumpDetector,
		ProvideKafkaProducer,
		ProvideSignalPublisher,
		ProvidePumpScanner,

		// History
		ProvideClickHouseClient,
		ProvideSignalStore,
		ProvideKafkaConsumer,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
