//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinTrain/pkg/config"
	"FinTrain/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application along
// with a cleanup that releases every opened client.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure
		ProvideCandleSource,
		ProvideCheckpointStore,

		// Progress reporting
		ProvideTracker,
		ProvideHub,
		ProvideRedisStatusStore,
		ProvideProgressSink,

		// Use cases
		ProvideTrainer,

		// HTTP
		ProvideStatusHandler,
		ProvideHTTPServer,

		// Application
		ProvideApp,
	)
	return nil, nil, nil
}
