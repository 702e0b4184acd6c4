//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/zeusnet/internal/server"
)

func InitializeServer(config server.Config) (*server.Server, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
		ProvideMetrics,
		ProvideSessions,
		ProvideGameOptions,
		ProvideGames,
		server.New,
	)
	return nil, nil
}
