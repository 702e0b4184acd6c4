// Package injector assembles a server from its configuration.
package injector

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zeusync/zeusnet/internal/core/game"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/observability/metrics"
	"github.com/zeusync/zeusnet/internal/core/session"
	"github.com/zeusync/zeusnet/internal/server"
)

// ProvideRegistry returns a registry private to one server, with the Go
// runtime and process collectors.
func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func ProvideMetrics(registry *prometheus.Registry) *metrics.Metrics {
	return metrics.New(metrics.WithRegistry(registry))
}

func ProvideLogger(config server.Config) (log.Log, error) {
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", server.ErrInvalidConfig, err)
	}
	return log.New(level), nil
}

func ProvideSessions(config server.Config, logger log.Log, collectors *metrics.Metrics) *session.Manager {
	return session.NewManager(
		session.WithTimeout(config.ClientTimeout),
		session.WithMetrics(collectors),
		session.WithLogger(logger),
	)
}

// ProvideGameOptions shares the session clock with every instance and makes
// the session table the flusher of their outbound queues.
func ProvideGameOptions(config server.Config, logger log.Log, collectors *metrics.Metrics, sessions *session.Manager) game.Options {
	return game.Options{
		MaxPacketsPerTick: config.MaxPacketsPerTick,
		MinTickInterval:   config.MinTickInterval,
		ClientTimeout:     sessions.Timeout(),
		Clock:             sessions.Clock(),
		Flusher:           sessions,
		Metrics:           collectors,
		Logger:            logger,
	}
}

func ProvideGames(config server.Config, opts game.Options) (*game.Manager, error) {
	return game.NewManager(config.GameDir, opts)
}
