// Package metrics exposes the server's Prometheus collectors. Every method
// is safe on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zeusync/zeusnet/internal/core/events/bus"
)

var _ bus.EventBusObserver = (*Metrics)(nil)

// Drop reasons used as label values.
const (
	ReasonMalformed  = "malformed"
	ReasonUnknown    = "unknown_command"
	ReasonNoGame     = "no_game"
	ReasonSendFailed = "send_failed"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "zeusnet").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// TickBuckets are the histogram buckets for tick duration.
	TickBuckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace:   "zeusnet",
		TickBuckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		Registry:    prometheus.DefaultRegisterer,
	}
}

type Metrics struct {
	datagramsReceived prometheus.Counter
	batchSize         prometheus.Histogram
	packetsReceived   prometheus.Counter
	packetsDropped    *prometheus.CounterVec
	datagramsSent     prometheus.Counter
	bytesSent         prometheus.Counter

	activeSessions  prometheus.Gauge
	evictedSessions prometheus.Counter

	runningGames    *prometheus.GaugeVec
	waitingSessions *prometheus.GaugeVec
	tickDuration    *prometheus.HistogramVec
	entityEvents    *prometheus.CounterVec
	eventFailures   *prometheus.CounterVec
}

func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		datagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "transport",
			Name:        "datagrams_received_total",
			Help:        "Datagrams read from the server socket",
			ConstLabels: config.ConstLabels,
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   "transport",
			Name:        "receive_batch_size",
			Help:        "Datagrams returned by one batched receive",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		packetsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "protocol",
			Name:        "packets_received_total",
			Help:        "Packets decoded from inbound datagrams",
			ConstLabels: config.ConstLabels,
		}),
		packetsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "protocol",
			Name:        "packets_dropped_total",
			Help:        "Packets discarded, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),
		datagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "transport",
			Name:        "datagrams_sent_total",
			Help:        "Datagrams written to clients",
			ConstLabels: config.ConstLabels,
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "transport",
			Name:        "bytes_sent_total",
			Help:        "Bytes written to clients",
			ConstLabels: config.ConstLabels,
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "session",
			Name:        "active",
			Help:        "Sessions currently tracked",
			ConstLabels: config.ConstLabels,
		}),
		evictedSessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "session",
			Name:        "evicted_total",
			Help:        "Sessions removed after the inactivity timeout",
			ConstLabels: config.ConstLabels,
		}),
		runningGames: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "game",
			Name:        "instances",
			Help:        "Game instances, by game name",
			ConstLabels: config.ConstLabels,
		}, []string{"game"}),
		waitingSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "game",
			Name:        "waiting_sessions",
			Help:        "Sessions queued for a full game",
			ConstLabels: config.ConstLabels,
		}, []string{"game"}),
		tickDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   "game",
			Name:        "tick_duration_seconds",
			Help:        "Time spent in one game update",
			ConstLabels: config.ConstLabels,
			Buckets:     config.TickBuckets,
		}, []string{"game"}),
		entityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "game",
			Name:        "entity_events_total",
			Help:        "Entity events published by systems, by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
		eventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "game",
			Name:        "entity_event_failures_total",
			Help:        "Entity events whose broadcast failed, by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

func (m *Metrics) ReceivedBatch(n int) {
	if m == nil || n == 0 {
		return
	}
	m.datagramsReceived.Add(float64(n))
	m.batchSize.Observe(float64(n))
}

func (m *Metrics) ReceivedPackets(n int) {
	if m == nil {
		return
	}
	m.packetsReceived.Add(float64(n))
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.packetsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Sent(bytes int) {
	if m == nil {
		return
	}
	m.datagramsSent.Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed(evicted bool) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	if evicted {
		m.evictedSessions.Inc()
	}
}

func (m *Metrics) SetInstances(game string, n int) {
	if m == nil {
		return
	}
	m.runningGames.WithLabelValues(game).Set(float64(n))
}

func (m *Metrics) SetWaiting(game string, n int) {
	if m == nil {
		return
	}
	m.waitingSessions.WithLabelValues(game).Set(float64(n))
}

func (m *Metrics) ObserveTick(game string, d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(game).Observe(d.Seconds())
}

// OnPublish counts entity events; *Metrics observes game buses.
func (m *Metrics) OnPublish(_, eventType string, _ bus.Event) {
	if m == nil {
		return
	}
	m.entityEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) OnDelivered(_, eventType string, _ int, err error, _ time.Duration) {
	if m == nil || err == nil {
		return
	}
	m.eventFailures.WithLabelValues(eventType).Inc()
}
