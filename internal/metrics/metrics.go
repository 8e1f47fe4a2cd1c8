// Package metrics exposes sync client activity as Prometheus collectors.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ernie/range-dashboard/internal/mirror"
	"github.com/ernie/range-dashboard/internal/protocol"
	"github.com/ernie/range-dashboard/internal/transport"
)

// Config configures the collectors
type Config struct {
	// Namespace is the metrics namespace (default: "range")
	Namespace string

	// ConstLabels are added to every metric
	ConstLabels prometheus.Labels

	// Registry defaults to prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors
type Option func(*Config)

// WithNamespace sets the metrics namespace
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithConstLabels sets constant labels for all metrics
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithRegistry sets the Prometheus registry
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

// Collector counts frames and connections. It satisfies the sync client's
// observer interface.
type Collector struct {
	framesApplied  *prometheus.CounterVec
	framesRejected *prometheus.CounterVec
	framesStale    prometheus.Counter
	connects       prometheus.Counter
	disconnects    *prometheus.CounterVec
	connected      prometheus.Gauge
	generation     prometheus.Gauge
	mirrorVersion  prometheus.Gauge
	feedLength     prometheus.Gauge
}

// New registers the collectors
func New(opts ...Option) *Collector {
	config := Config{
		Namespace: "range",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		framesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_applied_total",
			Help:        "Frames merged into the mirror, by message type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		framesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_rejected_total",
			Help:        "Frames dropped without touching the mirror, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		framesStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_stale_total",
			Help:        "Frames ignored because they arrived on a superseded connection",
			ConstLabels: config.ConstLabels,
		}),

		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connections_opened_total",
			Help:        "Real-time connections opened",
			ConstLabels: config.ConstLabels,
		}),

		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connections_closed_total",
			Help:        "Real-time connection attempts that ended, by phase",
			ConstLabels: config.ConstLabels,
		}, []string{"phase"}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connected",
			Help:        "1 while the real-time connection is open",
			ConstLabels: config.ConstLabels,
		}),

		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connection_generation",
			Help:        "Generation number of the latest connection attempt",
			ConstLabels: config.ConstLabels,
		}),

		mirrorVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "mirror_version",
			Help:        "Number of updates applied to the local mirror",
			ConstLabels: config.ConstLabels,
		}),

		feedLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "feed_entries",
			Help:        "Entries currently held in the hit feed",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ConnectionOpened implements the observer interface
func (c *Collector) ConnectionOpened(info transport.ConnInfo) {
	c.connects.Inc()
	c.connected.Set(1)
	c.generation.Set(float64(info.Generation))
}

// ConnectionClosed implements the observer interface
func (c *Collector) ConnectionClosed(info transport.ConnInfo, _ error) {
	phase := "dial"
	if info.Opened {
		phase = "open"
	}
	c.disconnects.WithLabelValues(phase).Inc()
	c.connected.Set(0)
	c.generation.Set(float64(info.Generation))
}

// FrameApplied implements the observer interface
func (c *Collector) FrameApplied(_ transport.ConnInfo, _ []byte, msg protocol.Message, _ mirror.Change) {
	c.framesApplied.WithLabelValues(msg.Type()).Inc()
}

// FrameRejected implements the observer interface
func (c *Collector) FrameRejected(_ transport.ConnInfo, _ []byte, err error) {
	c.framesRejected.WithLabelValues(rejectReason(err)).Inc()
}

// FrameStale implements the observer interface
func (c *Collector) FrameStale(transport.ConnInfo, []byte) {
	c.framesStale.Inc()
}

// ObserveUpdate tracks the mirror's version and feed size. Pass it to the
// mirror's change hook.
func (c *Collector) ObserveUpdate(u mirror.Update, feedLen int) {
	c.mirrorVersion.Set(float64(u.Version))
	c.feedLength.Set(float64(feedLen))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, protocol.ErrMalformed):
		return "malformed"
	case errors.Is(err, mirror.ErrInvalidMessage):
		return "invalid"
	}
	return "other"
}
