// Package metrics implements the registry of spec.md §4.L: a handful of
// counters and gauges with a read endpoint exposing the Prometheus text
// format, built on github.com/prometheus/client_golang exactly as the
// pack's own service manifests wire it (promauto-registered collectors,
// served through promhttp).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the core exposes, registered against its own
// prometheus.Registry rather than the global default so a process can run
// more than one instance in tests without collector-already-registered
// panics.
type Registry struct {
	registry *prometheus.Registry

	commandsTotal    prometheus.Counter
	eventsTotal      prometheus.Counter
	processingSecond prometheus.Counter
	guildCount       prometheus.Gauge
	shardLatency     *prometheus.GaugeVec
}

// New constructs an empty registry with every collector registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		commandsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "assyst_commands_total",
			Help: "Total commands dispatched.",
		}),
		eventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "assyst_events_total",
			Help: "Total gateway events observed.",
		}),
		processingSecond: factory.NewCounter(prometheus.CounterOpts{
			Name: "assyst_command_processing_seconds_total",
			Help: "Cumulative command handler wall-clock time, in seconds.",
		}),
		guildCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "assyst_guild_count",
			Help: "Current guild count.",
		}),
		shardLatency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "assyst_shard_latency_seconds",
			Help: "Current gateway heartbeat latency per shard.",
		}, []string{"shard"}),
	}
}

// IncCommand increments the total-commands counter.
func (r *Registry) IncCommand() { r.commandsTotal.Inc() }

// IncEvent increments the total-events-observed counter.
func (r *Registry) IncEvent() { r.eventsTotal.Inc() }

// AddProcessingTime accumulates handler wall-clock time. The average is
// left to PromQL (rate(processing_seconds_total) / rate(commands_total))
// rather than tracked as a second in-process gauge.
func (r *Registry) AddProcessingTime(d time.Duration) {
	r.processingSecond.Add(d.Seconds())
}

// SetGuildCount sets the guild-count gauge.
func (r *Registry) SetGuildCount(n int) { r.guildCount.Set(float64(n)) }

// SetShardLatency records the current gateway latency for one shard.
func (r *Registry) SetShardLatency(shard string, d time.Duration) {
	r.shardLatency.WithLabelValues(shard).Set(d.Seconds())
}

// Handler serves this registry's metrics in the Prometheus text exposition
// format, mounted by internal/webserver at spec.md §4.L's /metrics route.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
