// Package metrics exposes athena's Prometheus collectors.
//
// Each Metrics value owns its registry, so several servers (or tests) in
// one process do not collide on the default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/athena/internal/command"
	"github.com/roach88/athena/internal/store"
)

const namespace = "athena"

// Metrics holds the collectors for commands, sessions and the store.
// It implements command.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// CommandsTotal counts executed commands.
	// Labels: command (SET, EVAL, ..., UNKNOWN), status (ok, error, quit, shutdown)
	CommandsTotal *prometheus.CounterVec

	// ErrorsTotal counts failed commands by error class.
	// Labels: command, class (argument, lookup, type, resource, syntax, internal)
	ErrorsTotal *prometheus.CounterVec

	// CommandDuration measures command latency.
	// Labels: command
	CommandDuration *prometheus.HistogramVec

	// CollectionsTotal counts collector runs started by GC.
	CollectionsTotal prometheus.Counter

	// CollectedTotal counts objects reclaimed by those runs.
	CollectedTotal prometheus.Counter

	Objects  prometheus.Gauge
	Sets     prometheus.Gauge
	Pinned   prometheus.Gauge
	Sessions prometheus.Gauge
}

var _ command.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed commands by command and reply status",
		}, []string{"command", "status"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Failed commands by command and error class",
		}, []string{"command", "class"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}, []string{"command"}),
		CollectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "runs_total",
			Help:      "Collector runs",
		}),
		CollectedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "collected_objects_total",
			Help:      "Objects reclaimed by the collector",
		}),
		Objects: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "objects",
			Help:      "Registered objects",
		}),
		Sets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "named_sets",
			Help:      "Bound set names",
		}),
		Pinned: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pinned_objects",
			Help:      "Objects pinned by in-flight commands",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Open client sessions",
		}),
	}
}

// ObserveCommand records one executed command.
func (m *Metrics) ObserveCommand(cmd string, status command.Status, elapsed time.Duration) {
	m.CommandsTotal.WithLabelValues(cmd, string(status)).Inc()
	m.CommandDuration.WithLabelValues(cmd).Observe(elapsed.Seconds())
}

// ObserveError records the class of one failed command.
func (m *Metrics) ObserveError(cmd, class string) {
	m.ErrorsTotal.WithLabelValues(cmd, class).Inc()
}

// ObserveCollect records one collector run.
func (m *Metrics) ObserveCollect(collected int) {
	m.CollectionsTotal.Inc()
	m.CollectedTotal.Add(float64(collected))
}

// ObserveStore refreshes the store gauges.
func (m *Metrics) ObserveStore(st store.Stats) {
	m.Objects.Set(float64(st.Objects))
	m.Sets.Set(float64(st.Sets))
	m.Pinned.Set(float64(st.Pinned))
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
