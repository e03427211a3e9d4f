// Package metrics holds the Prometheus collectors for tool calls and pool
// health. Collectors live on their own registry so tests can build as many
// as they like without clashing on the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umarmk/mcp-server/internal/database"
)

const namespace = "mcp_server"

// Metrics is the set of collectors the server reports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolErrors   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls",
			},
			[]string{"tool", "status"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		toolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_errors_total",
				Help:      "Total number of failed tool calls by error kind",
			},
			[]string{"tool", "kind"},
		),
	}
	m.registry.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.toolErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTool records one finished tool call. kind is empty on success.
func (m *Metrics) ObserveTool(tool string, d time.Duration, kind string) {
	if m == nil {
		return
	}
	status := "ok"
	if kind != "" {
		status = "error"
		m.toolErrors.WithLabelValues(tool, kind).Inc()
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RegisterPool exposes pool stats as gauges read at scrape time.
func (m *Metrics) RegisterPool(pool database.Pool) {
	if m == nil {
		return
	}
	gauge := func(name, help string, read func(database.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(pool.Stats()) })
	}
	m.registry.MustRegister(
		gauge("total_conns", "Connections currently open", func(s database.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("acquired_conns", "Connections currently leased", func(s database.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("idle_conns", "Connections currently idle", func(s database.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("max_conns", "Configured pool ceiling", func(s database.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
