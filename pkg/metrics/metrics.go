// Package metrics holds the Prometheus collectors of the reconciliation
// engine. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "newtcli"

// Metrics groups the engine collectors on one registry.
type Metrics struct {
	registry *prometheus.Registry

	dispatchTotal     *prometheus.CounterVec   // by kind and state (claimed/unclaimed/error)
	checksTotal       *prometheus.CounterVec   // by kind
	cacheTotal        *prometheus.CounterVec   // by result (hit/miss)
	transportTotal    *prometheus.CounterVec   // by call (read/execute) and status
	transportDuration *prometheus.HistogramVec // by call
	txnTotal          *prometheus.CounterVec   // by operation and status
	txnDuration       *prometheus.HistogramVec // by operation
	commandLines      prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "resolutions_total",
			Help:      "Dispatch resolutions by entity kind and outcome",
		}, []string{"kind", "state"}),

		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "checks_total",
			Help:      "Applicability checks evaluated by entity kind",
		}, []string{"kind"}),

		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Transaction cache lookups by result",
		}, []string{"result"}),

		transportTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "calls_total",
			Help:      "Transport calls by type and status",
		}, []string{"call", "status"}),

		transportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "call_duration_seconds",
			Help:      "Transport call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"call"}),

		txnTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "operations_total",
			Help:      "Entity operations by type and status",
		}, []string{"operation", "status"}),

		txnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "operation_duration_seconds",
			Help:      "Entity operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		commandLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txn",
			Name:      "command_lines_total",
			Help:      "Rendered command lines sent to devices",
		}),
	}

	m.registry.MustRegister(
		m.dispatchTotal,
		m.checksTotal,
		m.cacheTotal,
		m.transportTotal,
		m.transportDuration,
		m.txnTotal,
		m.txnDuration,
		m.commandLines,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordDispatch records one resolution and the checks it evaluated.
func (m *Metrics) RecordDispatch(kind, state string, evaluated int) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(kind, state).Inc()
	m.checksTotal.WithLabelValues(kind).Add(float64(evaluated))
}

// RecordCache records a cache hit or miss.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// RecordTransport records one read or execute call.
func (m *Metrics) RecordTransport(call string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.transportTotal.WithLabelValues(call, status(err)).Inc()
	m.transportDuration.WithLabelValues(call).Observe(d.Seconds())
}

// RecordOperation records one entity operation of a transaction.
func (m *Metrics) RecordOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.txnTotal.WithLabelValues(operation, status(err)).Inc()
	m.txnDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCommands counts command lines sent to a device.
func (m *Metrics) RecordCommands(n int) {
	if m == nil {
		return
	}
	m.commandLines.Add(float64(n))
}

// WriteTextfile writes the current values in the text exposition format,
// for the node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
