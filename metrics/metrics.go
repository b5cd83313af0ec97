// metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps prometheus collectors for the decision engine.
type Metrics struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	fieldChecksTotal *prometheus.CounterVec
	compilesTotal    *prometheus.CounterVec
	snapshotLookups  *prometheus.CounterVec
	auditDropsTotal  prometheus.Counter

	decisionDuration *prometheus.HistogramVec
}

// Default histogram buckets for decision latency (in milliseconds)
var defaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100}

var engineMetrics *Metrics

// Init initializes the Prometheus metrics subsystem.
func Init(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total access decisions by effect",
			},
			[]string{"effect"},
		),

		fieldChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "field_checks_total",
				Help:      "Total field mask checks by action and outcome",
			},
			[]string{"action", "allowed"},
		),

		compilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total policy compilations by result",
			},
			[]string{"result"},
		),

		snapshotLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entitlement_lookups_total",
				Help:      "Total entitlement snapshot lookups by result",
			},
			[]string{"result"},
		),

		auditDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped on a full buffer",
			},
		),

		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_ms",
				Help:      "Decision evaluation latency in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"effect"},
		),
	}

	registry.MustRegister(
		m.decisionsTotal,
		m.fieldChecksTotal,
		m.compilesTotal,
		m.snapshotLookups,
		m.auditDropsTotal,
		m.decisionDuration,
	)

	engineMetrics = m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	if engineMetrics == nil {
		Init("arbiter")
	}
	return promhttp.HandlerFor(engineMetrics.registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one decision and its latency.
func RecordDecision(effect string, elapsed time.Duration) {
	if engineMetrics == nil {
		return
	}
	engineMetrics.decisionsTotal.WithLabelValues(effect).Inc()
	engineMetrics.decisionDuration.WithLabelValues(effect).Observe(float64(elapsed.Microseconds()) / 1000.0)
}

// RecordFieldCheck counts one field mask check.
func RecordFieldCheck(action string, allowed bool) {
	if engineMetrics == nil {
		return
	}
	outcome := "false"
	if allowed {
		outcome = "true"
	}
	engineMetrics.fieldChecksTotal.WithLabelValues(action, outcome).Inc()
}

// RecordCompile counts one compilation attempt by result
// (compiled, reused, rejected, failed).
func RecordCompile(result string) {
	if engineMetrics == nil {
		return
	}
	engineMetrics.compilesTotal.WithLabelValues(result).Inc()
}

// RecordSnapshotLookup counts one entitlement cache lookup by result
// (hit, miss, expired, bypass).
func RecordSnapshotLookup(result string) {
	if engineMetrics == nil {
		return
	}
	engineMetrics.snapshotLookups.WithLabelValues(result).Inc()
}
