// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meurenda"

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts served requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status.",
}, []string{"method", "route", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter.",
})

var SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "suspicious_requests_total",
	Help:      "Requests matching known probing patterns.",
})

// ─── Ledger ─────────────────────────────────────────────────────────────────

// KindUnknown labels record mutations whose kind is not known, such as deletes by id.
const KindUnknown = "unknown"

// RecordsWritten counts record mutations by kind and operation.
var RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "records_written_total",
	Help:      "Record creations and deletions by kind.",
}, []string{"kind", "op"})

var GoalsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "goals_written_total",
	Help:      "Goal creations, replacements and deletions.",
}, []string{"op"})

var EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "event_publish_failures_total",
	Help:      "Change events that could not be published to the broker.",
})

// ─── Dashboard ──────────────────────────────────────────────────────────────

// SnapshotLoads counts snapshot reads by source: cache or store.
var SnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "dashboard",
	Name:      "snapshot_loads_total",
	Help:      "Snapshot loads by source.",
}, []string{"source"})

var StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "dashboard",
	Name:      "stream_clients",
	Help:      "Currently connected SSE clients.",
})

// ─── Export worker ──────────────────────────────────────────────────────────

// ExportOps counts spreadsheet operations by op and result.
var ExportOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "export",
	Name:      "operations_total",
	Help:      "Spreadsheet export operations by op and result.",
}, []string{"op", "result"})
