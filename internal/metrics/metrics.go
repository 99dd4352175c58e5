// Package metrics holds the prometheus collectors of the catalog service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var flowBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// pullingDuration tracks archive downloads.
	pullingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_pulling_flow_duration_seconds",
		Help:    "Time taken to download a catalog archive",
		Buckets: flowBuckets,
	})

	// parsingDuration tracks archive parsing and validation.
	parsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_parsing_flow_duration_seconds",
		Help:    "Time taken to parse and validate a catalog archive",
		Buckets: flowBuckets,
	})

	// savingDuration tracks entity persistence.
	savingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_saving_flow_duration_seconds",
		Help:    "Time taken to persist catalog entities",
		Buckets: flowBuckets,
	})

	// publishingDuration tracks a whole publish task.
	publishingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_publishing_flow_duration_seconds",
		Help:    "Time taken to run a publish task end to end",
		Buckets: flowBuckets,
	}, []string{"status"})

	// composingDuration tracks diff and entity listing responses.
	composingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_composing_flow_duration_seconds",
		Help:    "Time taken to compose entity and diff responses",
		Buckets: flowBuckets,
	}, []string{"kind"})

	// criticalLatency tracks calls to services a publish depends on.
	criticalLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "critical_services_latency_flow_duration_seconds",
		Help:    "Latency of calls to critical services",
		Buckets: flowBuckets,
	}, []string{"service"})

	// clientRequests counts outbound requests by service and result code.
	clientRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_client_requests_total",
		Help: "Total number of outbound HTTP requests by service and code",
	}, []string{"service", "code"})

	// dbHealthy is 1 while the database answers pings.
	dbHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_connection_healthy",
		Help: "Whether the database connection is healthy (1) or not (0)",
	})

	// tasksTotal counts finished publish tasks.
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_tasks_total",
		Help: "Total number of publish tasks by final status",
	}, []string{"status"})

	// resolverHits counts active catalog lookups served from cache.
	resolverHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_cache_hits_total",
		Help: "Total number of active catalog lookups served from cache",
	})

	// resolverMisses counts active catalog lookups that hit the database.
	resolverMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_cache_misses_total",
		Help: "Total number of active catalog lookups loaded from the database",
	})

	// appVersion exposes the running build.
	appVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_version",
		Help: "Version of the running service",
	}, []string{"version"})

	// requestDuration tracks inbound API requests.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_duration_seconds",
		Help:    "Time taken to serve API requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route", "code"})
)

// Recorder provides methods to record service metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (m *Recorder) RecordPulling(d time.Duration) {
	pullingDuration.Observe(d.Seconds())
}

func (m *Recorder) RecordParsing(d time.Duration) {
	parsingDuration.Observe(d.Seconds())
}

func (m *Recorder) RecordSaving(d time.Duration) {
	savingDuration.Observe(d.Seconds())
}

// RecordPublishing records a finished task and its duration.
func (m *Recorder) RecordPublishing(status string, d time.Duration) {
	publishingDuration.WithLabelValues(status).Observe(d.Seconds())
	tasksTotal.WithLabelValues(status).Inc()
}

func (m *Recorder) RecordComposing(kind string, d time.Duration) {
	composingDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordCriticalCall records one call to a critical service. code is the
// HTTP status as text, or an error class like "timeout".
func (m *Recorder) RecordCriticalCall(service, code string, d time.Duration) {
	criticalLatency.WithLabelValues(service).Observe(d.Seconds())
	clientRequests.WithLabelValues(service, code).Inc()
}

// RecordClientRequest counts a non-critical outbound request.
func (m *Recorder) RecordClientRequest(service, code string) {
	clientRequests.WithLabelValues(service, code).Inc()
}

func (m *Recorder) SetDBHealthy(healthy bool) {
	if healthy {
		dbHealthy.Set(1)
	} else {
		dbHealthy.Set(0)
	}
}

func (m *Recorder) RecordResolverHit() {
	resolverHits.Inc()
}

func (m *Recorder) RecordResolverMiss() {
	resolverMisses.Inc()
}

// SetVersion publishes the running version.
func (m *Recorder) SetVersion(version string) {
	appVersion.Reset()
	appVersion.WithLabelValues(version).Set(1)
}

func (m *Recorder) RecordRequest(method, route, code string, d time.Duration) {
	requestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}
