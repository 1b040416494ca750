package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	documentsTotal  *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
	strategiesTotal prometheus.Counter
	batchesTotal    *prometheus.CounterVec
	archiveFailures prometheus.Counter
	ratingsTotal    prometheus.Counter
	commentsTotal   prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratboard_documents_total",
			Help: "Total number of report documents by ingestion outcome",
		},
		[]string{"outcome"},
	)
	r.ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratboard_ingest_duration_seconds",
			Help:    "Time to normalize and store one report document",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	r.strategiesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratboard_strategies_created_total",
			Help: "Total number of strategies created",
		},
	)
	r.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratboard_report_batches_total",
			Help: "Total number of batch report submissions",
		},
		[]string{"status"},
	)
	r.archiveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratboard_archive_failures_total",
			Help: "Total number of raw documents that could not be archived",
		},
	)
	r.ratingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratboard_ratings_total",
			Help: "Total number of ratings recorded",
		},
	)
	r.commentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratboard_comments_total",
			Help: "Total number of comments posted",
		},
	)

	reg.MustRegister(r.documentsTotal)
	reg.MustRegister(r.ingestDuration)
	reg.MustRegister(r.strategiesTotal)
	reg.MustRegister(r.batchesTotal)
	reg.MustRegister(r.archiveFailures)
	reg.MustRegister(r.ratingsTotal)
	reg.MustRegister(r.commentsTotal)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// Document ingestion outcomes.
const (
	OutcomeIngested = "ingested"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// RecordDocument records the outcome of one uploaded document.
func (r *Registry) RecordDocument(outcome string) {
	r.documentsTotal.WithLabelValues(outcome).Inc()
}

// RecordIngest records a stored document and how long it took.
func (r *Registry) RecordIngest(duration float64) {
	r.documentsTotal.WithLabelValues(OutcomeIngested).Inc()
	r.ingestDuration.Observe(duration)
}

// RecordStrategyCreated counts a new strategy.
func (r *Registry) RecordStrategyCreated() {
	r.strategiesTotal.Inc()
}

// RecordBatch records a batch submission.
func (r *Registry) RecordBatch(status string) {
	r.batchesTotal.WithLabelValues(status).Inc()
}

// RecordArchiveFailure counts a raw document that was stored but not archived.
func (r *Registry) RecordArchiveFailure() {
	r.archiveFailures.Inc()
}

// RecordRating counts a rating write.
func (r *Registry) RecordRating() {
	r.ratingsTotal.Inc()
}

// RecordComment counts a posted comment.
func (r *Registry) RecordComment() {
	r.commentsTotal.Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
