package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Pivot metrics
	PivotRunsTotal   *prometheus.CounterVec
	PivotRunDuration *prometheus.HistogramVec
	PivotRowsTotal   *prometheus.CounterVec
	AdsFetched       *prometheus.CounterVec

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		PivotRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pivot_runs_total",
				Help: "Total number of pivot runs",
			},
			[]string{"view", "status"},
		),

		PivotRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pivot_run_duration_seconds",
				Help:    "Pivot run duration in seconds, fetch included",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"view"},
		),

		PivotRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pivot_rows_total",
				Help: "Total number of rows produced by pivot runs",
			},
			[]string{"view"},
		),

		AdsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ads_fetched_total",
				Help: "Total number of ad records received from the upstream API",
			},
			[]string{"platform"},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ads_cache_lookups_total",
				Help: "Ads cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Pivot run metrics
func (m *Metrics) RecordPivotRun(view, status string, rows int, duration time.Duration) {
	m.PivotRunsTotal.WithLabelValues(view, status).Inc()
	m.PivotRunDuration.WithLabelValues(view).Observe(duration.Seconds())
	m.PivotRowsTotal.WithLabelValues(view).Add(float64(rows))
}

// Upstream record counts
func (m *Metrics) RecordAdsFetched(platform string, count int) {
	if platform == "" {
		platform = "all"
	}
	m.AdsFetched.WithLabelValues(platform).Add(float64(count))
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

// Cache hit/miss/error
func (m *Metrics) RecordCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
