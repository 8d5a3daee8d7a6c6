// Package metrics holds the Prometheus collectors for the log, the decoder
// and the inspection server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all collectors. A nil *Metrics records nothing, so callers
// that run without metrics can pass nil.
type Metrics struct {
	// Log append metrics
	recordsInsertedTotal *prometheus.CounterVec
	bytesInsertedTotal   prometheus.Counter
	insertDuration       prometheus.Histogram

	// Reader side metrics
	recordsDecodedTotal *prometheus.CounterVec
	decodeErrorsTotal   *prometheus.CounterVec
	redoTotal           *prometheus.CounterVec

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		recordsInsertedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshwal_records_inserted_total",
				Help: "Total number of records appended to the log",
			},
			[]string{"rmgr"},
		),

		bytesInsertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "refreshwal_bytes_inserted_total",
				Help: "Total number of record data bytes appended to the log",
			},
		),

		insertDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "refreshwal_insert_duration_seconds",
				Help:    "Log append duration in seconds, including fsync",
				Buckets: prometheus.DefBuckets,
			},
		),

		recordsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshwal_records_decoded_total",
				Help: "Total number of change events produced by logical decoding",
			},
			[]string{"kind"},
		),

		decodeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshwal_decode_errors_total",
				Help: "Total number of records that failed to decode",
			},
			[]string{"rmgr"},
		),

		redoTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshwal_redo_total",
				Help: "Total number of redo calls",
			},
			[]string{"rmgr", "status"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refreshwal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refreshwal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "refreshwal_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),
	}
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// RecordInsert records one appended record
func (m *Metrics) RecordInsert(rmgr string, bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.recordsInsertedTotal.WithLabelValues(rmgr).Inc()
	m.bytesInsertedTotal.Add(float64(bytes))
	m.insertDuration.Observe(duration.Seconds())
}

// RecordDecoded records one change event handed to a consumer
func (m *Metrics) RecordDecoded(kind string) {
	if m == nil {
		return
	}
	m.recordsDecodedTotal.WithLabelValues(kind).Inc()
}

// RecordDecodeError records a record whose bytes could not be decoded
func (m *Metrics) RecordDecodeError(rmgr string) {
	if m == nil {
		return
	}
	m.decodeErrorsTotal.WithLabelValues(rmgr).Inc()
}

// RecordRedo records a redo call
func (m *Metrics) RecordRedo(rmgr string, success bool) {
	if m == nil {
		return
	}
	m.redoTotal.WithLabelValues(rmgr, status(success)).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Capture the status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
