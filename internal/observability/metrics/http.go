package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fitscore"

// Pipeline stages and results used as label values.
const (
	StageStorage  = "storage"
	StageAnalysis = "analysis"
	StagePersist  = "persist"
	StageResponse = "response"

	ResultOK       = "ok"
	ResultDegraded = "degraded"
	ResultFailed   = "failed"
	ResultTimeout  = "timeout"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pipelineOutcomes *prometheus.CounterVec
	uploadBytes      prometheus.Histogram
	reportScore      prometheus.Histogram
	breakerState     *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Upload pipeline stage outcomes.",
		},
		[]string{"stage", "result"},
	)
	uploadBytes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "payload_bytes",
			Help:      "Size of accepted upload payloads.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
	)
	reportScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "score",
			Help:      "Distribution of FitScores returned by successful analyses.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pipelineOutcomes,
		uploadBytes,
		reportScore,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		pipelineOutcomes: pipelineOutcomes,
		uploadBytes:      uploadBytes,
		reportScore:      reportScore,
		breakerState:     breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps user ids out of label values.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/history/"):
		return "/history/{userId}"
	case path == "/upload", path == "/_health", path == "/metrics", path == "/openapi.json":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) RecordStage(stage, result string) {
	m.pipelineOutcomes.WithLabelValues(stage, result).Inc()
}

func (m *HTTPServerMetrics) ObserveUpload(bytes int) {
	m.uploadBytes.Observe(float64(bytes))
}

func (m *HTTPServerMetrics) ObserveScore(score int) {
	m.reportScore.Observe(float64(score))
}

// SetBreakerState takes gobreaker's numeric state (closed 0, half-open 1,
// open 2).
func (m *HTTPServerMetrics) SetBreakerState(operation string, state int) {
	m.breakerState.WithLabelValues(operation).Set(float64(state))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
