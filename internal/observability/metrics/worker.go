package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	eventLag    *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "report_events_total",
			Help:      "Total consumed report events by outcome status.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"status"},
	)
	scores := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "report_score",
			Help:      "FitScore distribution of recorded reports.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"status"},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between report recording and event consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	registry.MustRegister(eventsTotal, scores, eventLag)

	return &WorkerMetrics{
		registry:    registry,
		eventsTotal: eventsTotal,
		scores:      scores,
		eventLag:    eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveReport(status string, score int) {
	if status == "" {
		status = "unknown"
	}
	m.eventsTotal.WithLabelValues(status).Inc()
	m.scores.WithLabelValues(status).Observe(float64(score))
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
