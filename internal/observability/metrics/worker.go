package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	deliveryTotal    *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	deliveryInFlight prometheus.Gauge
	queueLag         *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	deliveryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "worker",
			Name:      "report_delivery_total",
			Help:      "Total delivered transcript reports by status.",
		},
		[]string{"service", "status"},
	)
	deliveryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carechat",
			Subsystem: "worker",
			Name:      "report_delivery_duration_seconds",
			Help:      "Report delivery duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	deliveryInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "carechat",
			Subsystem: "worker",
			Name:      "report_delivery_in_flight",
			Help:      "Number of in-flight report deliveries.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carechat",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between report enqueue and delivery start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(deliveryTotal, deliveryDuration, deliveryInFlight, queueLag)

	return &WorkerMetrics{
		registry:         registry,
		deliveryTotal:    deliveryTotal,
		deliveryDuration: deliveryDuration,
		deliveryInFlight: deliveryInFlight,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDelivery() {
	m.deliveryInFlight.Inc()
}

func (m *WorkerMetrics) FinishDelivery(service string, duration time.Duration, err error) {
	m.deliveryInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.deliveryTotal.WithLabelValues(service, status).Inc()
	m.deliveryDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
