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

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ocrPagesTotal        *prometheus.CounterVec
	ocrPageConfidence    *prometheus.HistogramVec
	ocrDuration          *prometheus.HistogramVec
	chatCompletionsTotal *prometheus.CounterVec
	chatDuration         *prometheus.HistogramVec
	chatEvictionsTotal   *prometheus.CounterVec
	llmTokensTotal       *prometheus.CounterVec
	reportsTotal         *prometheus.CounterVec
	activeSessions       prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carechat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "carechat",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ocrPagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "ocr",
			Name:      "pages_total",
			Help:      "Total OCR page recognitions by status.",
		},
		[]string{"service", "status"},
	)
	ocrPageConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carechat",
			Subsystem: "ocr",
			Name:      "page_confidence",
			Help:      "Distribution of per-page OCR confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	ocrDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carechat",
			Subsystem: "ocr",
			Name:      "document_duration_seconds",
			Help:      "Full-document text extraction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	chatCompletionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "chat",
			Name:      "completions_total",
			Help:      "Total chat model completions by endpoint and status.",
		},
		[]string{"service", "endpoint", "status"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carechat",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Chat completion duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	chatEvictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "chat",
			Name:      "evicted_turns_total",
			Help:      "Total turns evicted from the model context window.",
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Approximate token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)
	reportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carechat",
			Subsystem: "report",
			Name:      "requests_total",
			Help:      "Total transcript report requests by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "carechat",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of live sessions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ocrPagesTotal,
		ocrPageConfidence,
		ocrDuration,
		chatCompletionsTotal,
		chatDuration,
		chatEvictionsTotal,
		llmTokensTotal,
		reportsTotal,
		activeSessions,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		ocrPagesTotal:        ocrPagesTotal,
		ocrPageConfidence:    ocrPageConfidence,
		ocrDuration:          ocrDuration,
		chatCompletionsTotal: chatCompletionsTotal,
		chatDuration:         chatDuration,
		chatEvictionsTotal:   chatEvictionsTotal,
		llmTokensTotal:       llmTokensTotal,
		reportsTotal:         reportsTotal,
		activeSessions:       activeSessions,
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

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/sessions/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/sessions/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return "/v1/sessions/{session_id}" + rest[i:]
	}
	return "/v1/sessions/{session_id}"
}

func (m *HTTPServerMetrics) RecordOCRPage(service string, confidence float64, failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	m.ocrPagesTotal.WithLabelValues(service, status).Inc()
	if !failed {
		m.ocrPageConfidence.WithLabelValues(service).Observe(confidence)
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service string, duration time.Duration) {
	m.ocrDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordChatCompletion(service, endpoint string, duration time.Duration, evicted int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.chatCompletionsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.chatDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if evicted > 0 {
		m.chatEvictionsTotal.WithLabelValues(service).Add(float64(evicted))
	}
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", model).Add(float64(completionTokens))
	}
}

func (m *HTTPServerMetrics) RecordReport(service, mode string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.reportsTotal.WithLabelValues(service, mode, status).Inc()
}

func (m *HTTPServerMetrics) SessionOpened() { m.activeSessions.Inc() }
func (m *HTTPServerMetrics) SessionClosed() { m.activeSessions.Dec() }

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

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
