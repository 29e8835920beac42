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

	askDecisionsTotal  *prometheus.CounterVec
	askModeTotal       *prometheus.CounterVec
	askRetrievedChunks *prometheus.HistogramVec
	askContextChars    *prometheus.HistogramVec
	askStitchedTotal   *prometheus.CounterVec
	askDuration        *prometheus.HistogramVec
	generatorCalls     *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gpa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gpa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askDecisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "decisions_total",
			Help:      "Total answered questions by grounding decision.",
		},
		[]string{"service", "decision"},
	)
	askModeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "mode_requests_total",
			Help:      "Total answered questions by response mode.",
		},
		[]string{"service", "mode"},
	)
	askRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	askContextChars := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "context_chars",
			Help:      "Characters of document context assembled per answered question.",
			Buckets:   []float64{0, 200, 400, 800, 1400, 2000, 4000, 6000, 10000},
		},
		[]string{"service"},
	)
	askStitchedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "stitched_chunks_total",
			Help:      "Total neighbour chunks stitched into answer contexts.",
		},
		[]string{"service"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Ask pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	generatorCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpa",
			Subsystem: "ask",
			Name:      "generator_calls_total",
			Help:      "Total generator invocations by decision outcome.",
		},
		[]string{"service", "decision"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpa",
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Total accepted document uploads by truncation outcome.",
		},
		[]string{"service", "truncated"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askDecisionsTotal,
		askModeTotal,
		askRetrievedChunks,
		askContextChars,
		askStitchedTotal,
		askDuration,
		generatorCalls,
		uploadsTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		askDecisionsTotal:  askDecisionsTotal,
		askModeTotal:       askModeTotal,
		askRetrievedChunks: askRetrievedChunks,
		askContextChars:    askContextChars,
		askStitchedTotal:   askStitchedTotal,
		askDuration:        askDuration,
		generatorCalls:     generatorCalls,
		uploadsTotal:       uploadsTotal,
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
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAskObservation(service, decision, mode string, chunks, stitched, contextChars int, duration time.Duration) {
	if decision == "" {
		decision = "unknown"
	}
	if mode == "" {
		mode = "unknown"
	}
	m.askDecisionsTotal.WithLabelValues(service, decision).Inc()
	m.askModeTotal.WithLabelValues(service, mode).Inc()
	m.askRetrievedChunks.WithLabelValues(service).Observe(float64(chunks))
	m.askContextChars.WithLabelValues(service).Observe(float64(contextChars))
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	if stitched > 0 {
		m.askStitchedTotal.WithLabelValues(service).Add(float64(stitched))
	}
	// refusal, blocked and mismatch outcomes never invoke a generator
	if decision == "grounded" || decision == "ungrounded_general" {
		m.generatorCalls.WithLabelValues(service, decision).Inc()
	}
}

func (m *HTTPServerMetrics) RecordDocumentUpload(service string, truncated bool) {
	m.uploadsTotal.WithLabelValues(service, strconv.FormatBool(truncated)).Inc()
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

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
