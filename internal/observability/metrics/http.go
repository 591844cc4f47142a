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

	"github.com/verilens/verilens/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	passDuration     *prometheus.HistogramVec
	verdictsTotal    *prometheus.CounterVec
	parseDefects     prometheus.Histogram
	pipelineFailures *prometheus.CounterVec
	sharesTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verilens",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verilens",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "verilens",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	passDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verilens",
			Subsystem: "analysis",
			Name:      "pass_duration_seconds",
			Help:      "Model pass duration in seconds by pass and media type.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"service", "pass", "media_type"},
	)
	verdictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verilens",
			Subsystem: "analysis",
			Name:      "verdicts_total",
			Help:      "Total completed analyses by verdict and media type.",
		},
		[]string{"service", "verdict", "media_type"},
	)
	parseDefects := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verilens",
			Subsystem: "analysis",
			Name:      "parse_defects",
			Help:      "Distribution of response parse defects per analysis.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verilens",
			Subsystem: "analysis",
			Name:      "pipeline_failures_total",
			Help:      "Total aborted pipeline runs by failing stage.",
		},
		[]string{"service", "stage"},
	)
	sharesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verilens",
			Subsystem: "analysis",
			Name:      "shares_total",
			Help:      "Total share link mints.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		passDuration,
		verdictsTotal,
		parseDefects,
		pipelineFailures,
		sharesTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		passDuration:     passDuration,
		verdictsTotal:    verdictsTotal,
		parseDefects:     parseDefects,
		pipelineFailures: pipelineFailures,
		sharesTotal:      sharesTotal,
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

// normalizePath keeps metric cardinality bounded for id-bearing routes.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/shared/"):
		return "/v1/shared/{share_id}"
	case strings.HasSuffix(path, "/share") && strings.HasPrefix(path, "/v1/analysis/"):
		return "/v1/analysis/{analysis_id}/share"
	case strings.HasPrefix(path, "/v1/analysis/") && !isStaticAnalysisPath(path):
		return "/v1/analysis/{analysis_id}"
	default:
		return path
	}
}

func isStaticAnalysisPath(path string) bool {
	switch path {
	case "/v1/analysis/upload", "/v1/analysis/url", "/v1/analysis/history",
		"/v1/analysis/stats", "/v1/analysis/export", "/v1/analysis/compare":
		return true
	}
	return false
}

const serviceAPI = "api"

func (m *HTTPServerMetrics) ObservePassDuration(pass string, mediaType domain.MediaType, d time.Duration) {
	m.passDuration.WithLabelValues(serviceAPI, pass, string(mediaType)).Observe(d.Seconds())
}

func (m *HTTPServerMetrics) RecordVerdict(verdict domain.Verdict, mediaType domain.MediaType) {
	m.verdictsTotal.WithLabelValues(serviceAPI, string(verdict), string(mediaType)).Inc()
}

func (m *HTTPServerMetrics) RecordParseDefects(n int) {
	m.parseDefects.Observe(float64(n))
}

func (m *HTTPServerMetrics) RecordPipelineFailure(stage string) {
	m.pipelineFailures.WithLabelValues(serviceAPI, stage).Inc()
}

func (m *HTTPServerMetrics) RecordShareMint() {
	m.sharesTotal.WithLabelValues(serviceAPI).Inc()
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
