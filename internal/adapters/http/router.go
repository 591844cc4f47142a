package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/verilens/verilens/internal/core/ports"
	"github.com/verilens/verilens/internal/observability/metrics"
)

type Router struct {
	runner  ports.AnalysisRunner
	results ports.ResultReader
	metrics *metrics.HTTPServerMetrics
	cfg     Config
}

type Config struct {
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxConcurrent      int
	BackpressureWait   time.Duration
	MaxUploadBytes     int64
	HistoryDefaultSize int
}

func NewRouter(
	runner ports.AnalysisRunner,
	results ports.ResultReader,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg Config,
) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 2 * time.Second
	}
	return &Router{
		runner:  runner,
		results: results,
		metrics: serverMetrics,
		cfg:     cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/analysis/upload", rt.withUser(rt.analyzeUpload))
	mux.HandleFunc("POST /v1/analysis/url", rt.withUser(rt.analyzeURL))
	mux.HandleFunc("GET /v1/analysis/history", rt.withUser(rt.history))
	mux.HandleFunc("GET /v1/analysis/stats", rt.withUser(rt.stats))
	mux.HandleFunc("GET /v1/analysis/export", rt.withUser(rt.exportHistory))
	mux.HandleFunc("POST /v1/analysis/compare", rt.withUser(rt.compare))
	mux.HandleFunc("GET /v1/analysis/{id}", rt.withUser(rt.getAnalysis))
	mux.HandleFunc("DELETE /v1/analysis/{id}", rt.withUser(rt.deleteAnalysis))
	mux.HandleFunc("POST /v1/analysis/{id}/share", rt.withUser(rt.share))

	// Share links are the one unauthenticated read path.
	mux.HandleFunc("GET /v1/shared/{share_id}", rt.shared)

	var handler http.Handler = mux
	handler = openAPIValidator(handler)
	if rt.cfg.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.BackpressureWait)
	}
	if rt.cfg.RateLimitRPS > 0 {
		burst := rt.cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		handler = rateLimitMiddleware(handler, rate.NewLimiter(rate.Limit(rt.cfg.RateLimitRPS), burst))
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
