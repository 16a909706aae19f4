package httpadapter

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kirillkom/fitscore/internal/config"
	"github.com/kirillkom/fitscore/internal/core/ports"
	"github.com/kirillkom/fitscore/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg      config.Config
	uploader ports.ReportUploader
	history  ports.ReportHistory
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	uploader ports.ReportUploader,
	history ports.ReportHistory,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		uploader: uploader,
		history:  history,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	if rt.cfg.APIRateLimitRPS > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
	}

	r.Get("/_health", rt.healthz)
	r.Get("/openapi.json", rt.openAPI)
	r.Get("/history/{userId}", rt.reportHistory)
	r.With(func(next http.Handler) http.Handler {
		return backpressureMiddleware(next, rt.cfg.MaxConcurrentUploads, rt.cfg.UploadQueueWait)
	}).Post("/upload", rt.uploadReport)

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	if dir := rt.cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		}
	}

	if rt.metrics == nil {
		return r
	}
	return rt.metrics.Middleware(serviceName, r)
}

func (rt *Router) allowedOrigins() []string {
	if len(rt.cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return rt.cfg.CORSAllowedOrigins
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) recordStage(stage, result string) {
	if rt.metrics != nil {
		rt.metrics.RecordStage(stage, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody(message))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
