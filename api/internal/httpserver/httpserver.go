package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trust-engine/api/internal/handle"
)

// New builds the HTTP server. WriteTimeout is left to the per-request deadline.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// NewRouter mounts the decision endpoints plus /healthz and /metrics.
func NewRouter(h *handle.Handle, gatherer prometheus.Gatherer, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handle.CorrelationID)
	r.Use(handle.AccessLog(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/identity/verify", h.VerifyIdentity)
		r.Post("/financial/analyze", h.AnalyzeFinancial)
		r.Post("/moderation", h.Moderate)
		r.Post("/mediation", h.Mediate)
		r.Post("/descriptions", h.Describe)
	})
	return r
}
