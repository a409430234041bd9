package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/metrics"
	"github.com/ScienceCommunicationLab/publish-badge/internal/platform/middleware"
	"github.com/ScienceCommunicationLab/publish-badge/pkg/requestcontext"
)

// NewRouter wires the public endpoint behind the full middleware chain and
// exposes the operational endpoints (/healthz, /metrics) outside it so
// probes and scrapers need no Origin header.
//
// The verb check runs inside the chain, after the trusted-origin gate:
// requests from untrusted origins are refused with 403 no matter the method,
// matching the original gatekeeper ordering.
func NewRouter(h *Handler, trustedOrigin string, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(logger))
		r.Use(middleware.Latency(m))
		r.Use(middleware.TrustedOrigin(trustedOrigin, logger))
		r.Handle("/publish-badge", method(http.MethodPost, logger, h.handlePublish))
	})

	return r
}

// method enforces the HTTP verb inside the middleware chain.
func method(verb string, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != verb {
			logger.WarnContext(r.Context(), "method not allowed",
				"request_id", requestcontext.RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
