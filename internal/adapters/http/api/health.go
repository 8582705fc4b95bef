package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/tiergate/pkg/metrics"
)

// ReadinessChecker reports whether the backing store is reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles health and readiness requests.
type HealthHandler struct {
	readiness ReadinessChecker
	metrics   http.Handler
}

// NewHealthHandler creates a new health handler. A nil checker is always ready.
func NewHealthHandler(readiness ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		readiness: readiness,
		metrics:   promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz by serving the metrics registry.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady handles GET /readyz.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness.Ready(r.Context()); err != nil {
			writeError(w, WrapKind("api.ready", ErrUnavailable, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
