package handler

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds the dependency pings of one readiness probe.
const readinessTimeout = 5 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name    string
	checker HealthChecker
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for any dependency that is not configured.
func NewHealthHandler(db, jobFeed, cache HealthChecker) *HealthHandler {
	return &HealthHandler{
		deps: []dependency{
			{name: "postgres", checker: db},
			{name: "jobfeed", checker: jobFeed},
			{name: "redis", checker: cache},
		},
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe endpoint.
// It returns 200 only if every configured dependency answers a ping.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true

	for _, dep := range h.deps {
		if dep.checker == nil {
			checks[dep.name] = "not configured"
			continue
		}
		if err := dep.checker.Ping(ctx); err != nil {
			checks[dep.name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[dep.name] = "ok"
	}

	response := HealthResponse{Status: "ok", Checks: checks}
	statusCode := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, response)
}
