package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
)

const readinessTimeout = 2 * time.Second

// ModeReporter exposes the active revocation backend.
type ModeReporter interface {
	Mode() domain.BackendMode
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

// HealthOption customises a HealthHandler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck adds a named dependency probe to /readyz.
func WithReadinessCheck(name string, check func(context.Context) error) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, readinessCheck{name: name, check: check})
		}
	}
}

// WithRevocationMode reports the revocation backend mode on /readyz.
func WithRevocationMode(reporter ModeReporter) HealthOption {
	return func(h *HealthHandler) {
		h.revocation = reporter
	}
}

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt  time.Time
	checks     []readinessCheck
	revocation ModeReporter
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{startedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status godoc
// @Summary Service health check
// @Description Returns the status and start time of the service.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness godoc
// @Summary Service readiness check
// @Description Runs dependency probes. A degraded revocation store is reported but still ready.
// @Tags Health
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := ReadinessResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	if h.revocation != nil {
		resp.RevocationStore = string(h.revocation.Mode())
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	for _, rc := range h.checks {
		if err := rc.check(ctx); err != nil {
			resp.Checks[rc.name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[rc.name] = "ok"
	}

	c.JSON(status, resp)
}
