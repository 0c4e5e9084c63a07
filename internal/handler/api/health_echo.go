package api

import (
	"context"
	"net/http"
	"time"

	"EconDash/internal/usecase"
	xhttp "EconDash/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

type HealthStatus struct {
	Ready    bool              `json:"ready"`
	Version  uint64            `json:"version"`
	BuildID  string            `json:"build_id,omitempty"`
	Source   string            `json:"source,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

// HealthEchoHandler reports liveness plus table readiness. It answers 503
// until the first table is published or while a dependency check fails.
type HealthEchoHandler struct {
	snapshots usecase.SnapshotSource
	checks    map[string]HealthCheck
}

func NewHealthEchoHandler(snapshots usecase.SnapshotSource, checks map[string]HealthCheck) *HealthEchoHandler {
	return &HealthEchoHandler{snapshots: snapshots, checks: checks}
}

func (h *HealthEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

func (h *HealthEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	st := HealthStatus{}
	if snap := h.snapshots.Snapshot(); snap != nil {
		st.Ready = true
		st.Version = snap.Version
		st.BuildID = snap.BuildID
		st.Source = snap.Source
	}
	healthy := st.Ready
	if len(h.checks) > 0 {
		st.Services = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			st.Services[name] = err.Error()
			healthy = false
			continue
		}
		st.Services[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, st)
	}
	return xhttp.SuccessResponse(c, st)
}
