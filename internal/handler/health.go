package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"media-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information, including whether the target
// policy is open so operators can spot a misconfigured allow-list.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       string(h.version),
		"allow_all":     h.cfg.Proxy.EffectiveAllowAll(),
		"allowed_hosts": len(h.cfg.Proxy.AllowedHosts),
		"max_redirects": h.cfg.Proxy.MaxRedirects,
	})
}
