package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"portal-relay-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the service descriptor and liveness endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
	started time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v, started: time.Now()}
}

// Health returns liveness information. It reports on the relay process only,
// never on upstream reachability.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	})
}

// Info returns the service descriptor for the root path.
func (h *HealthHandler) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":         "portal-relay",
		"version":         string(h.version),
		"usage":           usage,
		"allowed_origins": h.cfg.CORS.AllowedOrigins,
		"upstream":        h.cfg.Upstream.BaseURL,
	})
}
