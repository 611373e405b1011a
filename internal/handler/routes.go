package handler

import (
	"github.com/labstack/echo/v4"

	"portal-relay-go/internal/service"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Methods
// outside service.RelayMethods on the proxy route get a 405 from the router.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/", health.Info)
	e.GET("/health", health.Health)

	for _, m := range service.RelayMethods {
		e.Add(m, service.RelayPrefix, proxy.Handle)
		e.Add(m, service.RelayPrefix+"/*", proxy.Handle)
	}
	e.OPTIONS(service.RelayPrefix, proxy.Probe)
	e.OPTIONS(service.RelayPrefix+"/*", proxy.Probe)
}
