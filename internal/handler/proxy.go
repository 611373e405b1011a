package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"portal-relay-go/internal/model"
	"portal-relay-go/internal/service"
)

// queryPattern matches query strings in URLs embedded in error messages.
// Forwarded queries are caller-controlled and may carry tokens.
var queryPattern = regexp.MustCompile(`\?[^\s"]+`)

// usage lists the two accepted request shapes, echoed in 400 responses
// and the service descriptor.
var usage = []string{
	"GET /proxy?path=/StudentPortalAPI/<endpoint>",
	"GET /proxy/StudentPortalAPI/<endpoint>",
}

// ProxyHandler forwards API requests to the upstream portal.
type ProxyHandler struct {
	service *service.RelayService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.RelayService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle relays the request to the upstream portal and streams the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	rr := &model.RelayRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.Query(),
		Header: req.Header,
		Body:   req.Body,
	}

	resp, err := h.service.Forward(rr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Copy sanitized upstream headers. CORS headers were already placed by
	// the gate middleware and the sanitizer guarantees the upstream cannot
	// override them.
	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect, network error), the HTTP status
	// code has already been sent, so the client receives a truncated
	// response with the original status. This is an inherent trade-off of
	// streaming proxies — we log the error for observability.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", sanitizeError(err),
			"path", req.URL.Path,
		)
	}

	return nil
}

// Probe answers a plain (non-preflight) OPTIONS request on the proxy route as
// a capability probe. Browser preflights never reach here; the CORS gate
// middleware short-circuits them.
func (h *ProxyHandler) Probe(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderAllow, service.MethodList)
	return c.NoContent(http.StatusNoContent)
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("relay error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, service.ErrMissingTargetPath) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "no target path given",
			"usage": usage,
		})
	}

	if errors.Is(err, service.ErrInvalidTarget) {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "target is outside the permitted upstream API",
		})
	}

	// Everything else is an upstream failure: timeout, DNS failure,
	// connection refused, or a client that disconnected mid-flight. One
	// attempt was made and none is retried.
	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "upstream request failed",
	})
}

// sanitizeError redacts query strings from error messages that may contain
// forwarded URLs.
func sanitizeError(err error) string {
	return queryPattern.ReplaceAllString(err.Error(), "?[REDACTED]")
}
