package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"portal-relay-go/internal/config"
	"portal-relay-go/internal/service"
)

// allowHeaders lists the request headers callers may send cross-origin,
// including the portal's LocalName auth-adjacent header.
const allowHeaders = "Content-Type, Authorization, LocalName"

// CORS returns an Echo middleware implementing the caller origin gate.
//
// The caller's Origin is admitted only on exact match against the configured
// allowlist; admitted origins are echoed back in Access-Control-Allow-Origin.
// A disallowed or absent Origin gets no Allow-Origin header at all, but the
// request itself still proceeds. Vary: Origin is emitted on every response,
// errors included, so caches never serve one caller's CORS decision to
// another. Browser preflights for the proxy route are answered here and
// never reach a handler; preflights for other paths fall through to the
// route table like any other request.
func CORS(cfg *config.Config) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(cfg.CORS.AllowedOrigins))
	for _, o := range cfg.CORS.AllowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}
	maxAge := strconv.Itoa(cfg.CORS.MaxAgeSeconds)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response().Header()

			res.Add(echo.HeaderVary, "Origin")

			origin := req.Header.Get(echo.HeaderOrigin)
			if origin != "" && allowed[origin] {
				res.Set(echo.HeaderAccessControlAllowOrigin, origin)
			}

			if req.Method == http.MethodOptions &&
				req.Header.Get(echo.HeaderAccessControlRequestMethod) != "" &&
				relayPath(req.URL.Path) {
				res.Set(echo.HeaderAccessControlAllowMethods, service.MethodList)
				res.Set(echo.HeaderAccessControlAllowHeaders, allowHeaders)
				res.Set(echo.HeaderAccessControlMaxAge, maxAge)
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}

// relayPath reports whether p is the proxy route or below it.
func relayPath(p string) bool {
	return p == service.RelayPrefix || strings.HasPrefix(p, service.RelayPrefix+"/")
}
