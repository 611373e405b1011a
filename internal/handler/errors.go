package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// NewHTTPErrorHandler returns the central Echo error handler. Unknown routes
// get a plain-text 404; everything else (405 from the router, panics caught
// by Recover, handler errors) gets a JSON error body. CORS headers were
// already placed by the gate middleware, so browser callers can read these
// bodies. No error terminates the process.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed",
				"err", err.Error(),
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)
		}

		var werr error
		switch {
		case c.Request().Method == http.MethodHead:
			werr = c.NoContent(code)
		case code == http.StatusNotFound:
			werr = c.String(http.StatusNotFound, "Not Found")
		default:
			werr = c.JSON(code, map[string]string{"error": msg})
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr.Error())
		}
	}
}
