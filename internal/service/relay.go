// Package service implements the core relay forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"portal-relay-go/internal/client"
	"portal-relay-go/internal/config"
	"portal-relay-go/internal/model"
)

// ErrMissingTargetPath is returned when neither URL shape yields a target path.
var ErrMissingTargetPath = errors.New("no target path: use /proxy?path=/StudentPortalAPI/... or /proxy/StudentPortalAPI/...")

// ErrInvalidTarget is returned when the resolved upstream URL is not the
// permitted upstream origin and API prefix.
var ErrInvalidTarget = errors.New("target path is outside the permitted upstream API")

// RelayPrefix is the inbound path segment that selects the proxy handler.
const RelayPrefix = "/proxy"

// RelayMethods are the HTTP methods accepted on the relay route.
var RelayMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
}

// MethodList is RelayMethods plus OPTIONS, formatted for the Allow and
// Access-Control-Allow-Methods headers.
var MethodList = strings.Join(RelayMethods, ", ") + ", " + http.MethodOptions

// targetPathParam is the query parameter naming an explicit target path.
const targetPathParam = "path"

// RelayService handles the forwarding logic for relay requests.
type RelayService struct {
	client  *client.PortalClient
	cfg     *config.Config
	logger  *slog.Logger
	baseURL *url.URL
}

// NewRelayService creates a RelayService.
func NewRelayService(c *client.PortalClient, cfg *config.Config, logger *slog.Logger) (*RelayService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	return &RelayService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "relay_service"),
		baseURL: u,
	}, nil
}

// ResolveTargetPath determines the upstream path from the inbound request.
// A "path" query parameter takes precedence; otherwise the remainder of the
// inbound path after the /proxy prefix is used. The result always starts
// with a slash.
func ResolveTargetPath(reqPath string, query url.Values) (string, error) {
	target := query.Get(targetPathParam)
	if target == "" && strings.HasPrefix(reqPath, RelayPrefix+"/") {
		target = strings.TrimPrefix(reqPath, RelayPrefix)
	}
	if target == "" {
		return "", ErrMissingTargetPath
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return target, nil
}

// Forward sends a RelayRequest to the upstream portal API and returns the
// response with sanitized headers. The caller is responsible for closing the
// response body. Exactly one upstream call is made per invocation.
func (s *RelayService) Forward(rr *model.RelayRequest) (*model.RelayResponse, error) {
	target, err := ResolveTargetPath(rr.Path, rr.Query)
	if err != nil {
		return nil, err
	}

	upstreamURL, err := s.buildUpstreamURL(target, rr.Query)
	if err != nil {
		return nil, err
	}

	header := s.spoofRequestHeaders(rr.Header)

	// GET/HEAD carry no body; everything else is passed through as opaque
	// bytes. Some payloads are pre-encrypted at the application layer, so the
	// body must never be parsed or reserialized.
	body := rr.Body
	if rr.Method == http.MethodGet || rr.Method == http.MethodHead {
		body = nil
	}

	s.logger.Debug("forwarding request",
		"method", rr.Method,
		"target", target,
	)

	resp, err := s.client.DoStream(rr.Ctx, rr.Method, upstreamURL, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = sanitizeResponseHeaders(resp.Header)
	return resp, nil
}

// buildUpstreamURL combines the upstream origin with the resolved target path
// and the forwarded query, then re-validates that the result still points at
// the permitted origin and API prefix. The origin check is an exact
// scheme+host+port comparison on the parsed URL, never a string-prefix check.
func (s *RelayService) buildUpstreamURL(target string, query url.Values) (string, error) {
	// Dot segments would let the upstream resolve the path outside the
	// permitted prefix after the check here passed. Only targets that
	// survive normalization verbatim are accepted; %2e%2e forms arrive
	// already decoded and are caught the same way.
	clean := path.Clean(target)
	if strings.HasSuffix(target, "/") && target != "/" {
		clean += "/"
	}
	if clean != target {
		return "", ErrInvalidTarget
	}

	prefix := s.cfg.Upstream.APIPrefix
	if target != prefix && !strings.HasPrefix(target, prefix+"/") {
		return "", ErrInvalidTarget
	}

	u := *s.baseURL
	u.Path = target
	u.RawQuery = forwardQuery(query).Encode()

	// Re-parse the assembled URL; a crafted target like //evil.example/x must
	// not be able to shift the authority.
	final, err := url.Parse(u.String())
	if err != nil {
		return "", ErrInvalidTarget
	}
	if originOf(final) != originOf(s.baseURL) {
		return "", ErrInvalidTarget
	}

	return u.String(), nil
}

// forwardQuery copies the inbound query minus the relay's own path parameter.
func forwardQuery(query url.Values) url.Values {
	q := make(url.Values)
	for k, vals := range query {
		if k == targetPathParam {
			continue
		}
		q[k] = vals
	}
	return q
}

// originOf returns the scheme://host:port origin of u with default ports
// made explicit, so that https://a and https://a:443 compare equal.
func originOf(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		}
	}
	return u.Scheme + "://" + strings.ToLower(u.Hostname()) + ":" + port
}

// UpstreamOrigin returns the configured upstream origin as a string,
// without trailing slash.
func (s *RelayService) UpstreamOrigin() string {
	return strings.TrimSuffix(s.baseURL.String(), "/")
}
