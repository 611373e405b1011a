// Package model defines shared types for the relay.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// RelayRequest represents a client request to be forwarded upstream.
// Body is an opaque byte stream; the relay never parses or reserializes it.
type RelayRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   io.ReadCloser
}

// RelayResponse represents the upstream response to be streamed back.
type RelayResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
