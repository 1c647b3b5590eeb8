// Package model defines shared types for the media proxy.
package model

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// ErrMissingTarget is returned when a proxy request carries no target URL.
var ErrMissingTarget = errors.New("missing url parameter")

// ErrHostNotAllowed is returned when the target host is not allow-listed.
// The gateway never issues a network request for such targets.
var ErrHostNotAllowed = errors.New("host not allowed by proxy")

// ForwardedRequestHeaders are the only client request headers forwarded
// upstream. Range pass-through is what preserves seek behavior for media
// elements; the gateway itself has no Range logic.
var ForwardedRequestHeaders = []string{
	"Range",
	"User-Agent",
	"Referer",
	"Origin",
}

// ProxyRequest represents a client request for a third-party media resource.
type ProxyRequest struct {
	Ctx    context.Context
	Target string
	Header http.Header
}

// ProxyResponse represents the upstream response to be streamed back.
// The body is unread at construction time; ownership transfers to the caller.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ErrorBody is the JSON error envelope for locally detected proxy failures.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
