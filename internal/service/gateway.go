// Package service implements the core gateway forwarding logic.
package service

import (
	"fmt"
	"log/slog"
	"net/http"

	"media-proxy-go/internal/client"
	"media-proxy-go/internal/config"
	"media-proxy-go/internal/model"
	"media-proxy-go/internal/policy"
)

// corsHeader is the one upstream response header the gateway overrides.
const corsHeader = "Access-Control-Allow-Origin"

// Gateway handles the forwarding logic for media proxy requests.
type Gateway struct {
	client *client.MediaClient
	policy *policy.Policy
	cfg    *config.Config
	logger *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(c *client.MediaClient, pol *policy.Policy, cfg *config.Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: c,
		policy: pol,
		cfg:    cfg,
		logger: logger.With("component", "gateway"),
	}
}

// Forward fetches the target media resource and returns the response with
// its body unread, ready to be streamed to the caller. The caller is
// responsible for closing the body.
//
// Validation and the allow-list check happen strictly before any network
// I/O; a disallowed host is never contacted, not even to discover a
// redirect target. Any upstream HTTP status passes through as a successful
// proxied response; only transport-level failure is a gateway error.
func (g *Gateway) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if pr.Target == "" {
		return nil, model.ErrMissingTarget
	}
	if !g.policy.Allowed(pr.Target) {
		return nil, fmt.Errorf("target %q: %w", pr.Target, model.ErrHostNotAllowed)
	}

	g.logger.Debug("forwarding media request", "target", pr.Target)

	resp, err := g.client.Get(pr.Ctx, pr.Target, filterRequestHeaders(pr.Header))
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	// Upstream headers pass through unmodified except the CORS origin,
	// which is always replaced by the configured value.
	resp.Header.Del(corsHeader)
	resp.Header.Set(corsHeader, g.cfg.Proxy.CORSOrigin)

	return resp, nil
}

// filterRequestHeaders keeps only the forwarded header subset. Range
// pass-through preserves partial-content and seek behavior downstream.
func filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	if src == nil {
		return dst
	}
	for _, key := range model.ForwardedRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}
