// Package client provides the upstream HTTP client for third-party media hosts.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/metrics"
	"media-proxy-go/internal/model"
	"media-proxy-go/internal/policy"
)

// MediaClient fetches third-party media resources as streams.
type MediaClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewMediaClient creates a MediaClient with connection pooling and timeouts.
// Redirect following is bounded by proxy.max_redirects, and every redirect
// hop is re-checked against the allow-list: following a redirect is itself
// a fetch, so a disallowed host is never contacted even mid-chain.
// The metrics parameter is optional; pass nil to disable upstream metrics.
func NewMediaClient(cfg *config.Config, pol *policy.Policy, logger *slog.Logger, m *metrics.Metrics) *MediaClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Proxy.IdleConnections,
		MaxIdleConnsPerHost: cfg.Proxy.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	maxRedirects := cfg.Proxy.MaxRedirects

	return &MediaClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Proxy.TimeoutSeconds) * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				if !pol.Allowed(req.URL.String()) {
					return fmt.Errorf("redirect to %q: %w", req.URL.Hostname(), model.ErrHostNotAllowed)
				}
				return nil
			},
		},
		logger:  logger.With("component", "media_client"),
		metrics: m,
	}
}

// Get issues a streaming GET against the target URL and returns the raw
// response. The body is unread; the caller is responsible for closing it.
// The provided context controls the lifetime of the upstream request: when
// it is canceled (e.g. the browser disconnects), the fetch is aborted.
func (c *MediaClient) Get(ctx context.Context, target string, header http.Header) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request", "host", req.URL.Hostname())

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	host := metrics.NormalizeHost(req.URL.Host)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(host).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(host).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(host, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
