// Package routing decides whether a media URL must be rewritten to pass
// through the proxy gateway or can be fetched directly.
package routing

import (
	"net/url"
	"regexp"
	"strings"

	"media-proxy-go/internal/config"
)

// proxyMarker identifies URLs that already point at the gateway. Its
// presence short-circuits Wrap, which is what makes Wrap idempotent.
const proxyMarker = "/proxy?url="

// proxyPathPattern matches a /proxy path segment at the end of a base URL.
var proxyPathPattern = regexp.MustCompile(`(?i)/proxy(/|$)`)

// Rewriter rewrites third-party media URLs into proxied URLs. Cross-origin
// audio and cover art must be routed through the gateway to satisfy CORS,
// mixed-content and referrer constraints; same-origin and in-process URLs
// are left alone.
type Rewriter struct {
	enabled    bool
	baseURL    string
	pathPrefix string
	pageOrigin string
}

// NewMediaRewriter builds the rewriter used for audio stream URLs, which
// are always routed through the gateway when cross-origin.
func NewMediaRewriter(cfg config.RoutingConfig) *Rewriter {
	return newRewriter(cfg, true)
}

// NewImageRewriter builds the rewriter used for cover art, gated by the
// proxy_images flag: when disabled it passes every URL through unchanged.
func NewImageRewriter(cfg config.RoutingConfig) *Rewriter {
	return newRewriter(cfg, cfg.ProxyImages)
}

func newRewriter(cfg config.RoutingConfig, enabled bool) *Rewriter {
	return &Rewriter{
		enabled:    enabled,
		baseURL:    cfg.BaseURL,
		pathPrefix: cfg.PathPrefix,
		pageOrigin: strings.TrimRight(cfg.PageOrigin, "/"),
	}
}

// Wrap returns the URL to actually fetch for raw: either raw itself or a
// proxied URL with raw percent-encoded into the gateway's url parameter.
// Wrap is idempotent: an already-proxied URL is returned unchanged.
//
// Unparseable input is returned unchanged rather than rejected. The inputs
// here come out of catalog payloads that were already validated; treating
// a parse failure as fatal would turn a cosmetic rewrite into a hard
// failure, and the gateway's own allow-list still fails closed.
func (r *Rewriter) Wrap(raw string) string {
	if raw == "" {
		return ""
	}
	if !r.enabled {
		return raw
	}

	lower := strings.ToLower(raw)
	// In-process object references, root-relative paths and already-proxied
	// URLs are never wrapped; none of these require parsing.
	if strings.HasPrefix(lower, "blob:") || strings.HasPrefix(raw, "/") || strings.Contains(lower, proxyMarker) {
		return raw
	}
	// Only absolute http(s) URLs are candidates for proxying.
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if r.pageOrigin != "" && origin(u) == r.pageOrigin {
		return raw
	}

	if r.baseURL != "" {
		trimmed := strings.TrimRight(r.baseURL, "/")
		base := trimmed
		if !proxyPathPattern.MatchString(trimmed) {
			base = trimmed + "/proxy"
		}
		return base + "?url=" + url.QueryEscape(raw)
	}

	prefix := r.pathPrefix
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return r.pageOrigin + prefix + "/proxy?url=" + url.QueryEscape(raw)
}

// origin returns scheme://host for an absolute URL, matching how browsers
// compare origins (host includes the port when present).
func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
