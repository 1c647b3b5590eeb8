// Package catalog adapts the upstream music catalog APIs to the shared data
// model. The two platforms expose structurally incompatible wire shapes and
// pagination schemes; both are translated here and never leak upward.
//
// Upstream payloads are untrusted and drift over time: every call validates
// the decoded payload against its declared shape before use. A mismatch is
// not an error: it is logged and the call returns the empty value of its
// result type, so one malformed field degrades a feature instead of
// crashing the caller.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/model"
)

// errSchema marks payloads that decoded but do not match the declared shape.
var errSchema = errors.New("unexpected payload shape")

// maxPayloadBytes bounds how much catalog JSON is read per response.
const maxPayloadBytes = 4 << 20

// Adapter is the capability set shared by both platform adapters.
type Adapter interface {
	Platform() model.Platform

	// Search returns a normalized page of tracks. Pagination is 1-based
	// page/pageSize regardless of the platform's native scheme; typ is the
	// platform-specific result-type filter.
	Search(ctx context.Context, keywords string, page, pageSize, typ int) (model.SearchResult, error)

	// Suggest returns platform-dependent suggestions: track records for
	// NetEase, plain text hints for KuGou.
	Suggest(ctx context.Context, keywords string) (model.Suggestion, error)

	// LyricText returns raw time-tagged lyric text, or empty string when
	// unavailable. Parsing the text is a caller concern.
	LyricText(ctx context.Context, ref model.TrackRef) (string, error)

	// Candidates returns playable stream candidates in descending quality
	// order as delivered by the upstream. The fee flag selects the quality
	// tier on NetEase and is ignored by KuGou.
	Candidates(ctx context.Context, ref model.TrackRef, fee bool) ([]model.Candidate, error)
}

// ByPlatform returns the adapter for the given platform tag.
func ByPlatform(adapters []Adapter, p model.Platform) (Adapter, error) {
	for _, a := range adapters {
		if a.Platform() == p {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedPlatform, p)
}

// restClient is the shared HTTP plumbing for catalog adapters.
type restClient struct {
	baseURL    string
	httpClient *http.Client
}

func newRESTClient(baseURL string, cfg *config.Config) *restClient {
	return &restClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second,
		},
	}
}

// getJSON performs a GET and decodes the response into out. Transport and
// HTTP status failures are returned as-is; a body that fails to decode is
// reported as errSchema so callers can degrade instead of failing.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("catalog request %s: unexpected status %d", path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return fmt.Errorf("read catalog response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", errSchema, err)
	}
	return nil
}
