// Package resolver turns a track reference into one final playable URL.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"media-proxy-go/internal/catalog"
	"media-proxy-go/internal/model"
	"media-proxy-go/internal/routing"
)

// Resolver dispatches to the right catalog adapter, picks a stream
// candidate and routes the resulting URL through the proxy when needed.
type Resolver struct {
	netease  catalog.Adapter
	kugou    catalog.Adapter
	rewriter *routing.Rewriter
	logger   *slog.Logger
}

// New creates a Resolver over the two platform adapters.
func New(netease, kugou catalog.Adapter, rw *routing.Rewriter, logger *slog.Logger) *Resolver {
	return &Resolver{
		netease:  netease,
		kugou:    kugou,
		rewriter: rw,
		logger:   logger.With("component", "resolver"),
	}
}

// Resolve produces the playable URL for a track. The first candidate wins:
// adapters return candidates pre-ordered by descending quality, so no
// re-ranking happens here. The returned URL has already been through the
// routing decision and is directly usable by a media element.
//
// Returns model.ErrNoCandidate when no usable stream exists and
// model.ErrUnsupportedPlatform for an unrecognized platform tag.
func (r *Resolver) Resolve(ctx context.Context, ref model.TrackRef) (model.Resolved, error) {
	return r.ResolveFee(ctx, ref, false)
}

// ResolveFee is Resolve with an explicit fee/tier flag for platforms that
// gate quality tiers behind it.
func (r *Resolver) ResolveFee(ctx context.Context, ref model.TrackRef, fee bool) (model.Resolved, error) {
	var raw string
	var err error

	switch ref.Platform {
	case model.PlatformNetEase:
		raw, err = r.resolveNetEase(ctx, ref, fee)
	case model.PlatformKuGou:
		raw, err = r.resolveKuGou(ctx, ref)
	default:
		return model.Resolved{}, fmt.Errorf("%w: %q", model.ErrUnsupportedPlatform, ref.Platform)
	}
	if err != nil {
		return model.Resolved{}, err
	}

	wrapped := r.rewriter.Wrap(raw)
	r.logger.Debug("resolved track",
		"platform", ref.Platform,
		"id", ref.ID,
		"proxied", wrapped != raw,
	)
	return model.Resolved{URL: wrapped, Proxied: wrapped != raw}, nil
}

func (r *Resolver) resolveNetEase(ctx context.Context, ref model.TrackRef, fee bool) (string, error) {
	cands, err := r.netease.Candidates(ctx, ref, fee)
	if err != nil {
		return "", err
	}
	if len(cands) == 0 || cands[0].URL == "" {
		return "", fmt.Errorf("track %s: %w", ref.Key(), model.ErrNoCandidate)
	}
	return cands[0].URL, nil
}

// resolveKuGou composes the playable URL: KuGou candidates carry a
// delivery-node list plus content hash and extension instead of a ready
// URL. The first non-empty node hosts the file at <node>/<hash>.<ext>.
func (r *Resolver) resolveKuGou(ctx context.Context, ref model.TrackRef) (string, error) {
	cands, err := r.kugou.Candidates(ctx, ref, false)
	if err != nil {
		return "", err
	}
	if len(cands) == 0 {
		return "", fmt.Errorf("track %s: %w", ref.Key(), model.ErrNoCandidate)
	}

	best := cands[0]
	node := firstNonEmpty(best.NodeURLs)
	if node == "" {
		return "", fmt.Errorf("track %s: no delivery node: %w", ref.Key(), model.ErrNoCandidate)
	}
	u := strings.TrimRight(node, "/") + "/" + best.Hash
	if best.Ext != "" {
		u += "." + best.Ext
	}
	return u, nil
}

func firstNonEmpty(ss []string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
