package model

import (
	"errors"
	"fmt"
)

// Platform identifies an upstream music catalog.
type Platform string

const (
	PlatformNetEase Platform = "netease"
	PlatformKuGou   Platform = "kugou"
)

// ParsePlatform converts a wire string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformNetEase, PlatformKuGou:
		return Platform(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, s)
}

// ErrUnsupportedPlatform is returned for an unrecognized platform tag.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ErrNoCandidate is returned when no playable stream candidate exists for a
// track. Resolution never degrades to an empty URL silently.
var ErrNoCandidate = errors.New("no playable url available")

// TrackRef is a platform-tagged track identifier. The ID is opaque across
// platforms: a decimal number for NetEase, a file hash for KuGou. Callers
// must dispatch on Platform and never assume a shared scalar type.
type TrackRef struct {
	Platform Platform `json:"platform"`
	ID       string   `json:"id"`
}

// Key returns the task-map key for the track, unique across platforms.
func (r TrackRef) Key() string {
	return fmt.Sprintf("%s-%s", r.Platform, r.ID)
}

// Artist is a normalized performer record.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is a normalized album record.
type Album struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	PicURL string `json:"pic_url,omitempty"`
}

// Song is the normalized track record shared by both catalog adapters.
type Song struct {
	Ref        TrackRef `json:"ref"`
	Name       string   `json:"name"`
	PicURL     string   `json:"pic_url,omitempty"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int64    `json:"duration_ms"`
	Fee        bool     `json:"fee,omitempty"`
}

// SearchResult is a normalized page of search hits.
type SearchResult struct {
	Songs []Song `json:"songs"`
	Total int    `json:"total"`
}

// Suggestion is a discriminated union of suggestion shapes: NetEase returns
// track suggestions, KuGou returns plain text hints. Exactly one side is
// populated per platform; callers must not assume one shape.
type Suggestion struct {
	Songs []Song   `json:"songs,omitempty"`
	Hints []string `json:"hints,omitempty"`
}

// Candidate is one possible audio stream location for a track, produced
// fresh per resolution call and never cached. URL may be empty for
// platforms whose candidates require composition (see NodeURLs/Hash/Ext).
type Candidate struct {
	URL       string
	Quality   int64
	SizeBytes int64

	// KuGou candidates are not complete URLs: the playable location is
	// composed from a delivery node, the content hash and the extension.
	NodeURLs []string
	Hash     string
	Ext      string
}

// Resolved is the terminal output of URL resolution: safe to hand directly
// to a media element or a fetch call without further transformation.
type Resolved struct {
	URL     string `json:"url"`
	Proxied bool   `json:"proxied"`
}
