package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/model"
)

// NetEase adapts the NetEase Cloud Music API. Its track IDs are numeric,
// its pagination is limit/offset, and its stream candidates carry complete
// URLs.
type NetEase struct {
	client *restClient
	logger *slog.Logger
}

// NewNetEase creates the NetEase catalog adapter.
func NewNetEase(cfg *config.Config, logger *slog.Logger) *NetEase {
	return &NetEase{
		client: newRESTClient(cfg.Catalog.NetEaseBaseURL, cfg),
		logger: logger.With("component", "catalog_netease"),
	}
}

// Platform implements Adapter.
func (n *NetEase) Platform() model.Platform { return model.PlatformNetEase }

// Wire shapes. Field presence is validated after decoding; the upstream
// API is loosely typed and versions drift.

type neteaseArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type neteaseAlbum struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	PicURL string `json:"picUrl"`
}

type neteaseSong struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Ar   []neteaseArtist `json:"ar"`
	Al   *neteaseAlbum   `json:"al"`
	Dt   int64           `json:"dt"`
	Fee  int             `json:"fee"`
}

type neteaseSearchPayload struct {
	Result *struct {
		Songs     []neteaseSong `json:"songs"`
		SongCount int           `json:"songCount"`
	} `json:"result"`
}

type neteaseSuggestSong struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Artists []neteaseArtist `json:"artists"`
	Album   *neteaseAlbum   `json:"album"`
	Dur     int64           `json:"duration"`
}

type neteaseSuggestPayload struct {
	Result *struct {
		Songs []neteaseSuggestSong `json:"songs"`
	} `json:"result"`
}

type neteaseLyricPayload struct {
	Lrc *struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

type neteaseSongURL struct {
	ID   int64  `json:"id"`
	URL  string `json:"url"`
	Br   int64  `json:"br"`
	Size int64  `json:"size"`
	Code int    `json:"code"`
}

type neteaseSongURLPayload struct {
	Data []neteaseSongURL `json:"data"`
}

// Search implements Adapter. The shared page/pageSize pagination is
// translated to NetEase's limit/offset scheme here.
func (n *NetEase) Search(ctx context.Context, keywords string, page, pageSize, typ int) (model.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("keywords", keywords)
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa((page-1)*pageSize))
	q.Set("type", strconv.Itoa(typ))

	var payload neteaseSearchPayload
	if err := n.client.getJSON(ctx, "/cloudsearch", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			n.logger.Warn("search payload mismatch", "err", err)
			return model.SearchResult{}, nil
		}
		return model.SearchResult{}, err
	}
	if payload.Result == nil {
		n.logger.Warn("search payload mismatch", "err", "missing result")
		return model.SearchResult{}, nil
	}

	res := model.SearchResult{Total: payload.Result.SongCount}
	for _, s := range payload.Result.Songs {
		song, ok := n.normalizeSong(s)
		if !ok {
			n.logger.Warn("dropping malformed search hit", "id", s.ID)
			continue
		}
		res.Songs = append(res.Songs, song)
	}
	return res, nil
}

// Suggest implements Adapter; NetEase suggestions are track records.
func (n *NetEase) Suggest(ctx context.Context, keywords string) (model.Suggestion, error) {
	q := url.Values{}
	q.Set("keywords", keywords)

	var payload neteaseSuggestPayload
	if err := n.client.getJSON(ctx, "/search/suggest", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			n.logger.Warn("suggest payload mismatch", "err", err)
			return model.Suggestion{}, nil
		}
		return model.Suggestion{}, err
	}
	if payload.Result == nil {
		n.logger.Warn("suggest payload mismatch", "err", "missing result")
		return model.Suggestion{}, nil
	}

	var out model.Suggestion
	for _, s := range payload.Result.Songs {
		if s.ID == 0 || s.Name == "" {
			continue
		}
		song := model.Song{
			Ref:        model.TrackRef{Platform: model.PlatformNetEase, ID: strconv.FormatInt(s.ID, 10)},
			Name:       s.Name,
			DurationMS: s.Dur,
		}
		for _, a := range s.Artists {
			song.Artists = append(song.Artists, model.Artist{ID: strconv.FormatInt(a.ID, 10), Name: a.Name})
		}
		if s.Album != nil {
			song.PicURL = s.Album.PicURL
			song.Album = model.Album{
				ID:     strconv.FormatInt(s.Album.ID, 10),
				Name:   s.Album.Name,
				PicURL: s.Album.PicURL,
			}
		}
		out.Songs = append(out.Songs, song)
	}
	return out, nil
}

// LyricText implements Adapter.
func (n *NetEase) LyricText(ctx context.Context, ref model.TrackRef) (string, error) {
	q := url.Values{}
	q.Set("id", ref.ID)

	var payload neteaseLyricPayload
	if err := n.client.getJSON(ctx, "/lyric", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			n.logger.Warn("lyric payload mismatch", "err", err)
			return "", nil
		}
		return "", err
	}
	if payload.Lrc == nil {
		n.logger.Warn("lyric payload mismatch", "err", "missing lrc")
		return "", nil
	}
	return payload.Lrc.Lyric, nil
}

// Candidates implements Adapter. The fee flag selects the quality tier:
// fee tracks are only served at exhigh, free tracks at hires.
func (n *NetEase) Candidates(ctx context.Context, ref model.TrackRef, fee bool) ([]model.Candidate, error) {
	level := "hires"
	if fee {
		level = "exhigh"
	}
	q := url.Values{}
	q.Set("id", ref.ID)
	q.Set("level", level)

	var payload neteaseSongURLPayload
	if err := n.client.getJSON(ctx, "/song/url/v1", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			n.logger.Warn("song url payload mismatch", "err", err)
			return nil, nil
		}
		return nil, err
	}

	var out []model.Candidate
	for _, d := range payload.Data {
		if d.URL == "" {
			continue
		}
		out = append(out, model.Candidate{
			URL:       d.URL,
			Quality:   d.Br,
			SizeBytes: d.Size,
		})
	}
	return out, nil
}

// normalizeSong converts a wire song to the shared model, reporting false
// when required fields are missing.
func (n *NetEase) normalizeSong(s neteaseSong) (model.Song, bool) {
	if s.ID == 0 || s.Name == "" {
		return model.Song{}, false
	}
	song := model.Song{
		Ref:        model.TrackRef{Platform: model.PlatformNetEase, ID: strconv.FormatInt(s.ID, 10)},
		Name:       s.Name,
		DurationMS: s.Dt,
		Fee:        s.Fee != 0,
	}
	for _, a := range s.Ar {
		song.Artists = append(song.Artists, model.Artist{ID: strconv.FormatInt(a.ID, 10), Name: a.Name})
	}
	if s.Al != nil {
		song.PicURL = s.Al.PicURL
		song.Album = model.Album{
			ID:     strconv.FormatInt(s.Al.ID, 10),
			Name:   s.Al.Name,
			PicURL: s.Al.PicURL,
		}
	}
	return song, true
}
