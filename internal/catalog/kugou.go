package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/model"
)

// KuGou adapts the KuGou music API. Its track IDs are opaque file hashes,
// its pagination is native page/pagesize, its suggestions are plain text
// hints, and its stream candidates are not complete URLs: the playable
// location is composed from a delivery node, the content hash and the file
// extension.
type KuGou struct {
	client *restClient
	logger *slog.Logger
}

// NewKuGou creates the KuGou catalog adapter.
func NewKuGou(cfg *config.Config, logger *slog.Logger) *KuGou {
	return &KuGou{
		client: newRESTClient(cfg.Catalog.KuGouBaseURL, cfg),
		logger: logger.With("component", "catalog_kugou"),
	}
}

// Platform implements Adapter.
func (k *KuGou) Platform() model.Platform { return model.PlatformKuGou }

// Wire shapes. KuGou's field naming is PascalCase on search endpoints and
// snake_case on the song URL endpoint; both drift independently.

type kugouSinger struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type kugouListItem struct {
	Image       string        `json:"Image"`
	AlbumID     string        `json:"AlbumID"`
	AlbumName   string        `json:"AlbumName"`
	FileHash    string        `json:"FileHash"`
	Singers     []kugouSinger `json:"Singers"`
	Duration    int64         `json:"Duration"`
	OriSongName string        `json:"OriSongName"`
	Res         *struct {
		FileSize int64 `json:"FileSize"`
	} `json:"Res"`
}

type kugouSearchPayload struct {
	Data *struct {
		Total int             `json:"total"`
		Lists []kugouListItem `json:"lists"`
	} `json:"data"`
}

type kugouSuggestPayload struct {
	Data []struct {
		RecordDatas []struct {
			HintInfo string `json:"HintInfo"`
		} `json:"RecordDatas"`
	} `json:"data"`
}

type kugouLyricSearchPayload struct {
	Candidates []struct {
		ID        json.Number `json:"id"`
		AccessKey string      `json:"accesskey"`
	} `json:"candidates"`
}

type kugouLyricPayload struct {
	DecodeContent string `json:"decodeContent"`
}

type kugouSongQuality struct {
	Hash string `json:"hash"`
	Info *struct {
		FileSize   int64    `json:"filesize"`
		ExtName    string   `json:"extname"`
		Bitrate    int64    `json:"bitrate"`
		TrackerURL []string `json:"tracker_url"`
	} `json:"info"`
}

type kugouSongURLPayload struct {
	Data []kugouSongQuality `json:"data"`
}

// Search implements Adapter. KuGou's native pagination is already
// page/pagesize, so the shared scheme passes straight through.
func (k *KuGou) Search(ctx context.Context, keywords string, page, pageSize, typ int) (model.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("keyword", keywords)
	q.Set("page", strconv.Itoa(page))
	q.Set("pagesize", strconv.Itoa(pageSize))
	q.Set("type", strconv.Itoa(typ))

	var payload kugouSearchPayload
	if err := k.client.getJSON(ctx, "/search", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			k.logger.Warn("search payload mismatch", "err", err)
			return model.SearchResult{}, nil
		}
		return model.SearchResult{}, err
	}
	if payload.Data == nil {
		k.logger.Warn("search payload mismatch", "err", "missing data")
		return model.SearchResult{}, nil
	}

	res := model.SearchResult{Total: payload.Data.Total}
	for _, item := range payload.Data.Lists {
		song, ok := k.normalizeSong(item)
		if !ok {
			k.logger.Warn("dropping malformed search hit", "hash", item.FileHash)
			continue
		}
		res.Songs = append(res.Songs, song)
	}
	return res, nil
}

// Suggest implements Adapter; KuGou suggestions are plain text hints.
func (k *KuGou) Suggest(ctx context.Context, keywords string) (model.Suggestion, error) {
	q := url.Values{}
	q.Set("keyword", keywords)

	var payload kugouSuggestPayload
	if err := k.client.getJSON(ctx, "/search/suggest", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			k.logger.Warn("suggest payload mismatch", "err", err)
			return model.Suggestion{}, nil
		}
		return model.Suggestion{}, err
	}

	var out model.Suggestion
	for _, cat := range payload.Data {
		for _, rec := range cat.RecordDatas {
			if rec.HintInfo != "" {
				out.Hints = append(out.Hints, rec.HintInfo)
			}
		}
	}
	return out, nil
}

// LyricText implements Adapter. KuGou lyrics take two round trips: the
// hash is first exchanged for a lyric id and access key, then the LRC text
// is fetched with both.
func (k *KuGou) LyricText(ctx context.Context, ref model.TrackRef) (string, error) {
	q := url.Values{}
	q.Set("hash", ref.ID)

	var search kugouLyricSearchPayload
	if err := k.client.getJSON(ctx, "/search/lyric", q, &search); err != nil {
		if errors.Is(err, errSchema) {
			k.logger.Warn("lyric search payload mismatch", "err", err)
			return "", nil
		}
		return "", err
	}
	if len(search.Candidates) == 0 || search.Candidates[0].AccessKey == "" {
		k.logger.Warn("lyric search returned no candidates", "hash", ref.ID)
		return "", nil
	}

	q = url.Values{}
	q.Set("id", search.Candidates[0].ID.String())
	q.Set("accesskey", search.Candidates[0].AccessKey)
	q.Set("fmt", "lrc")
	q.Set("decode", "1")

	var lyric kugouLyricPayload
	if err := k.client.getJSON(ctx, "/lyric", q, &lyric); err != nil {
		if errors.Is(err, errSchema) {
			k.logger.Warn("lyric payload mismatch", "err", err)
			return "", nil
		}
		return "", err
	}
	return lyric.DecodeContent, nil
}

// Candidates implements Adapter. The fee flag has no meaning on KuGou and
// is ignored. Returned candidates carry the delivery-node list, hash and
// extension for composition by the resolver.
func (k *KuGou) Candidates(ctx context.Context, ref model.TrackRef, _ bool) ([]model.Candidate, error) {
	q := url.Values{}
	q.Set("hash", ref.ID)

	var payload kugouSongURLPayload
	if err := k.client.getJSON(ctx, "/song/url/new", q, &payload); err != nil {
		if errors.Is(err, errSchema) {
			k.logger.Warn("song url payload mismatch", "err", err)
			return nil, nil
		}
		return nil, err
	}

	var out []model.Candidate
	for _, d := range payload.Data {
		if d.Hash == "" || d.Info == nil {
			k.logger.Warn("dropping malformed quality record", "hash", ref.ID)
			continue
		}
		out = append(out, model.Candidate{
			NodeURLs:  d.Info.TrackerURL,
			Hash:      d.Hash,
			Ext:       d.Info.ExtName,
			Quality:   d.Info.Bitrate,
			SizeBytes: d.Info.FileSize,
		})
	}
	return out, nil
}

// normalizeSong converts a wire search hit to the shared model, reporting
// false when the file hash is missing.
func (k *KuGou) normalizeSong(item kugouListItem) (model.Song, bool) {
	if item.FileHash == "" {
		return model.Song{}, false
	}
	song := model.Song{
		Ref:        model.TrackRef{Platform: model.PlatformKuGou, ID: item.FileHash},
		Name:       item.OriSongName,
		PicURL:     item.Image,
		DurationMS: item.Duration * 1000,
		Album: model.Album{
			ID:     item.AlbumID,
			Name:   item.AlbumName,
			PicURL: item.Image,
		},
	}
	for _, s := range item.Singers {
		song.Artists = append(song.Artists, model.Artist{ID: strconv.FormatInt(s.ID, 10), Name: s.Name})
	}
	return song, true
}
