package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/model"
)

func kugouAdapter(baseURL string) *KuGou {
	cfg := &config.Config{Catalog: config.CatalogConfig{
		KuGouBaseURL:   baseURL,
		TimeoutSeconds: 5,
	}}
	return NewKuGou(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestKuGou_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		// KuGou pagination is native page/pagesize: no translation.
		q := r.URL.Query()
		if q.Get("keyword") != "tears" {
			t.Errorf("keyword = %q, want %q", q.Get("keyword"), "tears")
		}
		if q.Get("page") != "3" {
			t.Errorf("page = %q, want %q", q.Get("page"), "3")
		}
		if q.Get("pagesize") != "20" {
			t.Errorf("pagesize = %q, want %q", q.Get("pagesize"), "20")
		}
		_, _ = w.Write([]byte(`{
			"data": {
				"total": 77,
				"lists": [
					{
						"FileHash": "ABCDEF0123456789",
						"OriSongName": "Tears",
						"Image": "https://img.example/k.jpg",
						"AlbumID": "al-9", "AlbumName": "Rain",
						"Singers": [{"id": 3, "name": "Singer"}],
						"Duration": 215
					},
					{"OriSongName": "no hash"}
				]
			}
		}`))
	}))
	defer srv.Close()

	res, err := kugouAdapter(srv.URL).Search(context.Background(), "tears", 3, 20, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if res.Total != 77 {
		t.Errorf("Total = %d, want %d", res.Total, 77)
	}
	if len(res.Songs) != 1 {
		t.Fatalf("len(Songs) = %d, want 1 (hashless hit dropped)", len(res.Songs))
	}

	s := res.Songs[0]
	if s.Ref.Platform != model.PlatformKuGou || s.Ref.ID != "ABCDEF0123456789" {
		t.Errorf("Ref = %+v, want kugou file hash", s.Ref)
	}
	if s.DurationMS != 215000 {
		t.Errorf("DurationMS = %d, want seconds scaled to ms", s.DurationMS)
	}
	if s.Album.ID != "al-9" || s.Album.Name != "Rain" {
		t.Errorf("Album = %+v", s.Album)
	}
}

func TestKuGou_Search_MalformedPayloadDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [1, 2, 3]}`))
	}))
	defer srv.Close()

	res, err := kugouAdapter(srv.URL).Search(context.Background(), "x", 1, 10, 0)
	if err != nil {
		t.Fatalf("Search() error = %v; schema mismatch must degrade, not fail", err)
	}
	if len(res.Songs) != 0 || res.Total != 0 {
		t.Errorf("Search() = %+v, want empty result", res)
	}
}

func TestKuGou_Suggest_ReturnsHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": [
				{"RecordDatas": [{"HintInfo": "tears for fears"}, {"HintInfo": "tears"}]},
				{"RecordDatas": [{"HintInfo": ""}]}
			]
		}`))
	}))
	defer srv.Close()

	sug, err := kugouAdapter(srv.URL).Suggest(context.Background(), "tear")
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(sug.Songs) != 0 {
		t.Errorf("Songs = %v, want none for KuGou", sug.Songs)
	}
	want := []string{"tears for fears", "tears"}
	if len(sug.Hints) != len(want) {
		t.Fatalf("Hints = %v, want %v", sug.Hints, want)
	}
	for i := range want {
		if sug.Hints[i] != want[i] {
			t.Errorf("Hints[%d] = %q, want %q", i, sug.Hints[i], want[i])
		}
	}
}

func TestKuGou_LyricText_TwoStepFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/lyric":
			if got := r.URL.Query().Get("hash"); got != "HASH1" {
				t.Errorf("hash = %q, want %q", got, "HASH1")
			}
			_, _ = w.Write([]byte(`{"candidates": [{"id": 991, "accesskey": "KEY"}]}`))
		case "/lyric":
			q := r.URL.Query()
			if q.Get("id") != "991" || q.Get("accesskey") != "KEY" {
				t.Errorf("lyric query = %v, want id=991 accesskey=KEY", q)
			}
			if q.Get("fmt") != "lrc" || q.Get("decode") != "1" {
				t.Errorf("lyric query = %v, want fmt=lrc decode=1", q)
			}
			_, _ = w.Write([]byte(`{"decodeContent": "[00:01.00]hello"}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	ref := model.TrackRef{Platform: model.PlatformKuGou, ID: "HASH1"}
	text, err := kugouAdapter(srv.URL).LyricText(context.Background(), ref)
	if err != nil {
		t.Fatalf("LyricText() error = %v", err)
	}
	if text != "[00:01.00]hello" {
		t.Errorf("LyricText() = %q", text)
	}
}

func TestKuGou_LyricText_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	ref := model.TrackRef{Platform: model.PlatformKuGou, ID: "HASH1"}
	text, err := kugouAdapter(srv.URL).LyricText(context.Background(), ref)
	if err != nil {
		t.Fatalf("LyricText() error = %v", err)
	}
	if text != "" {
		t.Errorf("LyricText() = %q, want empty", text)
	}
}

func TestKuGou_Candidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song/url/new" {
			t.Errorf("path = %q, want /song/url/new", r.URL.Path)
		}
		if got := r.URL.Query().Get("hash"); got != "HASH1" {
			t.Errorf("hash = %q, want %q", got, "HASH1")
		}
		_, _ = w.Write([]byte(`{
			"data": [
				{
					"hash": "HASH1",
					"quality": "high",
					"info": {
						"filesize": 9000000, "extname": "mp3", "bitrate": 320000,
						"tracker_url": ["", "https://node1.example/dl", "https://node2.example/dl"]
					}
				},
				{"hash": ""},
				{"hash": "HASH1"}
			]
		}`))
	}))
	defer srv.Close()

	ref := model.TrackRef{Platform: model.PlatformKuGou, ID: "HASH1"}
	cands, err := kugouAdapter(srv.URL).Candidates(context.Background(), ref, false)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1 (records without hash or info dropped)", len(cands))
	}

	c := cands[0]
	if c.URL != "" {
		t.Errorf("URL = %q, want empty before composition", c.URL)
	}
	if c.Hash != "HASH1" || c.Ext != "mp3" || c.Quality != 320000 || c.SizeBytes != 9000000 {
		t.Errorf("candidate = %+v", c)
	}
	if len(c.NodeURLs) != 3 {
		t.Errorf("NodeURLs = %v, want all three delivery nodes preserved", c.NodeURLs)
	}
}
