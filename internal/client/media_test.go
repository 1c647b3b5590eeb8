package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/model"
	"media-proxy-go/internal/policy"
)

func testConfig() *config.Config {
	return &config.Config{
		Proxy: config.ProxyConfig{
			MaxRedirects:    10,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMediaClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	c := NewMediaClient(testConfig(), policy.New(true, nil), discardLogger(), nil)

	resp, err := c.Get(context.Background(), srv.URL+"/a.mp3", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "audio-bytes" {
		t.Errorf("body = %q, want %q", string(body), "audio-bytes")
	}
}

func TestMediaClient_Get_ForwardsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=0-99" {
			t.Errorf("Range = %q, want %q", got, "bytes=0-99")
		}
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	c := NewMediaClient(testConfig(), policy.New(true, nil), discardLogger(), nil)

	header := make(http.Header)
	header.Set("Range", "bytes=0-99")
	resp, err := c.Get(context.Background(), srv.URL+"/a.mp3", header)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusPartialContent)
	}
}

func TestMediaClient_Get_Unreachable(t *testing.T) {
	c := NewMediaClient(testConfig(), policy.New(true, nil), discardLogger(), nil)

	_, err := c.Get(context.Background(), "http://127.0.0.1:1/a.mp3", nil)
	if err == nil {
		t.Fatal("Get() expected error for unreachable host, got nil")
	}
}

func TestMediaClient_Get_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewMediaClient(testConfig(), policy.New(true, nil), discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, srv.URL+"/a.mp3", nil)
	if err == nil {
		t.Fatal("Get() expected error for canceled context, got nil")
	}
}

func TestMediaClient_Get_RedirectLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Redirect forever; the client must give up after max_redirects.
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Proxy.MaxRedirects = 3
	c := NewMediaClient(cfg, policy.New(true, nil), discardLogger(), nil)

	_, err := c.Get(context.Background(), srv.URL+"/a", nil)
	if err == nil {
		t.Fatal("Get() expected error after exceeding redirect limit, got nil")
	}
}

func TestMediaClient_Get_RedirectToDisallowedHost(t *testing.T) {
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://blocked.example/a.mp3", http.StatusFound)
	}))
	defer redirector.Close()

	// Only the redirector's host is allow-listed; the redirect target is
	// checked before any request to it is issued.
	ru, err := url.Parse(redirector.URL)
	if err != nil {
		t.Fatal(err)
	}
	c := NewMediaClient(testConfig(), policy.New(false, []string{ru.Hostname()}), discardLogger(), nil)

	_, err = c.Get(context.Background(), redirector.URL+"/r", nil)
	if err == nil {
		t.Fatal("Get() expected error for redirect to disallowed host, got nil")
	}
	if !errors.Is(err, model.ErrHostNotAllowed) {
		t.Errorf("error = %v, want ErrHostNotAllowed in chain", err)
	}
}

func TestMediaClient_Get_InvalidURL(t *testing.T) {
	c := NewMediaClient(testConfig(), policy.New(true, nil), discardLogger(), nil)

	if _, err := c.Get(context.Background(), fmt.Sprintf("http://%c", 0x7f), nil); err == nil {
		t.Fatal("Get() expected error for invalid URL, got nil")
	}
}
