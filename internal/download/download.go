// Package download streams full media bodies to a sink with progress
// reporting and at-most-one-in-flight-per-track semantics.
package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/metrics"
	"media-proxy-go/internal/model"
)

// URLResolver is the slice of the resolver the manager needs.
type URLResolver interface {
	Resolve(ctx context.Context, ref model.TrackRef) (model.Resolved, error)
}

// Sink receives a fully materialized payload under a file name. The
// browser client hands bytes to the user agent's save dialog; the server
// rendition writes them to a directory.
type Sink interface {
	Save(name string, data []byte) error
}

// ProgressFunc is invoked as a download advances, with percent in 0..100.
type ProgressFunc func(key string, percent int)

// Manager runs download tasks keyed by platform+id. The task map is the
// concurrency guard: the check-then-set on a key's status happens under
// the mutex, so two near-simultaneous requests for one track can never
// both start a transfer.
type Manager struct {
	resolver   URLResolver
	sink       Sink
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	onProgress ProgressFunc

	mu    sync.Mutex
	tasks map[string]*model.Task
}

// NewManager creates a download Manager. The metrics and progress callback
// are optional; pass nil to disable either.
func NewManager(cfg *config.Config, res URLResolver, sink Sink, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		resolver: res,
		sink:     sink,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Proxy.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "download"),
		metrics: m,
		tasks:   make(map[string]*model.Task),
	}
}

// SetProgressFunc installs a progress callback for UI layers.
func (m *Manager) SetProgressFunc(fn ProgressFunc) {
	m.onProgress = fn
}

// Download resolves and fetches the track, then hands the payload to the
// sink under the given name. A request for a key that is already
// downloading is a no-op, not an error: exactly one transfer runs per
// track. Failures are recorded on the task and returned.
func (m *Manager) Download(ctx context.Context, ref model.TrackRef, name string) error {
	key := ref.Key()
	if name == "" {
		name = key + ".mp3"
	}

	m.mu.Lock()
	if t, ok := m.tasks[key]; ok && t.Status == model.StatusDownloading {
		m.mu.Unlock()
		m.logger.Debug("download already in flight", "key", key)
		return nil
	}
	m.tasks[key] = &model.Task{
		Ref:    ref,
		Name:   name,
		Status: model.StatusDownloading,
	}
	m.mu.Unlock()

	if err := m.run(ctx, ref, key, name); err != nil {
		m.fail(key, err)
		return err
	}

	m.complete(key)
	return nil
}

func (m *Manager) run(ctx context.Context, ref model.TrackRef, key, name string) error {
	resolved, err := m.resolver.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve download url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch %s: unexpected status %d", key, resp.StatusCode)
	}

	data, err := m.readBody(resp, key)
	if err != nil {
		return err
	}

	if err := m.sink.Save(name, data); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// readBody streams the response in chunks, updating task progress when the
// upstream declared a content length. Without one, progress stays at zero
// until completion.
func (m *Manager) readBody(resp *http.Response, key string) ([]byte, error) {
	var buf bytes.Buffer
	var received int64
	chunk := make([]byte, 32*1024)

	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			if resp.ContentLength > 0 {
				pct := int(math.Round(float64(received) / float64(resp.ContentLength) * 100))
				m.progress(key, pct)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
	}
	return buf.Bytes(), nil
}

func (m *Manager) progress(key string, percent int) {
	if percent > 100 {
		percent = 100
	}
	m.mu.Lock()
	if t, ok := m.tasks[key]; ok && t.Status == model.StatusDownloading {
		t.Progress = percent
	}
	m.mu.Unlock()

	if m.onProgress != nil {
		m.onProgress(key, percent)
	}
}

func (m *Manager) complete(key string) {
	m.mu.Lock()
	if t, ok := m.tasks[key]; ok {
		t.Status = model.StatusCompleted
		t.Progress = 100
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.DownloadsTotal.WithLabelValues(string(model.StatusCompleted)).Inc()
	}
	m.logger.Info("download completed", "key", key)
}

func (m *Manager) fail(key string, err error) {
	m.mu.Lock()
	if t, ok := m.tasks[key]; ok {
		t.Status = model.StatusFailed
		t.Err = err.Error()
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.DownloadsTotal.WithLabelValues(string(model.StatusFailed)).Inc()
	}
	m.logger.Error("download failed", "key", key, "err", err)
}

// Task returns a copy of the task for the track, if any.
func (m *Manager) Task(ref model.TrackRef) (model.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[ref.Key()]
	if !ok {
		return model.Task{}, false
	}
	return *t, true
}

// Tasks returns a snapshot of all tasks.
func (m *Manager) Tasks() []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	return out
}

// ClearCompleted removes completed tasks from the map, leaving failed and
// in-flight entries alone. Returns the number of entries removed.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, t := range m.tasks {
		if t.Status == model.StatusCompleted {
			delete(m.tasks, key)
			removed++
		}
	}
	return removed
}
