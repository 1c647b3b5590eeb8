package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"media-proxy-go/internal/download"
	"media-proxy-go/internal/model"
)

// DownloadHandler exposes the download task manager over HTTP.
type DownloadHandler struct {
	manager *download.Manager
	logger  *slog.Logger
}

// NewDownloadHandler creates a DownloadHandler.
func NewDownloadHandler(m *download.Manager, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		manager: m,
		logger:  logger.With("component", "download_handler"),
	}
}

type downloadRequest struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
	Name     string `json:"name"`
}

// Start handles POST /api/download. The transfer runs in the background;
// the response is the accepted task snapshot. Posting a track that is
// already downloading is accepted and does not start a second transfer.
func (h *DownloadHandler) Start(c echo.Context) error {
	var req downloadRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, errors.New("invalid request body"))
	}

	p, err := model.ParsePlatform(req.Platform)
	if err != nil {
		return badRequest(c, err)
	}
	if req.ID == "" {
		return badRequest(c, errors.New("missing id"))
	}
	ref := model.TrackRef{Platform: p, ID: req.ID}

	// Detached from the request context: closing the browser tab must not
	// abort a transfer that was explicitly requested.
	go func() {
		if err := h.manager.Download(context.Background(), ref, req.Name); err != nil {
			h.logger.Error("background download failed", "key", ref.Key(), "err", err)
		}
	}()

	task, ok := h.manager.Task(ref)
	if !ok {
		task = model.Task{Ref: ref, Name: req.Name, Status: model.StatusPending}
	}
	return c.JSON(http.StatusAccepted, task)
}

// List handles GET /api/download. With platform and id parameters it
// returns the single matching task, otherwise the full snapshot.
func (h *DownloadHandler) List(c echo.Context) error {
	if c.QueryParam("platform") != "" || c.QueryParam("id") != "" {
		ref, err := trackRef(c)
		if err != nil {
			return badRequest(c, err)
		}
		task, ok := h.manager.Task(ref)
		if !ok {
			return c.JSON(http.StatusNotFound, model.ErrorBody{
				Code:    http.StatusNotFound,
				Message: "no task for track",
			})
		}
		return c.JSON(http.StatusOK, task)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"tasks": h.manager.Tasks(),
	})
}

// ClearCompleted handles DELETE /api/download/completed.
func (h *DownloadHandler) ClearCompleted(c echo.Context) error {
	removed := h.manager.ClearCompleted()
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
