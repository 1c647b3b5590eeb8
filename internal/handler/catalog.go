package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"media-proxy-go/internal/catalog"
	"media-proxy-go/internal/model"
	"media-proxy-go/internal/resolver"
	"media-proxy-go/internal/routing"
)

// CatalogHandler serves search, suggestion, lyric and playable-URL lookups.
type CatalogHandler struct {
	adapters []catalog.Adapter
	resolver *resolver.Resolver
	images   *routing.Rewriter
	logger   *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler over the platform adapters.
// Cover art URLs in responses go through the image rewriter, which is a
// no-op unless proxy_images is enabled.
func NewCatalogHandler(adapters []catalog.Adapter, res *resolver.Resolver, images *routing.Rewriter, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		adapters: adapters,
		resolver: res,
		images:   images,
		logger:   logger.With("component", "catalog_handler"),
	}
}

// Search handles GET /api/search.
func (h *CatalogHandler) Search(c echo.Context) error {
	a, err := h.adapter(c)
	if err != nil {
		return badRequest(c, err)
	}
	keywords := c.QueryParam("keywords")
	if keywords == "" {
		return badRequest(c, errors.New("missing keywords parameter"))
	}

	page := intParam(c, "page", 1)
	pageSize := intParam(c, "pagesize", 30)
	typ := intParam(c, "type", 1)

	res, err := a.Search(c.Request().Context(), keywords, page, pageSize, typ)
	if err != nil {
		return h.upstreamError(c, "search", err)
	}
	h.wrapArt(res.Songs)
	return c.JSON(http.StatusOK, res)
}

// Suggest handles GET /api/suggest. The response shape is platform-dependent:
// songs for netease, plain text hints for kugou.
func (h *CatalogHandler) Suggest(c echo.Context) error {
	a, err := h.adapter(c)
	if err != nil {
		return badRequest(c, err)
	}
	keywords := c.QueryParam("keywords")
	if keywords == "" {
		return badRequest(c, errors.New("missing keywords parameter"))
	}

	sug, err := a.Suggest(c.Request().Context(), keywords)
	if err != nil {
		return h.upstreamError(c, "suggest", err)
	}
	h.wrapArt(sug.Songs)
	return c.JSON(http.StatusOK, sug)
}

// Lyrics handles GET /api/lyrics. An unavailable lyric is an empty text, not
// an error.
func (h *CatalogHandler) Lyrics(c echo.Context) error {
	a, err := h.adapter(c)
	if err != nil {
		return badRequest(c, err)
	}
	ref, err := trackRef(c)
	if err != nil {
		return badRequest(c, err)
	}

	text, err := a.LyricText(c.Request().Context(), ref)
	if err != nil {
		return h.upstreamError(c, "lyrics", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"lyric": text})
}

// SongURL handles GET /api/song/url: the full resolution pipeline, returning
// a URL that is directly playable by a media element.
func (h *CatalogHandler) SongURL(c echo.Context) error {
	ref, err := trackRef(c)
	if err != nil {
		return badRequest(c, err)
	}
	fee := c.QueryParam("fee") == "1" || c.QueryParam("fee") == "true"

	resolved, err := h.resolver.ResolveFee(c.Request().Context(), ref, fee)
	if err != nil {
		if errors.Is(err, model.ErrNoCandidate) {
			return c.JSON(http.StatusNotFound, model.ErrorBody{
				Code:    http.StatusNotFound,
				Message: "no playable url available",
			})
		}
		if errors.Is(err, model.ErrUnsupportedPlatform) {
			return badRequest(c, err)
		}
		return h.upstreamError(c, "song url", err)
	}
	return c.JSON(http.StatusOK, resolved)
}

// wrapArt rewrites cover art URLs in place.
func (h *CatalogHandler) wrapArt(songs []model.Song) {
	for i := range songs {
		songs[i].PicURL = h.images.Wrap(songs[i].PicURL)
		songs[i].Album.PicURL = h.images.Wrap(songs[i].Album.PicURL)
	}
}

func (h *CatalogHandler) adapter(c echo.Context) (catalog.Adapter, error) {
	p, err := model.ParsePlatform(c.QueryParam("platform"))
	if err != nil {
		return nil, err
	}
	return catalog.ByPlatform(h.adapters, p)
}

func (h *CatalogHandler) upstreamError(c echo.Context, op string, err error) error {
	h.logger.Error("catalog request failed", "op", op, "err", err)
	return c.JSON(http.StatusBadGateway, model.ErrorBody{
		Code:    http.StatusBadGateway,
		Message: "catalog request failed",
	})
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, model.ErrorBody{
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	})
}

func trackRef(c echo.Context) (model.TrackRef, error) {
	p, err := model.ParsePlatform(c.QueryParam("platform"))
	if err != nil {
		return model.TrackRef{}, err
	}
	id := c.QueryParam("id")
	if id == "" {
		return model.TrackRef{}, errors.New("missing id parameter")
	}
	return model.TrackRef{Platform: p, ID: id}, nil
}

func intParam(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
