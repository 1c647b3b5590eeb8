package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-proxy-go/internal/config"
	"media-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	m *metrics.Metrics,
	proxy *ProxyHandler,
	cat *CatalogHandler,
	dl *DownloadHandler,
	health *HealthHandler,
) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.GET("/proxy", proxy.Handle)

	e.GET("/api/search", cat.Search)
	e.GET("/api/suggest", cat.Suggest)
	e.GET("/api/lyrics", cat.Lyrics)
	e.GET("/api/song/url", cat.SongURL)

	e.POST("/api/download", dl.Start)
	e.GET("/api/download", dl.List)
	e.DELETE("/api/download/completed", dl.ClearCompleted)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(
			promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		))
	}
}
