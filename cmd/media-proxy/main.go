package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"media-proxy-go/internal/catalog"
	"media-proxy-go/internal/client"
	"media-proxy-go/internal/config"
	"media-proxy-go/internal/download"
	"media-proxy-go/internal/handler"
	"media-proxy-go/internal/metrics"
	"media-proxy-go/internal/middleware"
	"media-proxy-go/internal/policy"
	"media-proxy-go/internal/resolver"
	"media-proxy-go/internal/routing"
	"media-proxy-go/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("media-proxy"),
		kong.Description("Streaming media gateway and music catalog access layer."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newPolicy,
			newEcho,
			client.NewMediaClient,
			service.NewGateway,
			catalog.NewNetEase,
			catalog.NewKuGou,
			newAdapters,
			newResolver,
			newDownloadResolver,
			newSink,
			download.NewManager,
			handler.NewProxyHandler,
			newCatalogHandler,
			handler.NewDownloadHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnOpenPolicy, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newPolicy(cfg *config.Config) *policy.Policy {
	return policy.New(cfg.Proxy.EffectiveAllowAll(), cfg.Proxy.AllowedHosts)
}

func newAdapters(ne *catalog.NetEase, kg *catalog.KuGou) []catalog.Adapter {
	return []catalog.Adapter{ne, kg}
}

func newResolver(ne *catalog.NetEase, kg *catalog.KuGou, cfg *config.Config, logger *slog.Logger) *resolver.Resolver {
	return resolver.New(ne, kg, routing.NewMediaRewriter(cfg.Routing), logger)
}

func newDownloadResolver(r *resolver.Resolver) download.URLResolver {
	return r
}

func newCatalogHandler(adapters []catalog.Adapter, res *resolver.Resolver, cfg *config.Config, logger *slog.Logger) *handler.CatalogHandler {
	return handler.NewCatalogHandler(adapters, res, routing.NewImageRewriter(cfg.Routing), logger)
}

func newSink(cfg *config.Config) download.Sink {
	return download.NewDirSink(cfg.Download.Dir)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) to avoid cutting off valid long-running streamed
	// responses. Protection is provided by the upstream client timeout, ReadTimeout,
	// and IdleTimeout.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())

	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
	}

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnOpenPolicy(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnOpenPolicy(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
