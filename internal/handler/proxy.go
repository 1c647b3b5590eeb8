package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"media-proxy-go/internal/metrics"
	"media-proxy-go/internal/model"
	"media-proxy-go/internal/service"
)

// ProxyHandler streams third-party media resources through the gateway.
type ProxyHandler struct {
	gateway *service.Gateway
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(gw *service.Gateway, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		gateway: gw,
		metrics: m,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle fetches the target named by the url query parameter and streams the
// upstream body back. The upstream status code is mirrored as-is, including
// error statuses: a 403 from a media host is a successful proxying of a 403,
// not a gateway failure.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:    req.Context(),
		Target: c.QueryParam("url"),
		Header: req.Header,
	}

	resp, err := h.gateway.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (client disconnect, network error), the status code has
	// already been sent and the client gets a truncated body. That is the
	// inherent trade-off of streaming proxies; log it and move on.
	n, err := io.Copy(c.Response(), resp.Body)
	if h.metrics != nil && n > 0 {
		h.metrics.ProxiedBytes.Add(float64(n))
	}
	if err != nil {
		h.logger.Error("streaming media body",
			"err", err,
			"bytes", n,
		)
	}

	return nil
}

// mapError translates locally detected failures into the JSON error
// envelope. Only these three shapes exist: the target was missing, the
// target was refused by policy, or the upstream could not be reached.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, model.ErrMissingTarget) {
		return c.JSON(http.StatusBadRequest, model.ErrorBody{
			Code:    http.StatusBadRequest,
			Message: "missing url parameter",
		})
	}

	if errors.Is(err, model.ErrHostNotAllowed) {
		h.logger.Warn("refused proxy target", "err", err)
		return c.JSON(http.StatusForbidden, model.ErrorBody{
			Code:    http.StatusForbidden,
			Message: "target host not allowed",
		})
	}

	h.logger.Error("proxy error", "err", err)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, model.ErrorBody{
			Code:    http.StatusGatewayTimeout,
			Message: "upstream request timed out",
		})
	}

	return c.JSON(http.StatusBadGateway, model.ErrorBody{
		Code:    http.StatusBadGateway,
		Message: "upstream fetch failed",
	})
}
