package api

import (
	"context"
	"net/http"
	"time"

	models "PairFlow/internal/domain/models"
	"PairFlow/internal/usecase"
	"PairFlow/pkg/cache"
	xhttp "PairFlow/pkg/http"
	xlogger "PairFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SystemHandler serves feed status, the log panel and the health check.
type SystemHandler struct {
	logger *xlogger.Logger
	status *usecase.FeedStatusTracker
	cache  cache.Service
}

func NewSystemHandler(logger *xlogger.Logger, status *usecase.FeedStatusTracker, c cache.Service) *SystemHandler {
	return &SystemHandler{logger: logger, status: status, cache: c}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/logs", h.Logs)
	g.DELETE("/logs", h.ClearLogs)
	e.GET("/healthz", h.Health)
}

func (h *SystemHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.status.Statuses())
}

func (h *SystemHandler) Logs(c echo.Context) error {
	req := &models.LogsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	entries := []xlogger.LogEntry{}
	if col := h.logger.Collector(); col != nil {
		entries = col.Entries(req.Limit)
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *SystemHandler) ClearLogs(c echo.Context) error {
	if col := h.logger.Collector(); col != nil {
		col.Clear()
	}
	return xhttp.SuccessResponse(c, nil)
}

// Health answers 503 when the alert store is unreachable. The feed being
// down is reported but does not fail the check.
func (h *SystemHandler) Health(c echo.Context) error {
	body := map[string]interface{}{"status": "ok", "feed_connected": false}
	for _, st := range h.status.Statuses() {
		if st.Connected {
			body["feed_connected"] = true
			break
		}
	}
	if h.cache == nil {
		return xhttp.SuccessResponse(c, body)
	}

	body["store"] = h.cache.Backend()
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
	defer cancel()
	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("health: store ping failed", xlogger.Error(err))
		body["status"] = "degraded"
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, body)
	}
	return xhttp.SuccessResponse(c, body)
}
