package api

import (
	models "PairFlow/internal/domain/models"
	domsvc "PairFlow/internal/domain/service"
	"PairFlow/internal/usecase"
	xhttp "PairFlow/pkg/http"
	xlogger "PairFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AnalyticsHandler serves the published analytics and its settings.
type AnalyticsHandler struct {
	logger   *xlogger.Logger
	source   domsvc.AnalyticsSource
	settings *usecase.SettingsStore
}

func NewAnalyticsHandler(logger *xlogger.Logger, source domsvc.AnalyticsSource, settings *usecase.SettingsStore) *AnalyticsHandler {
	return &AnalyticsHandler{logger: logger, source: source, settings: settings}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analytics", h.Latest)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
}

// Latest returns the last published result. Data is omitted before the
// first analytics cycle.
func (h *AnalyticsHandler) Latest(c echo.Context) error {
	res := h.source.Latest()
	if res == nil {
		return xhttp.SuccessResponse(c, nil)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) GetSettings(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.settings.Get())
}

func (h *AnalyticsHandler) UpdateSettings(c echo.Context) error {
	req := &models.Settings{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.settings.Update(*req)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	h.logger.Info("settings updated",
		xlogger.Strings("symbols", s.Symbols),
		xlogger.String("timeframe", s.Timeframe),
		xlogger.Int("rolling_window", s.RollingWindow))
	return xhttp.SuccessResponse(c, s)
}
