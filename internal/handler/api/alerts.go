package api

import (
	models "PairFlow/internal/domain/models"
	"PairFlow/internal/usecase"
	xhttp "PairFlow/pkg/http"
	xlogger "PairFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AlertsHandler serves alert CRUD and the notification log.
type AlertsHandler struct {
	logger *xlogger.Logger
	svc    *usecase.AlertService
}

func NewAlertsHandler(logger *xlogger.Logger, svc *usecase.AlertService) *AlertsHandler {
	return &AlertsHandler{logger: logger, svc: svc}
}

func (h *AlertsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alerts", h.List)
	g.POST("/alerts", h.Create)
	g.DELETE("/alerts/:id", h.Remove)
	g.PATCH("/alerts/:id", h.SetEnabled)
	g.POST("/alerts/:id/toggle", h.Toggle)
	g.GET("/notifications", h.Notifications)
	g.DELETE("/notifications", h.ClearNotifications)
}

func (h *AlertsHandler) List(c echo.Context) error {
	list := h.svc.List()
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *AlertsHandler) Create(c echo.Context) error {
	req := &models.CreateAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.svc.Create(c.Request().Context(), *req)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.CreatedResponse(c, a)
}

func (h *AlertsHandler) Remove(c echo.Context) error {
	req := &models.AlertIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.Remove(c.Request().Context(), req.ID); err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.SuccessResponse(c, nil)
}

func (h *AlertsHandler) SetEnabled(c echo.Context) error {
	req := &models.SetAlertEnabledRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.svc.SetEnabled(c.Request().Context(), req.ID, *req.Enabled)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *AlertsHandler) Toggle(c echo.Context) error {
	req := &models.AlertIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.svc.Toggle(c.Request().Context(), req.ID)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *AlertsHandler) Notifications(c echo.Context) error {
	list := h.svc.Notifications()
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *AlertsHandler) ClearNotifications(c echo.Context) error {
	h.svc.ClearNotifications()
	return xhttp.SuccessResponse(c, nil)
}
