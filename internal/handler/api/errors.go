package api

import (
	"errors"
	"net/http"

	"PairFlow/internal/services/alerts"
	"PairFlow/internal/usecase"
	xhttp "PairFlow/pkg/http"
	xlogger "PairFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// errorResponse maps usecase errors onto AppError responses.
func errorResponse(c echo.Context, log *xlogger.Logger, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnknownSymbol):
		return xhttp.AppErrorResponse(c, xhttp.UnknownSymbolError(c.Param("symbol")).WithError(err))
	case errors.Is(err, usecase.ErrAlertNotFound):
		return xhttp.AppErrorResponse(c, xhttp.AlertNotFoundError(c.Param("id")).WithError(err))
	case errors.Is(err, usecase.ErrInvalidSettings):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError(xhttp.CodeInvalidSettings, "", err.Error(), http.StatusBadRequest).WithError(err))
	case errors.Is(err, alerts.ErrInvalidType),
		errors.Is(err, alerts.ErrInvalidCondition),
		errors.Is(err, alerts.ErrSymbolRequired),
		errors.Is(err, alerts.ErrInvalidValue):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError(xhttp.CodeInvalidAlert, "", err.Error(), http.StatusBadRequest).WithError(err))
	default:
		log.Error("request failed", xlogger.String("path", c.Path()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Something went wrong").WithError(err))
	}
}
