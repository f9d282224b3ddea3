package api

import (
	"bytes"
	"strings"
	"time"

	models "PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/internal/service/ratelimit"
	"PairFlow/internal/services/export"
	"PairFlow/internal/usecase"
	xhttp "PairFlow/pkg/http"
	xlogger "PairFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExportLimit is the per-client token bucket applied to download routes.
type ExportLimit struct {
	Capacity     float64
	RefillPerSec float64
}

// MarketHandler serves the tick store and its downloads.
type MarketHandler struct {
	logger  *xlogger.Logger
	market  *usecase.Market
	limiter *ratelimit.Limiter
	limit   ExportLimit
	now     func() time.Time
}

func NewMarketHandler(logger *xlogger.Logger, market *usecase.Market, limiter *ratelimit.Limiter, limit ExportLimit) *MarketHandler {
	return &MarketHandler{logger: logger, market: market, limiter: limiter, limit: limit, now: time.Now}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	var exportMW []echo.MiddlewareFunc
	if h.limiter != nil {
		exportMW = append(exportMW, ratelimit.Middleware(h.limiter, h.limit.Capacity, h.limit.RefillPerSec))
	}
	g.GET("/symbols", h.Symbols)
	g.GET("/ticks/:symbol", h.Ticks, exportMW...)
	g.GET("/ohlc/:symbol/:tf", h.Bars, exportMW...)
	g.GET("/stats/:symbol", h.Stats)
	g.DELETE("/data", h.Clear)
}

func (h *MarketHandler) Symbols(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.market.Symbols())
}

func (h *MarketHandler) Ticks(c echo.Context) error {
	req := &models.TicksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticks, err := h.market.Ticks(req.Symbol, req.Limit)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	if req.Format == "" {
		return xhttp.ListResponse(c, ticks, int64(len(ticks)))
	}

	f := export.Format(req.Format)
	var buf bytes.Buffer
	if err := export.Ticks(&buf, f, ticks); err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.AttachmentResponse(c, export.FileName(strings.ToLower(req.Symbol), "ticks", f, h.now()), f.ContentType(), buf.Bytes())
}

func (h *MarketHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.Timeframe(req.Timeframe)
	bars, err := h.market.Bars(req.Symbol, tf, req.Limit)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	if req.Format == "" {
		return xhttp.ListResponse(c, bars, int64(len(bars)))
	}

	f := export.Format(req.Format)
	var buf bytes.Buffer
	if err := export.Bars(&buf, f, bars); err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.AttachmentResponse(c, export.FileName(strings.ToLower(req.Symbol), "ohlc_"+string(tf), f, h.now()), f.ContentType(), buf.Bytes())
}

func (h *MarketHandler) Stats(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stats, err := h.market.Stats(req.Symbol)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *MarketHandler) Clear(c echo.Context) error {
	h.market.Clear()
	h.logger.Info("market data cleared")
	return xhttp.SuccessResponse(c, nil)
}
