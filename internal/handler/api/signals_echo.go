package api

import (
	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
)

// SignalsEchoHandler serves composite signals and, when a feature store is
// configured, the candles behind them.
type SignalsEchoHandler struct {
	logger  *xlogger.Logger
	agg     *usecase.SignalAggregator
	candles *usecase.CandlesUseCase
}

func NewSignalsEchoHandler(logger *xlogger.Logger, agg *usecase.SignalAggregator, candles *usecase.CandlesUseCase) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, agg: agg, candles: candles}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.DELETE("/signals/cache", h.ClearCache)
	if h.candles != nil {
		g.GET("/candles", h.Candles)
	}
}

func (h *SignalsEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig := h.agg.GenerateSignals(c.Request().Context(), req.Symbol, req.Timeframe)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsEchoHandler) ClearCache(c echo.Context) error {
	h.agg.ClearCache(c.Request().Context())
	return xhttp.NoContentResponse(c)
}

func (h *SignalsEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.candles.GetLatest(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.Timeframe),
		Limit:     req.Limit,
	})
	if err != nil {
		return tradingErrorResponse(c, h.logger, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}
