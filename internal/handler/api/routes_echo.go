package api

import (
	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
)

// RoutesEchoHandler exposes the route bandit.
type RoutesEchoHandler struct {
	logger *xlogger.Logger
	router *usecase.RouteSelector
	cycle  *usecase.TradingCycle
}

func NewRoutesEchoHandler(logger *xlogger.Logger, router *usecase.RouteSelector, cycle *usecase.TradingCycle) *RoutesEchoHandler {
	return &RoutesEchoHandler{logger: logger, router: router, cycle: cycle}
}

func (h *RoutesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/routes")
	g.POST("/select", h.Select)
	g.POST("/outcome", h.Outcome)
	g.POST("/reset", h.Reset)
	g.GET("/model", h.Model)
}

func (h *RoutesEchoHandler) Select(c echo.Context) error {
	req := &models.RouteSelectionContext{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sel, err := h.router.SelectRoute(c.Request().Context(), *req)
	if err != nil {
		return tradingErrorResponse(c, h.logger, "select route", err)
	}
	return xhttp.SuccessResponse(c, sel)
}

func (h *RoutesEchoHandler) Outcome(c echo.Context) error {
	req := &models.OutcomeMessage{}
	if err := c.Bind(req); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid outcome body").WithError(err))
	}
	reward := models.BanditReward{
		Context: req.Context,
		Outcome: models.RouteOutcome{Route: req.Route, PnL: req.PnL, Friction: req.Friction, Drawdown: req.Drawdown},
	}
	if err := h.cycle.RecordOutcome(c.Request().Context(), req.BotID, reward); err != nil {
		return tradingErrorResponse(c, h.logger, "record outcome", err)
	}
	return xhttp.SuccessResponse(c, h.router.Snapshot())
}

func (h *RoutesEchoHandler) Reset(c echo.Context) error {
	h.router.ResetBanditModel()
	return xhttp.SuccessResponse(c, h.router.Snapshot())
}

func (h *RoutesEchoHandler) Model(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.router.Snapshot())
}
