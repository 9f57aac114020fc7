package api

import (
	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
)

type CycleEchoHandler struct {
	logger *xlogger.Logger
	cycle  *usecase.TradingCycle
}

func NewCycleEchoHandler(logger *xlogger.Logger, cycle *usecase.TradingCycle) *CycleEchoHandler {
	return &CycleEchoHandler{logger: logger, cycle: cycle}
}

func (h *CycleEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/cycle/run", h.Run)
}

func (h *CycleEchoHandler) Run(c echo.Context) error {
	req := &models.CycleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.cycle.Run(c.Request().Context(), *req)
	if err != nil {
		return tradingErrorResponse(c, h.logger, "decision cycle", err)
	}
	return xhttp.SuccessResponse(c, res)
}
