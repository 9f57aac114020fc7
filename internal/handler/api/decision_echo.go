package api

import (
	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
)

type decisionResponse struct {
	Decision models.Decision        `json:"decision"`
	Signal   models.CompositeSignal `json:"signal"`
}

type DecisionEchoHandler struct {
	logger   *xlogger.Logger
	enricher *usecase.DecisionEnricher
}

func NewDecisionEchoHandler(logger *xlogger.Logger, enricher *usecase.DecisionEnricher) *DecisionEchoHandler {
	return &DecisionEchoHandler{logger: logger, enricher: enricher}
}

func (h *DecisionEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/decision", h.Decide)
}

func (h *DecisionEchoHandler) Decide(c echo.Context) error {
	req := &models.BrainContext{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, sig, err := h.enricher.Decide(c.Request().Context(), *req)
	if err != nil {
		h.logger.Warn("brain decision failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("ERR_BRAIN_UNAVAILABLE", "decision service unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, decisionResponse{Decision: d, Signal: sig})
}
