package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
	"TradeCore/pkg/queue"
)

// EvolutionEchoHandler exposes the evolution guard. Batches go to the queue
// when one is configured and are scored inline otherwise.
type EvolutionEchoHandler struct {
	logger *xlogger.Logger
	guard  *usecase.EvolutionGuard
	job    *usecase.EvolutionJob
	queue  queue.QueueService
}

func NewEvolutionEchoHandler(logger *xlogger.Logger, guard *usecase.EvolutionGuard, job *usecase.EvolutionJob, q queue.QueueService) *EvolutionEchoHandler {
	return &EvolutionEchoHandler{logger: logger, guard: guard, job: job, queue: q}
}

func (h *EvolutionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/evolution")
	g.POST("/novelty", h.Novelty)
	g.POST("/adversarial", h.Adversarial)
	g.POST("/correlation/check", h.CheckCorrelation)
	g.POST("/bots", h.RegisterBot)
	g.GET("/bots/:id", h.BotPerformance)
	g.DELETE("/bots/:id", h.UnregisterBot)
	g.GET("/stats", h.Stats)
	g.POST("/cleanup", h.Cleanup)
	g.POST("/batches", h.SubmitBatch)
	g.GET("/batches/queue", h.QueueDepth)
}

type depthReporter interface {
	Depth(ctx context.Context) (pending, retrying, dead int64, err error)
}

// QueueDepth reports backlog counts when the queue can provide them.
func (h *EvolutionEchoHandler) QueueDepth(c echo.Context) error {
	d, ok := h.queue.(depthReporter)
	if !ok {
		return xhttp.SuccessResponse(c, map[string]interface{}{"enabled": false})
	}
	pending, retrying, dead, err := d.Depth(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("ERR_QUEUE_UNAVAILABLE", "queue depth unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"enabled":  true,
		"pending":  pending,
		"retrying": retrying,
		"dead":     dead,
	})
}

func (h *EvolutionEchoHandler) Novelty(c echo.Context) error {
	req := &models.CandidatesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.guard.ApplyNoveltyPressure(req.Candidates))
}

func (h *EvolutionEchoHandler) Adversarial(c echo.Context) error {
	req := &models.CandidatesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cands, segs := h.guard.ApplyAdversarialPenalty(req.Candidates)
	return xhttp.SuccessResponse(c, models.EvolutionBatchResult{Candidates: cands, Segments: segs})
}

func (h *EvolutionEchoHandler) CheckCorrelation(c echo.Context) error {
	req := &models.CorrelationCheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.guard.CheckCorrelationGuard(c.Request().Context(), req.Candidate))
}

func (h *EvolutionEchoHandler) RegisterBot(c echo.Context) error {
	req := &models.RegisterBotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	fp, err := h.guard.RegisterActiveBot(req.BotID, req.Candidate)
	if err != nil {
		return tradingErrorResponse(c, h.logger, "register bot", err)
	}
	return xhttp.CreatedResponse(c, map[string]string{"botId": req.BotID, "fingerprint": fp})
}

// BotPerformance returns the realized record of a bot fed by trade outcomes.
func (h *EvolutionEchoHandler) BotPerformance(c echo.Context) error {
	req := &models.BotIDParam{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, ok := h.guard.LivePerformance(req.ID)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no outcomes recorded for bot"))
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *EvolutionEchoHandler) UnregisterBot(c echo.Context) error {
	req := &models.BotIDParam{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.guard.UnregisterBot(req.ID) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("bot not registered"))
	}
	return xhttp.NoContentResponse(c)
}

func (h *EvolutionEchoHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.guard.GetOptimizationStats())
}

func (h *EvolutionEchoHandler) Cleanup(c echo.Context) error {
	evicted, reset := h.guard.Cleanup()
	return xhttp.SuccessResponse(c, map[string]interface{}{"evicted": evicted, "noveltyReset": reset})
}

func (h *EvolutionEchoHandler) SubmitBatch(c echo.Context) error {
	req := &models.EvolutionBatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}
	if h.queue == nil {
		return xhttp.SuccessResponse(c, h.job.Score(c.Request().Context(), *req))
	}
	if err := h.queue.PublishMessage(c.Request().Context(), usecase.EvolutionJobType, req); err != nil {
		h.logger.Error("enqueue evolution batch", xlogger.String("batch", req.BatchID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("failed to enqueue batch").WithError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"batchId": req.BatchID, "status": "queued"})
}
