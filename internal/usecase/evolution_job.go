package usecase

import (
	"context"
	"fmt"

	"TradeCore/internal/domain/models"
	"TradeCore/pkg/logger"
	"TradeCore/pkg/queue"
)

// EvolutionJobType is the queue message type for asynchronous batch scoring.
const EvolutionJobType = "evolution.guard"

// EvolutionJob applies novelty and adversarial penalties to a queued batch
// and publishes the scored candidates.
type EvolutionJob struct {
	guard *EvolutionGuard
	log   *logger.Logger
}

func NewEvolutionJob(guard *EvolutionGuard, l *logger.Logger) *EvolutionJob {
	return &EvolutionJob{guard: guard, log: l}
}

func (j *EvolutionJob) Name() string { return "evolution-guard" }
func (j *EvolutionJob) Type() string { return EvolutionJobType }

func (j *EvolutionJob) Handle(ctx context.Context, payload interface{}) error {
	batch, err := queue.ParsePayload[models.EvolutionBatch](payload)
	if err != nil {
		return fmt.Errorf("evolution batch: %w", err)
	}
	res := j.Score(ctx, *batch)
	j.log.Info("evolution batch scored",
		logger.String("batch", res.BatchID),
		logger.Int("candidates", len(res.Candidates)),
		logger.Int("segments", len(res.Segments)),
	)
	return nil
}

// Score runs the batch through both penalties and publishes the result.
func (j *EvolutionJob) Score(ctx context.Context, batch models.EvolutionBatch) models.EvolutionBatchResult {
	cands := j.guard.ApplyNoveltyPressure(batch.Candidates)
	cands, segs := j.guard.ApplyAdversarialPenalty(cands)
	res := models.EvolutionBatchResult{BatchID: batch.BatchID, Candidates: cands, Segments: segs}
	j.guard.publish(ctx, models.TradingEvent{Type: models.EventEvolutionBatchScored, Payload: res})
	return res
}

var _ queue.Job = (*EvolutionJob)(nil)
