package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"TradeCore/internal/domain/models"
	pkgkafka "TradeCore/pkg/kafka"
	"TradeCore/pkg/logger"
)

// OutcomeHandler consumes realized trade outcomes and feeds them back.
type OutcomeHandler struct {
	topic string
	cycle *TradingCycle
	log   *logger.Logger
}

func NewOutcomeHandler(topic string, cycle *TradingCycle, l *logger.Logger) *OutcomeHandler {
	return &OutcomeHandler{topic: topic, cycle: cycle, log: l}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

func (h *OutcomeHandler) Handle(ctx context.Context, b []byte) error {
	var m models.OutcomeMessage
	if err := json.Unmarshal(b, &m); err != nil {
		// redelivery cannot fix a body that does not decode
		h.log.Warn("outcome dropped", logger.Int("bytes", len(b)), logger.Error(fmt.Errorf("decode outcome: %w", err)))
		return nil
	}
	err := h.cycle.RecordOutcome(ctx, m.BotID, models.BanditReward{
		Context: m.Context,
		Outcome: models.RouteOutcome{Route: m.Route, PnL: m.PnL, Friction: m.Friction, Drawdown: m.Drawdown},
	})
	if err != nil {
		if models.KindOf(err) == models.KindValidation {
			// retrying a malformed outcome cannot succeed
			h.log.Warn("outcome dropped", logger.String("route", string(m.Route)), logger.Error(err))
			return nil
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*OutcomeHandler)(nil)
