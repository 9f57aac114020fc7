package indicators

import (
	"context"
	"time"

	"TradeCore/internal/domain/models"
	domsvc "TradeCore/internal/domain/service"
	"TradeCore/internal/service/metrics"
)

// HTTPBrainService asks the remote decision service what to do with an enriched context.
type HTTPBrainService struct {
	base *HTTPServiceBase
}

func NewHTTPBrainService(base *HTTPServiceBase) *HTTPBrainService {
	return &HTTPBrainService{base: base}
}

func (s *HTTPBrainService) MakeDecision(ctx context.Context, in models.BrainContext) (models.Decision, error) {
	start := time.Now()
	res, err := s.base.PostRaw(ctx, "/decision", in)
	metrics.CollaboratorLatency.WithLabelValues("brain").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("brain").Inc()
		return models.Decision{}, err
	}

	d := models.Decision{
		Action:     models.ActionNoTrade,
		Confidence: res.Get("confidence").Float(),
	}
	switch a := models.DecisionAction(firstString(res, "action", "decision")); a {
	case models.ActionEnter, models.ActionExit:
		d.Action = a
	}
	reasoning := res.Get("reasoning")
	if reasoning.IsArray() {
		for _, r := range reasoning.Array() {
			d.Reasoning = append(d.Reasoning, r.String())
		}
	} else if reasoning.Exists() && reasoning.String() != "" {
		d.Reasoning = []string{reasoning.String()}
	}
	return d, nil
}

var _ domsvc.BrainService = (*HTTPBrainService)(nil)
