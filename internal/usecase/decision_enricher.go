package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domsvc "TradeCore/internal/domain/service"
	"TradeCore/pkg/logger"
)

const (
	agreeBoost    = 1.1
	disagreeScale = 0.9
)

// DecisionEnricher merges the composite signal into the brain's context and
// nudges the brain's confidence by how well the two agree.
type DecisionEnricher struct {
	signals *SignalAggregator
	brain   domsvc.BrainService
	log     *logger.Logger
}

func NewDecisionEnricher(signals *SignalAggregator, brain domsvc.BrainService) *DecisionEnricher {
	return &DecisionEnricher{signals: signals, brain: brain}
}

func (e *DecisionEnricher) SetLogger(l *logger.Logger) { e.log = l }

// Decide asks the brain for a decision on in, enriched with the current composite signal.
func (e *DecisionEnricher) Decide(ctx context.Context, in models.BrainContext) (models.Decision, models.CompositeSignal, error) {
	sig := e.signals.GenerateSignals(ctx, in.Symbol, in.Timeframe)

	enriched := in
	enriched.Indicators = make(map[string]interface{}, len(in.Indicators)+1)
	for k, v := range in.Indicators {
		enriched.Indicators[k] = v
	}
	enriched.Indicators["composite"] = sig
	if enriched.Regime == "" {
		enriched.Regime = sig.Regime
	}

	start := time.Now()
	d, err := e.brain.MakeDecision(ctx, enriched)
	observeCall("brain", start, err)
	if err != nil {
		return models.Decision{}, sig, fmt.Errorf("brain decision: %w", err)
	}

	out := AdjustDecision(d, sig)
	e.log.Debug("decision enriched",
		logger.String("symbol", in.Symbol),
		logger.String("action", string(out.Action)),
		logger.Float64("brain_confidence", d.Confidence),
		logger.Float64("confidence", out.Confidence),
		logger.String("signal", string(sig.Signal)),
	)
	return out, sig, nil
}

// AdjustDecision scales confidence by 1.1 when the signal agrees with the
// action and by 0.9 when it contradicts it. Neutral or degraded signals and
// no_trade decisions pass through with only a reasoning line added.
func AdjustDecision(d models.Decision, sig models.CompositeSignal) models.Decision {
	out := d
	out.Reasoning = append(append([]string(nil), d.Reasoning...), "")
	line := &out.Reasoning[len(out.Reasoning)-1]

	if sig.Degraded() {
		*line = "Technical signals unavailable"
		return out
	}

	agree := (d.Action == models.ActionEnter && sig.Signal == models.SignalBuy) ||
		(d.Action == models.ActionExit && sig.Signal == models.SignalSell)
	disagree := (d.Action == models.ActionEnter && sig.Signal == models.SignalSell) ||
		(d.Action == models.ActionExit && sig.Signal == models.SignalBuy)

	switch {
	case agree:
		out.Confidence = clamp01(d.Confidence * agreeBoost)
		*line = fmt.Sprintf("Technical signals confirm (%s, %.0f%% confidence)", sig.Signal, sig.Confidence*100)
	case disagree:
		out.Confidence = clamp01(d.Confidence * disagreeScale)
		*line = fmt.Sprintf("Technical signals diverge (%s, %.0f%% confidence)", sig.Signal, sig.Confidence*100)
	default:
		*line = fmt.Sprintf("Technical signals %s (%.0f%% confidence)", sig.Signal, sig.Confidence*100)
	}
	return out
}
