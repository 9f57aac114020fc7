package usecase

import (
	"context"
	"fmt"
	"strings"

	"TradeCore/internal/domain/models"
	"TradeCore/pkg/logger"
)

// TradingCycle runs one decision for a symbol: composite signal, brain
// decision, route choice and the paper fill. It also routes realized
// outcomes back to the bandit and the evolution guard.
type TradingCycle struct {
	decisions *DecisionEnricher
	router    *RouteSelector
	ledger    *PaperLedger
	guard     *EvolutionGuard
	log       *logger.Logger
}

func NewTradingCycle(decisions *DecisionEnricher, router *RouteSelector, ledger *PaperLedger, guard *EvolutionGuard) *TradingCycle {
	return &TradingCycle{decisions: decisions, router: router, ledger: ledger, guard: guard}
}

func (c *TradingCycle) SetLogger(l *logger.Logger) { c.log = l }

func (c *TradingCycle) Run(ctx context.Context, req models.CycleRequest) (models.CycleResult, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return models.CycleResult{}, models.ValidationError("invalid_symbol", models.ErrInvalidSymbol)
	}
	if !finitePositive(req.Quantity) {
		return models.CycleResult{}, models.ValidationError("invalid_quantity", models.ErrInvalidQuantity)
	}
	if req.Timeframe == "" {
		req.Timeframe = "1h"
	}

	in := models.BrainContext{Symbol: req.Symbol, Timeframe: req.Timeframe}
	if pos, ok := c.ledger.Position(req.Symbol); ok {
		in.Position = &pos
	}

	d, sig, err := c.decisions.Decide(ctx, in)
	res := models.CycleResult{Symbol: req.Symbol, Signal: sig}
	if err != nil {
		return res, &models.TradingError{Kind: models.KindUpstream, Code: "brain_unavailable", Err: err}
	}
	res.Decision = d

	switch d.Action {
	case models.ActionEnter:
		rc := req.RouteContext
		if len(rc.AvailableRoutes) == 0 {
			rc.AvailableRoutes = []models.RouteCandidate{{Type: models.RouteEquity}}
		}
		sel, err := c.router.SelectRoute(ctx, rc)
		if err != nil {
			return res, fmt.Errorf("select route: %w", err)
		}
		res.Route = &sel
		order, err := c.ledger.PlaceOrder(ctx, models.OrderRequest{
			Symbol:   req.Symbol,
			Side:     models.SideBuy,
			Quantity: req.Quantity,
			Type:     models.OrderMarket,
		})
		if err != nil {
			return res, fmt.Errorf("enter %s: %w", req.Symbol, err)
		}
		res.Order = &order

	case models.ActionExit:
		if in.Position == nil {
			res.Skipped = "no position to exit"
			break
		}
		order, err := c.ledger.PlaceOrder(ctx, models.OrderRequest{
			Symbol:   req.Symbol,
			Side:     models.SideSell,
			Quantity: in.Position.Quantity,
			Type:     models.OrderMarket,
		})
		if err != nil {
			return res, fmt.Errorf("exit %s: %w", req.Symbol, err)
		}
		res.Order = &order

	default:
		res.Skipped = string(models.ActionNoTrade)
	}

	c.log.Info("trading cycle complete",
		logger.String("symbol", req.Symbol),
		logger.String("action", string(d.Action)),
		logger.String("signal", string(sig.Signal)),
		logger.Bool("filled", res.Order != nil),
	)
	return res, nil
}

// RecordOutcome feeds a realized result to the bandit and, when botID is
// set, to the bot's live record.
func (c *TradingCycle) RecordOutcome(ctx context.Context, botID string, reward models.BanditReward) error {
	if err := c.router.UpdateBanditModel(ctx, reward); err != nil {
		return err
	}
	if botID != "" && c.guard != nil {
		c.guard.RecordLiveOutcome(botID, reward.Outcome.PnL)
	}
	return nil
}
