package service

import (
	"context"

	"TradeCore/internal/domain/models"
)

// IndicatorService supplies raw indicator readings and the regime label.
// GetIndicators returns (nil, nil) when the symbol has no data.
type IndicatorService interface {
	GetIndicators(ctx context.Context, symbol, timeframe string, count int) (*models.Indicators, error)
	GetMarketRegime(ctx context.Context, symbol string) (models.Regime, error)
	ClearCache()
}

// IndicatorCalculator computes one indicator series on demand.
type IndicatorCalculator interface {
	Calculate(ctx context.Context, symbol, indicator, timeframe string, params map[string]float64) ([]float64, error)
}

// MarketData is the reference price source used to fill paper orders.
type MarketData interface {
	GetTicker(ctx context.Context, symbol string) (models.Ticker, error)
}

// BrainService turns an enriched context into an enter/exit/no_trade decision.
type BrainService interface {
	MakeDecision(ctx context.Context, in models.BrainContext) (models.Decision, error)
}
