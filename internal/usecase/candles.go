package usecase

import (
	"context"
	"fmt"
	"strings"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
)

const maxCandles = 5000

// CandlesUseCase serves the candles the local indicator service computes from.
type CandlesUseCase struct {
	store domrepo.FeatureStore
}

func NewCandlesUseCase(store domrepo.FeatureStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Count     int             `json:"count"`
	Candles   []models.Candle `json:"candles"`
}

// GetLatest returns up to Limit candles, oldest first.
func (uc *CandlesUseCase) GetLatest(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	if p.Symbol == "" {
		return nil, models.ValidationError("invalid_symbol", models.ErrInvalidSymbol)
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		p.Timeframe = domrepo.DefaultTimeframe()
	}
	if p.Limit <= 0 {
		p.Limit = 200
	}
	if p.Limit > maxCandles {
		p.Limit = maxCandles
	}

	candles, err := uc.store.GetLatestNCandles(ctx, p.Symbol, p.Limit, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(candles),
		Candles:   candles,
	}, nil
}
