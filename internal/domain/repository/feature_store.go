package repository

import (
	"context"

	"TradeCore/internal/domain/models"
)

// FeatureStore provides read-only access to candles for the local indicator calculator.
type FeatureStore interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
