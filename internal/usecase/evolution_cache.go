package usecase

import (
	"context"
	"fmt"
	"strings"

	pkgcache "TradeCore/pkg/cache"
	"TradeCore/pkg/logger"
)

// GetCachedIndicator returns an indicator series, computing it on a miss.
// Failed computations are not cached.
func (g *EvolutionGuard) GetCachedIndicator(ctx context.Context, symbol, indicator, timeframe string, params map[string]float64) ([]float64, error) {
	key := pkgcache.GenerateKeyWithParams(strings.ToUpper(symbol), strings.ToLower(indicator), timeframe, pkgcache.HashParams(params))

	if v, ok := g.cache.Get(key); ok {
		g.hits.Add(1)
		return v.([]float64), nil
	}
	g.misses.Add(1)

	if g.calc == nil {
		return nil, fmt.Errorf("calculate %s: no indicator source configured", indicator)
	}
	series, err := g.calc.Calculate(ctx, symbol, indicator, timeframe, params)
	if err != nil {
		g.log.Debug("indicator calculation failed", logger.String("key", key), logger.Error(err))
		return nil, fmt.Errorf("calculate %s: %w", indicator, err)
	}
	g.cache.Set(key, series, g.indicatorTTL)
	return series, nil
}
