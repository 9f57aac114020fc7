package indicators

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	domsvc "TradeCore/internal/domain/service"
	svccache "TradeCore/internal/service/cache"
	"TradeCore/internal/services/features"
	applogger "TradeCore/pkg/logger"

	"github.com/markcheno/go-talib"
)

const (
	localCacheTTL = 15 * time.Second
	regimeCandles = 200
	volWindow     = 20
	trendLookback = 5
	// EMA20 slope beyond this over trendLookback bars counts as trending
	trendThreshold = 0.01
)

// TalibIndicatorService computes indicators locally from feature-store candles.
// It serves both as the Indicator Service and as the evolution guard's calculator.
type TalibIndicatorService struct {
	store repository.FeatureStore
	cache *svccache.TTLCache
	l     *applogger.Logger
}

func NewTalibIndicatorService(store repository.FeatureStore) *TalibIndicatorService {
	return &TalibIndicatorService{store: store, cache: svccache.NewTTLCache()}
}

func (s *TalibIndicatorService) SetLogger(l *applogger.Logger) { s.l = l }

func (s *TalibIndicatorService) candles(ctx context.Context, symbol string, tf repository.Timeframe, n int) ([]models.Candle, error) {
	key := fmt.Sprintf("candles:%s:%s:%d", symbol, tf, n)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.Candle), nil
	}
	cs, err := s.store.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, cs, localCacheTTL)
	return cs, nil
}

func (s *TalibIndicatorService) GetIndicators(ctx context.Context, symbol, timeframe string, count int) (*models.Indicators, error) {
	tf := repository.NormalizeTimeframe(timeframe)
	cs, err := s.candles(ctx, symbol, tf, count)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(cs) == 0 {
		return nil, nil
	}
	return ComputeIndicators(cs), nil
}

// ComputeIndicators derives the reading set from ascending candles. Sections
// that need more history than available are left nil or zero.
func ComputeIndicators(cs []models.Candle) *models.Indicators {
	closes := make([]float64, len(cs))
	volumes := make([]float64, len(cs))
	for i, c := range cs {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	n := len(closes)
	ind := &models.Indicators{Price: closes[n-1]}

	if n > 14 {
		v := lastValid(talib.Rsi(closes, 14))
		ind.RSI = &v
	}
	if n >= 34 {
		m, sig, hist := talib.Macd(closes, 12, 26, 9)
		ind.MACD = &models.MACDValue{MACD: lastValid(m), Signal: lastValid(sig), Histogram: lastValid(hist)}
	}
	if n >= 20 {
		up, mid, lo := talib.BBands(closes, 20, 2, 2, talib.SMA)
		ind.Bollinger = &models.BollingerBands{Upper: lastValid(up), Middle: lastValid(mid), Lower: lastValid(lo)}
		ind.Volume = &models.VolumeStats{Current: volumes[n-1], Average: mean(volumes[n-20:])}
	}

	ma := models.MovingAverages{
		EMA12:  maIfEnough(closes, 12, talib.Ema),
		EMA26:  maIfEnough(closes, 26, talib.Ema),
		SMA20:  maIfEnough(closes, 20, talib.Sma),
		SMA50:  maIfEnough(closes, 50, talib.Sma),
		SMA200: maIfEnough(closes, 200, talib.Sma),
	}
	if ma != (models.MovingAverages{}) {
		ind.Averages = &ma
	}
	return ind
}

// GetMarketRegime labels trend from the EMA20 slope and volatility from the
// recent-to-long realized volatility ratio, on hourly candles.
func (s *TalibIndicatorService) GetMarketRegime(ctx context.Context, symbol string) (models.Regime, error) {
	cs, err := s.candles(ctx, symbol, repository.TF1h, regimeCandles)
	if err != nil {
		return models.Regime{}, fmt.Errorf("load candles: %w", err)
	}
	state, conf := ClassifyRegime(cs, repository.TF1h)
	return models.Regime{Symbol: symbol, Timestamp: time.Now().UTC(), State: state, Confidence: conf}, nil
}

// ClassifyRegime returns one of the nine trend_vol labels, or "unknown" when history is short.
func ClassifyRegime(cs []models.Candle, tf repository.Timeframe) (string, float64) {
	if len(cs) < 2*volWindow+1 {
		return "unknown", 0
	}
	closes := make([]float64, len(cs))
	for i, c := range cs {
		closes[i] = c.Close
	}
	slope := features.Slope(talib.Ema(closes, 20), trendLookback)
	trend := "sideways"
	switch {
	case slope > trendThreshold:
		trend = "bull"
	case slope < -trendThreshold:
		trend = "bear"
	}

	rets := features.ComputeLogReturns(cs)
	bpy := features.BarsPerYear(tf)
	recent := features.RealizedVolatility(rets, volWindow, bpy)
	long := features.RealizedVolatility(rets, len(rets), bpy)
	vol := "normal"
	// below this the series is effectively deterministic and the ratio is noise
	if long > 1e-6 {
		switch ratio := recent / long; {
		case ratio < 0.75:
			vol = "low"
		case ratio > 1.25:
			vol = "high"
		}
	}

	conf := math.Min(1, 0.5+math.Abs(slope)/(4*trendThreshold))
	return trend + "_" + vol + "_vol", conf
}

// Calculate returns a full series for one named indicator. Supported: rsi, ema,
// sma, atr, macd (histogram), bbands_upper, bbands_middle, bbands_lower.
func (s *TalibIndicatorService) Calculate(ctx context.Context, symbol, indicator, timeframe string, params map[string]float64) ([]float64, error) {
	tf := repository.NormalizeTimeframe(timeframe)
	count := intParam(params, "count", 200)
	cs, err := s.candles(ctx, symbol, tf, count)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(cs) == 0 {
		return nil, nil
	}
	closes := make([]float64, len(cs))
	highs := make([]float64, len(cs))
	lows := make([]float64, len(cs))
	for i, c := range cs {
		closes[i], highs[i], lows[i] = c.Close, c.High, c.Low
	}
	period := intParam(params, "period", 14)
	if period >= len(closes) {
		return nil, fmt.Errorf("%s: need more than %d candles, have %d", indicator, period, len(closes))
	}

	switch strings.ToLower(indicator) {
	case "rsi":
		return talib.Rsi(closes, period), nil
	case "ema":
		return talib.Ema(closes, period), nil
	case "sma":
		return talib.Sma(closes, period), nil
	case "atr":
		return talib.Atr(highs, lows, closes, period), nil
	case "macd":
		_, _, hist := talib.Macd(closes, intParam(params, "fast", 12), intParam(params, "slow", 26), intParam(params, "signal", 9))
		return hist, nil
	case "bbands_upper", "bbands_middle", "bbands_lower":
		dev := params["dev"]
		if dev <= 0 {
			dev = 2
		}
		up, mid, lo := talib.BBands(closes, period, dev, dev, talib.SMA)
		switch indicator {
		case "bbands_upper":
			return up, nil
		case "bbands_middle":
			return mid, nil
		}
		return lo, nil
	default:
		return nil, fmt.Errorf("unsupported indicator %q", indicator)
	}
}

func (s *TalibIndicatorService) ClearCache() {
	s.cache.Clear()
	s.l.Debug("local indicator cache cleared")
}

func maIfEnough(closes []float64, period int, fn func([]float64, int) []float64) float64 {
	if len(closes) < period {
		return 0
	}
	return lastValid(fn(closes, period))
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func intParam(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok && v >= 1 {
		return int(v)
	}
	return def
}

var (
	_ domsvc.IndicatorService    = (*TalibIndicatorService)(nil)
	_ domsvc.IndicatorCalculator = (*TalibIndicatorService)(nil)
)
