package indicators

import (
	"context"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domsvc "TradeCore/internal/domain/service"
	svccache "TradeCore/internal/service/cache"
	"TradeCore/internal/service/metrics"

	"github.com/tidwall/gjson"
)

const httpIndicatorTTL = 10 * time.Second

// HTTPIndicatorService reads indicators and the regime label from a remote service.
// Responses are memoized briefly so a burst of signal requests makes one call.
type HTTPIndicatorService struct {
	base  *HTTPServiceBase
	cache *svccache.TTLCache
}

func NewHTTPIndicatorService(base *HTTPServiceBase) *HTTPIndicatorService {
	return &HTTPIndicatorService{base: base, cache: svccache.NewTTLCache()}
}

type indicatorRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Count     int    `json:"count"`
}

func (s *HTTPIndicatorService) GetIndicators(ctx context.Context, symbol, timeframe string, count int) (*models.Indicators, error) {
	key := fmt.Sprintf("ind:%s:%s:%d", symbol, timeframe, count)
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.Indicators), nil
	}

	start := time.Now()
	res, err := s.base.PostRaw(ctx, "/indicators", indicatorRequest{Symbol: symbol, Timeframe: timeframe, Count: count})
	metrics.CollaboratorLatency.WithLabelValues("indicators").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("indicators").Inc()
		return nil, err
	}
	ind := parseIndicators(res)
	if ind != nil {
		s.cache.Set(key, ind, httpIndicatorTTL)
	}
	return ind, nil
}

func (s *HTTPIndicatorService) GetMarketRegime(ctx context.Context, symbol string) (models.Regime, error) {
	start := time.Now()
	res, err := s.base.PostRaw(ctx, "/regime", map[string]string{"symbol": symbol})
	metrics.CollaboratorLatency.WithLabelValues("regime").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("regime").Inc()
		return models.Regime{}, err
	}
	state := firstString(res, "regime", "state", "label")
	if state == "" {
		state = "unknown"
	}
	return models.Regime{
		Symbol:     symbol,
		Timestamp:  time.Now().UTC(),
		State:      state,
		Confidence: res.Get("confidence").Float(),
	}, nil
}

func (s *HTTPIndicatorService) ClearCache() { s.cache.Clear() }

// parseIndicators accepts flat numbers or {"value": n} objects for scalar
// readings. An empty or null body means no data.
func parseIndicators(res gjson.Result) *models.Indicators {
	if !res.Exists() || res.Type == gjson.Null || (res.IsObject() && len(res.Map()) == 0) {
		return nil
	}
	ind := &models.Indicators{Price: firstFloat(res, "price", "close", "last")}

	if v, ok := scalar(res.Get("rsi")); ok {
		ind.RSI = &v
	}
	if m := res.Get("macd"); m.IsObject() {
		ind.MACD = &models.MACDValue{
			MACD:      firstFloat(m, "macd", "value"),
			Signal:    m.Get("signal").Float(),
			Histogram: firstFloat(m, "histogram", "hist"),
		}
	}
	if b := firstObject(res, "bollinger", "bbands", "bollingerBands"); b.Exists() {
		ind.Bollinger = &models.BollingerBands{
			Upper:  b.Get("upper").Float(),
			Middle: b.Get("middle").Float(),
			Lower:  b.Get("lower").Float(),
		}
	}
	if v := res.Get("volume"); v.IsObject() {
		ind.Volume = &models.VolumeStats{
			Current: firstFloat(v, "current", "value"),
			Average: firstFloat(v, "average", "avg", "sma20"),
		}
	}

	avg := res
	if a := res.Get("averages"); a.IsObject() {
		avg = a
	}
	ma := models.MovingAverages{
		EMA12:  flexFloat(avg, "ema12"),
		EMA26:  flexFloat(avg, "ema26"),
		SMA20:  flexFloat(avg, "sma20"),
		SMA50:  flexFloat(avg, "sma50"),
		SMA200: flexFloat(avg, "sma200"),
	}
	if ma != (models.MovingAverages{}) {
		ind.Averages = &ma
	}
	return ind
}

func scalar(r gjson.Result) (float64, bool) {
	switch {
	case r.Type == gjson.Number:
		return r.Float(), true
	case r.IsObject() && r.Get("value").Type == gjson.Number:
		return r.Get("value").Float(), true
	}
	return 0, false
}

func flexFloat(r gjson.Result, key string) float64 {
	v, _ := scalar(r.Get(key))
	return v
}

func firstFloat(r gjson.Result, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := scalar(r.Get(k)); ok {
			return v
		}
	}
	return 0
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

func firstObject(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.IsObject() {
			return v
		}
	}
	return gjson.Result{}
}

var _ domsvc.IndicatorService = (*HTTPIndicatorService)(nil)
