package indicators

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	xhttp "TradeCore/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	candles []models.Candle
	calls   int
}

func (f *fakeStore) GetLatestNCandles(_ context.Context, _ string, n int, _ repository.Timeframe) ([]models.Candle, error) {
	f.calls++
	if n < len(f.candles) {
		return f.candles[len(f.candles)-n:], nil
	}
	return f.candles, nil
}

func risingCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		p := 100 * math.Pow(1.01, float64(i))
		out[i] = models.Candle{Bucket: t0.Add(time.Duration(i) * time.Hour), Symbol: "ABC", Open: p, High: p, Low: p, Close: p, Volume: 10}
	}
	return out
}

func TestComputeIndicatorsRising(t *testing.T) {
	ind := ComputeIndicators(risingCandles(220))
	require.NotNil(t, ind.RSI)
	assert.Greater(t, *ind.RSI, 70.0)
	require.NotNil(t, ind.MACD)
	assert.Greater(t, ind.MACD.MACD, 0.0)
	require.NotNil(t, ind.Bollinger)
	assert.Greater(t, ind.Bollinger.Upper, ind.Bollinger.Lower)
	require.NotNil(t, ind.Averages)
	assert.Greater(t, ind.Averages.EMA12, ind.Averages.EMA26)
	assert.Greater(t, ind.Averages.SMA50, ind.Averages.SMA200)
	assert.InDelta(t, 10, ind.Volume.Average, 1e-9)
}

func TestComputeIndicatorsShortHistory(t *testing.T) {
	ind := ComputeIndicators(risingCandles(5))
	assert.Nil(t, ind.RSI)
	assert.Nil(t, ind.MACD)
	assert.Nil(t, ind.Bollinger)
	assert.Nil(t, ind.Averages)
	assert.Greater(t, ind.Price, 100.0)
}

func TestClassifyRegime(t *testing.T) {
	state, conf := ClassifyRegime(risingCandles(200), repository.TF1h)
	assert.Equal(t, "bull_normal_vol", state)
	assert.Greater(t, conf, 0.5)

	state, _ = ClassifyRegime(risingCandles(10), repository.TF1h)
	assert.Equal(t, "unknown", state)
}

func TestTalibServiceNoData(t *testing.T) {
	svc := NewTalibIndicatorService(&fakeStore{})
	ind, err := svc.GetIndicators(context.Background(), "ABC", "1h", 200)
	require.NoError(t, err)
	assert.Nil(t, ind)
}

func TestTalibServiceCachesCandles(t *testing.T) {
	store := &fakeStore{candles: risingCandles(100)}
	svc := NewTalibIndicatorService(store)
	ctx := context.Background()

	_, err := svc.GetIndicators(ctx, "ABC", "1h", 100)
	require.NoError(t, err)
	_, err = svc.GetIndicators(ctx, "ABC", "1h", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)

	svc.ClearCache()
	_, err = svc.GetIndicators(ctx, "ABC", "1h", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestTalibCalculate(t *testing.T) {
	svc := NewTalibIndicatorService(&fakeStore{candles: risingCandles(60)})
	ctx := context.Background()

	rsi, err := svc.Calculate(ctx, "ABC", "rsi", "1h", map[string]float64{"period": 14})
	require.NoError(t, err)
	assert.Len(t, rsi, 60)

	_, err = svc.Calculate(ctx, "ABC", "vwap", "1h", nil)
	require.Error(t, err)

	_, err = svc.Calculate(ctx, "ABC", "sma", "1h", map[string]float64{"period": 100})
	require.Error(t, err)
}

func newTestBase(t *testing.T, h http.HandlerFunc) *HTTPServiceBase {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPServiceBaseWithClient(srv.URL, xhttp.NewClient(xhttp.WithHTTPClient(srv.Client())))
}

func TestHTTPIndicatorServiceParses(t *testing.T) {
	var hits int32
	base := newTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/indicators", r.URL.Path)
		var req indicatorRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ABC", req.Symbol)
		_, _ = w.Write([]byte(`{"data":{
			"price": 101.5,
			"rsi": {"value": 28},
			"macd": {"macd": 0.4, "signal": 0.2, "histogram": 0.2},
			"bollinger": {"upper": 110, "middle": 100, "lower": 90},
			"volume": {"current": 300, "average": 150},
			"ema12": 102, "ema26": 100, "sma20": 101, "sma50": 99, "sma200": 95
		}}`))
	})
	svc := NewHTTPIndicatorService(base)

	ind, err := svc.GetIndicators(context.Background(), "ABC", "1h", 200)
	require.NoError(t, err)
	require.NotNil(t, ind)
	assert.Equal(t, 101.5, ind.Price)
	require.NotNil(t, ind.RSI)
	assert.Equal(t, 28.0, *ind.RSI)
	assert.Equal(t, 0.2, ind.MACD.Histogram)
	assert.Equal(t, 90.0, ind.Bollinger.Lower)
	assert.Equal(t, 150.0, ind.Volume.Average)
	assert.Equal(t, 95.0, ind.Averages.SMA200)

	_, err = svc.GetIndicators(context.Background(), "ABC", "1h", 200)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHTTPIndicatorServiceEmpty(t *testing.T) {
	base := newTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	ind, err := NewHTTPIndicatorService(base).GetIndicators(context.Background(), "ABC", "1h", 200)
	require.NoError(t, err)
	assert.Nil(t, ind)
}

func TestHTTPIndicatorServiceRegime(t *testing.T) {
	base := newTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/regime", r.URL.Path)
		_, _ = w.Write([]byte(`{"regime":"bear_high_vol","confidence":0.7}`))
	})
	reg, err := NewHTTPIndicatorService(base).GetMarketRegime(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "bear_high_vol", reg.State)
	assert.Equal(t, 0.7, reg.Confidence)
}

func TestHTTPIndicatorServiceError(t *testing.T) {
	base := newTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := NewHTTPIndicatorService(base).GetIndicators(context.Background(), "ABC", "1h", 200)
	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestHTTPBrainService(t *testing.T) {
	base := newTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/decision", r.URL.Path)
		var in models.BrainContext
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ABC", in.Symbol)
		_, _ = w.Write([]byte(`{"action":"enter","confidence":0.6,"reasoning":["momentum"]}`))
	})
	d, err := NewHTTPBrainService(base).MakeDecision(context.Background(), models.BrainContext{Symbol: "ABC"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionEnter, d.Action)
	assert.Equal(t, 0.6, d.Confidence)
	assert.Equal(t, []string{"momentum"}, d.Reasoning)
}

func TestHTTPBrainServiceUnknownAction(t *testing.T) {
	base := newTestBase(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"action":"hedge","confidence":0.9,"reasoning":"odd"}`))
	})
	d, err := NewHTTPBrainService(base).MakeDecision(context.Background(), models.BrainContext{Symbol: "ABC"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionNoTrade, d.Action)
	assert.Equal(t, []string{"odd"}, d.Reasoning)
}
