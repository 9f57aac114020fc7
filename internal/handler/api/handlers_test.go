package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/repository"
	"TradeCore/internal/usecase"
	xlogger "TradeCore/pkg/logger"
)

type emptyIndicators struct{}

func (emptyIndicators) GetIndicators(context.Context, string, string, int) (*models.Indicators, error) {
	return nil, nil
}

func (emptyIndicators) GetMarketRegime(_ context.Context, symbol string) (models.Regime, error) {
	return models.Regime{Symbol: symbol, State: "sideways_normal"}, nil
}

func (emptyIndicators) ClearCache() {}

type noCalc struct{}

func (noCalc) Calculate(context.Context, string, string, string, map[string]float64) ([]float64, error) {
	return nil, errors.New("not available")
}

type stubBrain struct {
	d   models.Decision
	err error
}

func (b stubBrain) MakeDecision(context.Context, models.BrainContext) (models.Decision, error) {
	return b.d, b.err
}

type priceTable map[string]float64

func (p priceTable) GetTicker(_ context.Context, symbol string) (models.Ticker, error) {
	v, ok := p[symbol]
	if !ok {
		return models.Ticker{}, models.ErrPriceUnavailable
	}
	return models.Ticker{Symbol: symbol, Last: v}, nil
}

type meanSampler struct{}

func (meanSampler) Beta(a, b float64) float64 { return a / (a + b) }

type captureQueue struct {
	mu    sync.Mutex
	types []string
}

func (q *captureQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.mu.Lock()
	q.types = append(q.types, msgType)
	q.mu.Unlock()
	return nil
}

type fixture struct {
	e     *echo.Echo
	queue *captureQueue
}

func newFixture(t *testing.T, brain stubBrain, withQueue bool) *fixture {
	t.Helper()
	log := xlogger.Nop()

	agg := usecase.NewSignalAggregator(emptyIndicators{})
	enricher := usecase.NewDecisionEnricher(agg, brain)
	router := usecase.NewRouteSelector(meanSampler{})
	store := repository.NewJSONAccountStore(filepath.Join(t.TempDir(), "paper.json"))
	ledger := usecase.NewPaperLedger(store, priceTable{"AAPL": 100}, usecase.WithInitialBalance(1000))
	require.NoError(t, ledger.Initialize(context.Background()))
	guard := usecase.NewEvolutionGuard(noCalc{})
	cycle := usecase.NewTradingCycle(enricher, router, ledger, guard)
	job := usecase.NewEvolutionJob(guard, log)

	f := &fixture{e: echo.New()}
	evo := NewEvolutionEchoHandler(log, guard, job, nil)
	if withQueue {
		f.queue = &captureQueue{}
		evo = NewEvolutionEchoHandler(log, guard, job, f.queue)
	}
	handlers := []interface{ RegisterRoutes(*echo.Echo) }{
		NewSignalsEchoHandler(log, agg, nil),
		NewDecisionEchoHandler(log, enricher),
		NewRoutesEchoHandler(log, router, cycle),
		NewPaperEchoHandler(log, ledger),
		NewCycleEchoHandler(log, cycle),
		evo,
	}
	for _, h := range handlers {
		h.RegisterRoutes(f.e)
	}
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestSignals(t *testing.T) {
	f := newFixture(t, stubBrain{}, false)

	rec := f.do(http.MethodGet, "/api/signals?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "AAPL", gjson.Get(body, "data.symbol").String())
	assert.Equal(t, "1h", gjson.Get(body, "data.timeframe").String())
	assert.Equal(t, "degraded", gjson.Get(body, "data.status").String())

	rec = f.do(http.MethodGet, "/api/signals?timeframe=1h", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/signals?symbol=AAPL&timeframe=7m", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaperErrorMapping(t *testing.T) {
	f := newFixture(t, stubBrain{}, false)

	rec := f.do(http.MethodPost, "/api/paper/fund", `{"amount":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/paper/orders", `{"symbol":"MSFT","side":"buy","quantity":1}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(http.MethodPost, "/api/paper/orders", `{"symbol":"AAPL","side":"buy","quantity":50}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_FUNDS", gjson.Get(rec.Body.String(), "data.0.code").String())

	rec = f.do(http.MethodPost, "/api/paper/orders", `{"symbol":"AAPL","side":"buy","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.InDelta(t, 800.0, gjson.Get(rec.Body.String(), "data.usdBalance").Float(), 1e-9)

	rec = f.do(http.MethodGet, "/api/paper/orders?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "data.total").Int())

	rec = f.do(http.MethodGet, "/api/paper/trades?since=2999-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "data.total").Int())

	rec = f.do(http.MethodGet, "/api/paper/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1000.0, gjson.Get(rec.Body.String(), "data.totalValue").Float(), 1e-9)
}

func TestRouteSelection(t *testing.T) {
	f := newFixture(t, stubBrain{}, false)

	rec := f.do(http.MethodPost, "/api/routes/select", `{"availableRoutes":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/routes/select", `{"ivRank":0.8,"expectedMove":0.05,"chainQuality":0.8,"availableRoutes":[{"type":"equity"},{"type":"vertical"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vertical", gjson.Get(rec.Body.String(), "data.selectedRoute.route.type").String())

	rec = f.do(http.MethodPost, "/api/routes/outcome", `{"route":"vertical","pnl":50,"friction":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "data.performance.vertical.totalTrades").Int())

	rec = f.do(http.MethodPost, "/api/routes/outcome", `{"route":"iron_condor"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvolutionBots(t *testing.T) {
	f := newFixture(t, stubBrain{}, false)

	rec := f.do(http.MethodDelete, "/api/evolution/bots/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/evolution/bots", `{"botId":"b1","candidate":{"id":"c1","parameters":{"entrySignals":["rsi"],"timeframe":"1h"}}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, gjson.Get(rec.Body.String(), "data.fingerprint").String(), "entry:rsi")

	rec = f.do(http.MethodGet, "/api/evolution/bots/b1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/routes/outcome", `{"botId":"b1","route":"vertical","pnl":40,"friction":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/evolution/bots/b1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "data.trades").Int())
	assert.Equal(t, 1.0, gjson.Get(body, "data.winRate").Float())
	assert.True(t, gjson.Get(body, "data.active").Bool())

	rec = f.do(http.MethodGet, "/api/evolution/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "data.liveOutcomes").Int())
	assert.Equal(t, "b1", gjson.Get(rec.Body.String(), "data.liveBots.0.botId").String())

	rec = f.do(http.MethodDelete, "/api/evolution/bots/b1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecentSince(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	// newest first, one row per day
	rows := []time.Time{base.Add(72 * time.Hour), base.Add(48 * time.Hour), base.Add(24 * time.Hour), base}
	id := func(ts time.Time) time.Time { return ts }

	got := recentSince(rows, &models.HistoryRequest{Limit: 2, Since: "2026-04-02"}, id)
	assert.Equal(t, rows[:2], got)

	got = recentSince(rows, &models.HistoryRequest{Limit: 10, Since: "2026-04-02"}, id)
	assert.Equal(t, rows[:3], got)

	got = recentSince(rows, &models.HistoryRequest{Limit: 3}, id)
	assert.Equal(t, rows[:3], got)

	got = recentSince(rows, &models.HistoryRequest{Limit: 10, Since: "2026-04-05"}, id)
	assert.Empty(t, got)
}

func TestEvolutionBatches(t *testing.T) {
	batch := `{"candidates":[{"id":"c1","fitness":1,"parameters":{"entrySignals":["rsi"]}}]}`

	inline := newFixture(t, stubBrain{}, false)
	rec := inline.do(http.MethodPost, "/api/evolution/batches", batch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, gjson.Get(rec.Body.String(), "data.batchId").String())
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "data.candidates.#").Int())

	queued := newFixture(t, stubBrain{}, true)
	rec = queued.do(http.MethodPost, "/api/evolution/batches", batch)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{usecase.EvolutionJobType}, queued.queue.types)

	rec = queued.do(http.MethodPost, "/api/evolution/batches", `{"candidates":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = queued.do(http.MethodGet, "/api/evolution/batches/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gjson.Get(rec.Body.String(), "data.enabled").Bool())
}

func TestBrainFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, stubBrain{err: errors.New("timeout")}, false)

	rec := f.do(http.MethodPost, "/api/decision", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(http.MethodPost, "/api/cycle/run", `{"symbol":"AAPL","quantity":1}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "ERR_BRAIN_UNAVAILABLE", gjson.Get(rec.Body.String(), "data.0.code").String())
}

func TestCycleNoTrade(t *testing.T) {
	f := newFixture(t, stubBrain{d: models.Decision{Action: models.ActionNoTrade, Confidence: 0.4}}, false)

	rec := f.do(http.MethodPost, "/api/cycle/run", `{"symbol":"AAPL","quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_trade", gjson.Get(rec.Body.String(), "data.skipped").String())
}
