package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"TradeCore/internal/domain/models"
)

type cycleFixture struct {
	cycle  *TradingCycle
	brain  *MockBrain
	market *fakeMarket
	ledger *PaperLedger
	router *RouteSelector
	guard  *EvolutionGuard
}

func newCycleFixture(t *testing.T) *cycleFixture {
	t.Helper()
	ind := new(MockIndicatorService)
	ind.On("GetIndicators", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(bullishIndicators(), nil)
	ind.On("GetMarketRegime", mock.Anything, mock.Anything).Return(models.Regime{State: "bull_normal_vol"}, nil)

	brain := new(MockBrain)
	ledger, market, _ := newTestLedger(t)
	router := NewRouteSelector(meanSampler{})
	guard := NewEvolutionGuard(nil)
	cycle := NewTradingCycle(NewDecisionEnricher(NewSignalAggregator(ind), brain), router, ledger, guard)
	return &cycleFixture{cycle: cycle, brain: brain, market: market, ledger: ledger, router: router, guard: guard}
}

func TestTradingCycle_EnterThenExit(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()
	f.market.set("ABC", 100)

	f.brain.On("MakeDecision", mock.Anything, mock.MatchedBy(func(in models.BrainContext) bool { return in.Position == nil })).
		Return(models.Decision{Action: models.ActionEnter, Confidence: 0.6}, nil).Once()
	res, err := f.cycle.Run(ctx, models.CycleRequest{Symbol: "abc", Quantity: 3, RouteContext: highIVContext()})
	require.NoError(t, err)
	require.NotNil(t, res.Route)
	assert.Equal(t, models.RouteVertical, res.Route.SelectedRoute.Route.Type)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.SideBuy, res.Order.Order.Side)
	assert.InDelta(t, 0.66, res.Decision.Confidence, 1e-9)

	f.market.set("ABC", 110)
	f.brain.On("MakeDecision", mock.Anything, mock.MatchedBy(func(in models.BrainContext) bool { return in.Position != nil })).
		Return(models.Decision{Action: models.ActionExit, Confidence: 0.6}, nil).Once()
	res, err = f.cycle.Run(ctx, models.CycleRequest{Symbol: "ABC", Quantity: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, 3.0, res.Order.Order.Quantity)
	assert.InDelta(t, 30, res.Order.RealizedPnL, 1e-9)
	_, held := f.ledger.Position("ABC")
	assert.False(t, held)
}

func TestTradingCycle_NoTradeAndExitWithoutPosition(t *testing.T) {
	f := newCycleFixture(t)
	f.brain.On("MakeDecision", mock.Anything, mock.Anything).Return(models.Decision{Action: models.ActionNoTrade}, nil).Once()
	res, err := f.cycle.Run(context.Background(), models.CycleRequest{Symbol: "ABC", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "no_trade", res.Skipped)
	assert.Nil(t, res.Order)

	f.brain.On("MakeDecision", mock.Anything, mock.Anything).Return(models.Decision{Action: models.ActionExit}, nil).Once()
	res, err = f.cycle.Run(context.Background(), models.CycleRequest{Symbol: "ABC", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "no position to exit", res.Skipped)
}

func TestTradingCycle_Errors(t *testing.T) {
	f := newCycleFixture(t)
	_, err := f.cycle.Run(context.Background(), models.CycleRequest{Symbol: "ABC"})
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	f.brain.On("MakeDecision", mock.Anything, mock.Anything).Return(models.Decision{}, errors.New("timeout")).Once()
	_, err = f.cycle.Run(context.Background(), models.CycleRequest{Symbol: "ABC", Quantity: 1})
	assert.Equal(t, models.KindUpstream, models.KindOf(err))

	// enter without a price surfaces the ledger's upstream error
	f.brain.On("MakeDecision", mock.Anything, mock.Anything).Return(models.Decision{Action: models.ActionEnter}, nil).Once()
	res, err := f.cycle.Run(context.Background(), models.CycleRequest{Symbol: "ABC", Quantity: 1})
	require.ErrorIs(t, err, models.ErrPriceUnavailable)
	require.NotNil(t, res.Route)
	assert.Equal(t, models.RouteEquity, res.Route.SelectedRoute.Route.Type)
}

func TestOutcomeHandler(t *testing.T) {
	f := newCycleFixture(t)
	h := NewOutcomeHandler("tradecore.outcomes", f.cycle, nil)
	assert.Equal(t, "tradecore.outcomes", h.Topic())

	b, err := json.Marshal(models.OutcomeMessage{BotID: "bot-1", Route: models.RouteLongCall, PnL: 25, Friction: 1})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))

	snap := f.router.Snapshot()
	assert.Equal(t, 2.0, snap.Model.Alpha[models.RouteLongCall])
	p, ok := f.guard.LivePerformance("bot-1")
	require.True(t, ok)
	assert.Equal(t, 25.0, p.TotalPnL)

	// malformed outcomes are dropped so the consumer commits them
	require.NoError(t, h.Handle(context.Background(), []byte(`{"route":"bogus","pnl":1}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.Equal(t, 2.0, f.router.Snapshot().Model.Alpha[models.RouteLongCall])
}

func TestEvolutionJob(t *testing.T) {
	pub := &recordingPublisher{}
	g := NewEvolutionGuard(nil, WithGuardEvents(pub))
	job := NewEvolutionJob(g, nil)
	assert.Equal(t, EvolutionJobType, job.Type())

	p := strategy("rsi")
	payload, err := json.Marshal(models.EvolutionBatch{BatchID: "b1", Candidates: []models.EvolutionCandidate{
		candidate("a", 1, p),
		candidate("b", 1, p),
	}})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), json.RawMessage(payload)))
	assert.Equal(t, []models.EventType{models.EventEvolutionBatchScored}, pub.types())

	pub.mu.Lock()
	res := pub.events[0].Payload.(models.EvolutionBatchResult)
	pub.mu.Unlock()
	require.Len(t, res.Candidates, 2)
	assert.InDelta(t, 0.05, res.Candidates[1].NoveltyPenalty, 1e-12)
	assert.Len(t, res.Segments, 6)

	assert.Error(t, job.Handle(context.Background(), 42))
}
