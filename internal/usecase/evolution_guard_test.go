package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"TradeCore/internal/domain/models"
)

type MockCalculator struct {
	mock.Mock
}

func (m *MockCalculator) Calculate(ctx context.Context, symbol, indicator, timeframe string, params map[string]float64) ([]float64, error) {
	args := m.Called(ctx, symbol, indicator, timeframe, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func strategy(entry ...string) models.StrategyParameters {
	return models.StrategyParameters{EntrySignals: entry, ExitSignals: []string{"bb_upper"}, StopLoss: 0.02, TakeProfit: 0.04, Timeframe: "1h"}
}

func candidate(id string, fitness float64, p models.StrategyParameters) models.EvolutionCandidate {
	return models.EvolutionCandidate{ID: id, Fitness: fitness, Parameters: p}
}

func TestFingerprint(t *testing.T) {
	a := models.StrategyParameters{EntrySignals: []string{"macd_cross", "RSI_oversold", "rsi_oversold"}, ExitSignals: []string{"bb_upper"}, StopLoss: 0.0201, TakeProfit: 0.04, Timeframe: "1H"}
	b := models.StrategyParameters{EntrySignals: []string{"rsi_oversold", "macd_cross"}, ExitSignals: []string{"bb_upper"}, StopLoss: 0.0199, TakeProfit: 0.0401, Timeframe: "1h"}

	assert.Equal(t, "entry:macd_cross,rsi_oversold|exit:bb_upper|sl:0.020|tp:0.040|tf:1h", Fingerprint(a))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestApplyNoveltyPressure(t *testing.T) {
	g := NewEvolutionGuard(nil)
	p := strategy("rsi_oversold")
	cands := []models.EvolutionCandidate{
		candidate("a", 1.0, p),
		candidate("b", 1.0, p),
		candidate("low", 0.5, p),
		candidate("c", 1.0, p),
	}
	out := g.ApplyNoveltyPressure(cands)

	assert.Equal(t, 1.0, out[0].Fitness)
	assert.InDelta(t, 0.95, out[1].Fitness, 1e-12)
	assert.InDelta(t, 0.05, out[1].NoveltyPenalty, 1e-12)
	assert.Equal(t, 0.5, out[2].Fitness)
	assert.Zero(t, out[2].NoveltyPenalty)
	assert.InDelta(t, 0.9025, out[3].Fitness, 1e-12)
	assert.NotEmpty(t, out[2].Fingerprint)

	// counts persist across batches
	next := g.ApplyNoveltyPressure([]models.EvolutionCandidate{candidate("d", 2.0, p)})
	assert.InDelta(t, 2.0*math.Pow(0.95, 3), next[0].Fitness, 1e-12)
	assert.Equal(t, 1, g.GetOptimizationStats().UniqueFingerprints)
}

func TestSegmentSharpe(t *testing.T) {
	neutralSeg := models.AdversarialSegment{Name: "flat", WinMultiplier: 1, LossMultiplier: 1, TradeFrequency: 1}
	m := models.BacktestMetrics{TradeCount: 10, WinRate: 0.5, AvgWin: 0.02, AvgLoss: 0.01}
	assert.InDelta(t, 0.005/0.015*math.Sqrt(10), SegmentSharpe(m, models.StrategyParameters{}, neutralSeg), 1e-9)

	// all losses still yields a finite negative ratio
	allLoss := models.BacktestMetrics{TradeCount: 4, WinRate: 0, AvgWin: 0.02, AvgLoss: 0.01}
	assert.InDelta(t, -2, SegmentSharpe(allLoss, models.StrategyParameters{}, neutralSeg), 1e-9)
}

func TestApplyAdversarialPenalty(t *testing.T) {
	g := NewEvolutionGuard(nil)
	strong := candidate("strong", 1.2, strategy("rsi"))
	strong.Metrics = models.BacktestMetrics{TradeCount: 50, WinRate: 0.7, AvgWin: 0.03, AvgLoss: 0.01}
	weak := candidate("weak", 1.2, models.StrategyParameters{StopLoss: 0.02, TakeProfit: 0.01, Timeframe: "1h"})
	negative := candidate("neg", -0.5, models.StrategyParameters{StopLoss: 0.02, TakeProfit: 0.01})

	out, results := g.ApplyAdversarialPenalty([]models.EvolutionCandidate{strong, weak, negative})
	require.Len(t, results, 9)

	assert.Equal(t, 1.2, out[0].Fitness)
	assert.Zero(t, out[0].AdversarialPenalty)
	assert.Less(t, out[1].Fitness, 1.2)
	assert.Greater(t, out[1].AdversarialPenalty, 0.0)
	assert.Less(t, out[2].Fitness, -0.5)

	for _, r := range results {
		if r.Sharpe >= 0 {
			assert.Zero(t, r.Penalty, r.Segment)
		} else {
			assert.InDelta(t, math.Min(1, math.Abs(r.Sharpe)*0.1), r.Penalty, 1e-12, r.Segment)
		}
	}

	st := g.GetOptimizationStats()
	assert.Equal(t, 9, st.AdversarialEvaluations)
	assert.Less(t, st.WorstAdversarialSharpe, 0.0)
}

func TestCorrelationGuard(t *testing.T) {
	pub := &recordingPublisher{}
	g := NewEvolutionGuard(nil, WithGuardEvents(pub))
	ctx := context.Background()

	fp, err := g.RegisterActiveBot("bot-a", candidate("a", 1, strategy("rsi", "macd")))
	require.NoError(t, err)
	assert.NotEmpty(t, fp)

	check := g.CheckCorrelationGuard(ctx, candidate("dup", 1, strategy("macd", "rsi")))
	assert.False(t, check.Allowed)
	assert.Equal(t, 1.0, check.Correlation)
	assert.Equal(t, "bot-a", check.ConflictingBot)
	assert.Contains(t, check.Reason, "bot-a")
	assert.Equal(t, []models.EventType{models.EventCorrelationRejected}, pub.types())

	// same logic, different timeframe: 5 of 7 tokens shared
	other := strategy("rsi", "macd")
	other.Timeframe = "4h"
	check = g.CheckCorrelationGuard(ctx, candidate("tf", 1, other))
	assert.True(t, check.Allowed)
	assert.InDelta(t, 5.0/7.0, check.Correlation, 1e-12)
	assert.Empty(t, check.ConflictingBot)

	_, err = g.RegisterActiveBot("bot-b", candidate("b", 1, other))
	require.NoError(t, err)
	st := g.GetOptimizationStats()
	assert.Equal(t, 2, st.ActiveBots)
	assert.InDelta(t, 5.0/7.0, st.MaxPairwiseCorrelation, 1e-12)
	assert.InDelta(t, 2.0/7.0, st.DiversificationScore, 1e-12)

	assert.True(t, g.UnregisterBot("bot-a"))
	assert.False(t, g.UnregisterBot("bot-a"))
	st = g.GetOptimizationStats()
	assert.Equal(t, 1, st.ActiveBots)
	assert.Equal(t, 1.0, st.DiversificationScore)

	check = g.CheckCorrelationGuard(ctx, candidate("dup", 1, strategy("macd", "rsi")))
	assert.True(t, check.Allowed)

	_, err = g.RegisterActiveBot(" ", candidate("x", 1, other))
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestGetCachedIndicator(t *testing.T) {
	calc := new(MockCalculator)
	calc.On("Calculate", mock.Anything, "ABC", "rsi", "1h", mock.Anything).Return([]float64{40, 45}, nil).Once()
	calc.On("Calculate", mock.Anything, "ABC", "ema", "1h", mock.Anything).Return(nil, errors.New("no candles"))

	g := NewEvolutionGuard(calc)
	ctx := context.Background()

	v, err := g.GetCachedIndicator(ctx, "ABC", "rsi", "1h", map[string]float64{"period": 14, "count": 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 45}, v)
	v, err = g.GetCachedIndicator(ctx, "abc", "RSI", "1h", map[string]float64{"count": 2, "period": 14})
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 45}, v)

	_, err = g.GetCachedIndicator(ctx, "ABC", "ema", "1h", nil)
	require.Error(t, err)
	_, err = g.GetCachedIndicator(ctx, "ABC", "ema", "1h", nil)
	require.Error(t, err)

	st := g.GetOptimizationStats()
	assert.Equal(t, 1, st.CacheSize)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(3), st.CacheMisses)
	assert.InDelta(t, 0.25, st.CacheHitRate, 1e-12)
	calc.AssertNumberOfCalls(t, "Calculate", 3)
}

func TestCleanup(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	calc := new(MockCalculator)
	calc.On("Calculate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]float64{1}, nil)

	g := NewEvolutionGuard(calc, WithGuardClock(func() time.Time { return now }), WithIndicatorTTL(3*time.Hour), WithNovelty(0.95, 0.8, 2))
	_, err := g.GetCachedIndicator(context.Background(), "ABC", "sma", "1h", nil)
	require.NoError(t, err)

	g.ApplyNoveltyPressure([]models.EvolutionCandidate{
		candidate("a", 1, strategy("a")),
		candidate("b", 1, strategy("b")),
	})
	evicted, reset := g.Cleanup()
	assert.Zero(t, evicted)
	assert.False(t, reset)

	g.ApplyNoveltyPressure([]models.EvolutionCandidate{candidate("c", 1, strategy("c"))})
	now = now.Add(61 * time.Minute)
	evicted, reset = g.Cleanup()
	assert.Equal(t, 1, evicted)
	assert.True(t, reset)
	assert.Zero(t, g.GetOptimizationStats().UniqueFingerprints)
}

func TestRecordLiveOutcome(t *testing.T) {
	g := NewEvolutionGuard(nil)
	g.RecordLiveOutcome("bot-a", 10)
	g.RecordLiveOutcome("bot-a", -4)
	g.RecordLiveOutcome("", 1)

	p, ok := g.LivePerformance("bot-a")
	require.True(t, ok)
	assert.Equal(t, 2, p.Trades)
	assert.Equal(t, 1, p.Wins)
	assert.Equal(t, 6.0, p.TotalPnL)
	assert.Equal(t, 0.5, p.WinRate)
	assert.Equal(t, 3.0, p.AvgPnL)
	// mean 3, population sd 7
	assert.InDelta(t, 3.0/7.0*math.Sqrt2, p.Sharpe, 1e-9)
	assert.False(t, p.Active)

	_, err := g.RegisterActiveBot("bot-b", candidate("b", 1, strategy("ema")))
	require.NoError(t, err)
	g.RecordLiveOutcome("bot-b", -2)
	g.RecordLiveOutcome("bot-b", -2)

	st := g.GetOptimizationStats()
	assert.Equal(t, 4, st.LiveOutcomes)
	require.Len(t, st.LiveBots, 2)
	assert.Equal(t, "bot-a", st.LiveBots[0].BotID)
	assert.True(t, st.LiveBots[1].Active)
	// constant losses: sd falls back to |mean|
	assert.InDelta(t, -math.Sqrt2, st.LiveBots[1].Sharpe, 1e-9)
	assert.InDelta(t, -math.Sqrt2, st.WorstLiveSharpe, 1e-9)

	_, ok = g.LivePerformance("nobody")
	assert.False(t, ok)
}

func TestWorstAdversarialSharpe_AllPositive(t *testing.T) {
	g := NewEvolutionGuard(nil)
	assert.Zero(t, g.GetOptimizationStats().WorstAdversarialSharpe)

	strong := candidate("strong", 1, strategy("rsi"))
	strong.Metrics = models.BacktestMetrics{TradeCount: 50, WinRate: 0.7, AvgWin: 0.03, AvgLoss: 0.01}
	_, results := g.ApplyAdversarialPenalty([]models.EvolutionCandidate{strong})
	require.Len(t, results, 3)

	lowest := math.Inf(1)
	for _, r := range results {
		require.Greater(t, r.Sharpe, 0.0, r.Segment)
		lowest = math.Min(lowest, r.Sharpe)
	}
	assert.InDelta(t, lowest, g.GetOptimizationStats().WorstAdversarialSharpe, 1e-12)

	weak := candidate("weak", 1, models.StrategyParameters{StopLoss: 0.02, TakeProfit: 0.01})
	g.ApplyAdversarialPenalty([]models.EvolutionCandidate{weak})
	assert.Less(t, g.GetOptimizationStats().WorstAdversarialSharpe, 0.0)
}
