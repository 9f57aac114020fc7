package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"TradeCore/internal/domain/models"
)

type MockIndicatorService struct {
	mock.Mock
}

func (m *MockIndicatorService) GetIndicators(ctx context.Context, symbol, timeframe string, count int) (*models.Indicators, error) {
	args := m.Called(ctx, symbol, timeframe, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Indicators), args.Error(1)
}

func (m *MockIndicatorService) GetMarketRegime(ctx context.Context, symbol string) (models.Regime, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(models.Regime), args.Error(1)
}

func (m *MockIndicatorService) ClearCache() {
	m.Called()
}

type MockBrain struct {
	mock.Mock
}

func (m *MockBrain) MakeDecision(ctx context.Context, in models.BrainContext) (models.Decision, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(models.Decision), args.Error(1)
}

// fakeMarket serves fixed prices; a missing symbol is an upstream failure.
type fakeMarket struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func newFakeMarket() *fakeMarket { return &fakeMarket{prices: map[string]float64{}} }

func (f *fakeMarket) set(symbol string, p float64) {
	f.mu.Lock()
	f.prices[symbol] = p
	f.mu.Unlock()
}

func (f *fakeMarket) GetTicker(_ context.Context, symbol string) (models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Ticker{}, f.err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return models.Ticker{}, models.ErrPriceUnavailable
	}
	return models.Ticker{Symbol: symbol, Last: p}, nil
}

// recordingPublisher keeps every event it receives.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TradingEvent
	err    error
}

func (r *recordingPublisher) PublishEvent(_ context.Context, ev models.TradingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// seqSource replays a fixed sequence of uniforms, cycling.
type seqSource struct {
	mu  sync.Mutex
	seq []float64
	i   int
}

func (s *seqSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.seq[s.i%len(s.seq)]
	s.i++
	return v
}

func f64(v float64) *float64 { return &v }
