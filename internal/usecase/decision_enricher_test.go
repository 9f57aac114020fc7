package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"TradeCore/internal/domain/models"
)

func TestAdjustDecision(t *testing.T) {
	buy := models.CompositeSignal{Signal: models.SignalBuy, Confidence: 0.7, Status: models.SignalComputed}
	sell := models.CompositeSignal{Signal: models.SignalSell, Confidence: 0.7, Status: models.SignalComputed}

	cases := []struct {
		name   string
		action models.DecisionAction
		conf   float64
		sig    models.CompositeSignal
		want   float64
	}{
		{"enter agrees", models.ActionEnter, 0.6, buy, 0.66},
		{"enter disagrees", models.ActionEnter, 0.6, sell, 0.54},
		{"exit agrees", models.ActionExit, 0.5, sell, 0.55},
		{"exit disagrees", models.ActionExit, 0.5, buy, 0.45},
		{"clamped", models.ActionEnter, 0.95, buy, 1.0},
		{"no trade untouched", models.ActionNoTrade, 0.4, buy, 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := models.Decision{Action: tc.action, Confidence: tc.conf, Reasoning: []string{"brain"}}
			out := AdjustDecision(in, tc.sig)
			assert.InDelta(t, tc.want, out.Confidence, 1e-9)
			require.Len(t, out.Reasoning, 2)
			assert.Equal(t, "brain", out.Reasoning[0])
			assert.Len(t, in.Reasoning, 1)
		})
	}
}

func TestAdjustDecision_DegradedSignal(t *testing.T) {
	sig := models.CompositeSignal{Signal: models.SignalNeutral, Confidence: 0.5, Status: models.SignalDegraded}
	out := AdjustDecision(models.Decision{Action: models.ActionEnter, Confidence: 0.6}, sig)
	assert.Equal(t, 0.6, out.Confidence)
	assert.Equal(t, []string{"Technical signals unavailable"}, out.Reasoning)
}

func TestDecisionEnricher_MergesComposite(t *testing.T) {
	ind := new(MockIndicatorService)
	ind.On("GetIndicators", mock.Anything, "ABC", "1h", 200).Return(bullishIndicators(), nil)
	ind.On("GetMarketRegime", mock.Anything, "ABC").Return(models.Regime{State: "bull_normal_vol"}, nil)

	brain := new(MockBrain)
	brain.On("MakeDecision", mock.Anything, mock.MatchedBy(func(in models.BrainContext) bool {
		sig, ok := in.Indicators["composite"].(models.CompositeSignal)
		return ok && sig.Signal == models.SignalBuy && in.Regime == "bull_normal" && in.Indicators["atr"] == 1.5
	})).Return(models.Decision{Action: models.ActionEnter, Confidence: 0.5, Reasoning: []string{"momentum"}}, nil)

	e := NewDecisionEnricher(NewSignalAggregator(ind), brain)
	in := models.BrainContext{Symbol: "ABC", Timeframe: "1h", Indicators: map[string]interface{}{"atr": 1.5}}
	d, sig, err := e.Decide(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, sig.Signal)
	assert.InDelta(t, 0.55, d.Confidence, 1e-9)
	assert.Len(t, d.Reasoning, 2)
	assert.NotContains(t, in.Indicators, "composite")
	brain.AssertExpectations(t)
}

func TestDecisionEnricher_BrainError(t *testing.T) {
	ind := new(MockIndicatorService)
	ind.On("GetIndicators", mock.Anything, "ABC", "1h", 200).Return(nil, nil)
	ind.On("GetMarketRegime", mock.Anything, "ABC").Return(models.Regime{}, nil)

	brain := new(MockBrain)
	brain.On("MakeDecision", mock.Anything, mock.Anything).Return(models.Decision{}, errors.New("down"))

	_, sig, err := NewDecisionEnricher(NewSignalAggregator(ind), brain).Decide(context.Background(), models.BrainContext{Symbol: "ABC", Timeframe: "1h"})
	require.Error(t, err)
	assert.True(t, sig.Degraded())
}
