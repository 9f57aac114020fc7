package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCore/internal/domain/models"
	"TradeCore/pkg/stats"
)

// meanSampler returns the posterior mean so rankings are deterministic.
type meanSampler struct{}

func (meanSampler) Beta(a, b float64) float64 { return a / (a + b) }

func candidates(types ...models.RouteType) []models.RouteCandidate {
	out := make([]models.RouteCandidate, len(types))
	for i, t := range types {
		out[i] = models.RouteCandidate{Type: t}
	}
	return out
}

func highIVContext() models.RouteSelectionContext {
	return models.RouteSelectionContext{
		IVRank:       0.8,
		ExpectedMove: 0.05,
		ChainQuality: 0.8,
		AvailableRoutes: candidates(
			models.RouteVertical, models.RouteLongCall, models.RouteEquity,
			models.RouteLeveragedETF, models.RouteLongPut,
		),
	}
}

func TestSelectRoute_HighIVPrefersVertical(t *testing.T) {
	s := NewRouteSelector(meanSampler{})
	sel, err := s.SelectRoute(context.Background(), highIVContext())
	require.NoError(t, err)

	assert.Equal(t, models.RouteVertical, sel.SelectedRoute.Route.Type)
	assert.InDelta(t, 0.7, sel.SelectedRoute.ContextScore, 1e-9)
	assert.InDelta(t, 0.4*0.5+0.35*0.7+0.25*0.5, sel.SelectedRoute.BanditScore, 1e-9)
	assert.Equal(t, 0.5, sel.Confidence)
	assert.Contains(t, sel.Rationale, "high IV rank favors spreads")

	require.Len(t, sel.Alternatives, 3)
	// ties keep input order
	assert.Equal(t, models.RouteLongCall, sel.Alternatives[0].Route.Type)
	assert.Equal(t, models.RouteEquity, sel.Alternatives[1].Route.Type)
	assert.Equal(t, models.RouteLongPut, sel.Alternatives[2].Route.Type)
	for _, alt := range sel.Alternatives {
		assert.NotEqual(t, models.RouteVertical, alt.Route.Type)
	}
}

func TestSelectRoute_OnlyFromAvailable(t *testing.T) {
	s := NewRouteSelector(stats.NewSampler(stats.NewSource(7)))
	rc := models.RouteSelectionContext{IVRank: 0.9, ExpectedMove: 0.1, ChainQuality: 1, AvailableRoutes: candidates(models.RouteEquity)}
	for i := 0; i < 20; i++ {
		sel, err := s.SelectRoute(context.Background(), rc)
		require.NoError(t, err)
		assert.Equal(t, models.RouteEquity, sel.SelectedRoute.Route.Type)
		assert.Empty(t, sel.Alternatives)
	}
}

func TestSelectRoute_Validation(t *testing.T) {
	s := NewRouteSelector(meanSampler{})

	_, err := s.SelectRoute(context.Background(), models.RouteSelectionContext{})
	require.ErrorIs(t, err, models.ErrNoRoutes)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = s.SelectRoute(context.Background(), models.RouteSelectionContext{AvailableRoutes: candidates("iron_condor")})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestUpdateBanditModel(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewRouteSelector(meanSampler{}, WithRouteEvents(pub))
	ctx := context.Background()
	rc := models.RouteSelectionContext{IVRank: 0.8, ExpectedMove: 0.05}

	require.NoError(t, s.UpdateBanditModel(ctx, models.BanditReward{Context: rc, Outcome: models.RouteOutcome{Route: models.RouteVertical, PnL: 120, Friction: 5}}))
	require.NoError(t, s.UpdateBanditModel(ctx, models.BanditReward{Context: rc, Outcome: models.RouteOutcome{Route: models.RouteVertical, PnL: -40, Friction: 5, Drawdown: 0.1}}))

	snap := s.Snapshot()
	assert.Equal(t, 2.0, snap.Model.Alpha[models.RouteVertical])
	assert.Equal(t, 2.0, snap.Model.Beta[models.RouteVertical])
	// +0.01*0.5*0.8 then -0.01*0.5*0.8
	assert.InDelta(t, 0, snap.Model.ContextWeights["ivRank"][models.RouteVertical], 1e-12)

	p := snap.Performance[models.RouteVertical]
	assert.Equal(t, 2, p.TotalTrades)
	assert.Equal(t, 1, p.Wins)
	assert.InDelta(t, 0.5, p.WinRate, 1e-12)
	assert.InDelta(t, 40, p.AvgPnL, 1e-12)
	assert.InDelta(t, 5, p.AvgFriction, 1e-12)
	assert.InDelta(t, 0.05, p.AvgDrawdown, 1e-12)

	assert.Equal(t, []models.EventType{models.EventBanditUpdated, models.EventBanditUpdated}, pub.types())

	err := s.UpdateBanditModel(ctx, models.BanditReward{Outcome: models.RouteOutcome{Route: "bogus"}})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestUpdateBanditModel_WeightsFollowWins(t *testing.T) {
	s := NewRouteSelector(meanSampler{})
	rc := models.RouteSelectionContext{IVRank: 0.8, ExpectedMove: 0.05, ChainQuality: 1}
	require.NoError(t, s.UpdateBanditModel(context.Background(), models.BanditReward{Context: rc, Outcome: models.RouteOutcome{Route: models.RouteLongCall, PnL: 1}}))

	w := s.Snapshot().Model.ContextWeights
	assert.InDelta(t, 0.004, w["ivRank"][models.RouteLongCall], 1e-12)
	assert.InDelta(t, 0.0025, w["expectedMove"][models.RouteLongCall], 1e-12)
	assert.InDelta(t, 0.005, w["chainQuality"][models.RouteLongCall], 1e-12)
	assert.Zero(t, w["ivRank"][models.RouteVertical])
}

func TestResetBanditModel(t *testing.T) {
	s := NewRouteSelector(meanSampler{})
	require.NoError(t, s.UpdateBanditModel(context.Background(), models.BanditReward{Outcome: models.RouteOutcome{Route: models.RouteEquity, PnL: 1}}))
	s.ResetBanditModel()

	snap := s.Snapshot()
	for _, r := range models.AllRouteTypes {
		assert.Equal(t, 1.0, snap.Model.Alpha[r])
		assert.Equal(t, 1.0, snap.Model.Beta[r])
	}
	assert.Empty(t, snap.Performance)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewRouteSelector(meanSampler{})
	snap := s.Snapshot()
	snap.Model.Alpha[models.RouteEquity] = 99
	snap.Model.ContextWeights["ivRank"][models.RouteEquity] = 99
	assert.Equal(t, 1.0, s.Snapshot().Model.Alpha[models.RouteEquity])
	assert.Zero(t, s.Snapshot().Model.ContextWeights["ivRank"][models.RouteEquity])
}

func TestRouteSelector_ConcurrentUse(t *testing.T) {
	s := NewRouteSelector(stats.NewSampler(stats.NewSource(1)))
	rc := highIVContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := s.SelectRoute(context.Background(), rc)
				assert.NoError(t, err)
				pnl := 1.0
				if (i+j)%2 == 0 {
					pnl = -1
				}
				assert.NoError(t, s.UpdateBanditModel(context.Background(), models.BanditReward{Context: rc, Outcome: models.RouteOutcome{Route: models.RouteEquity, PnL: pnl}}))
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 200.0, snap.Model.Alpha[models.RouteEquity]+snap.Model.Beta[models.RouteEquity]-2)
	assert.Equal(t, 200, snap.Performance[models.RouteEquity].TotalTrades)
}

func TestContextScore(t *testing.T) {
	empty := map[string]map[models.RouteType]float64{}

	long := models.RouteSelectionContext{IVRank: 0.3, TrendStrength: 0.5, ExpectedMove: 0.05, ChainQuality: 0.8, FrictionHeadroom: 0.6, ThetaHeadroom: 0.6, VegaHeadroom: 0.6}
	score, notes := contextScore(models.RouteLongCall, long, empty)
	assert.InDelta(t, 0.95, score, 1e-9)
	assert.Len(t, notes, 5)

	thin := models.RouteSelectionContext{IVRank: 0.5, ExpectedMove: 0.01, ChainQuality: 0.2}
	score, _ = contextScore(models.RouteVertical, thin, empty)
	assert.InDelta(t, 0.15, score, 1e-9)

	score, _ = contextScore(models.RouteLeveragedETF, models.RouteSelectionContext{TrendStrength: -0.7}, empty)
	assert.InDelta(t, 0.6, score, 1e-9)
}

func TestPerformanceScore(t *testing.T) {
	assert.Equal(t, 0.5, performanceScore(models.RoutePerformance{TotalTrades: 4, AvgPnL: 100, WinRate: 1}))

	var p models.RoutePerformance
	for i := 0; i < 5; i++ {
		p = recordOutcome(p, models.RouteOutcome{Route: models.RouteEquity, PnL: 10, Friction: 2, Drawdown: 0.05})
	}
	assert.InDelta(t, 0.4+0.3+0.2*10.0/12.0-0.05, performanceScore(p), 1e-9)
	assert.Equal(t, 0.5, frictionEfficiency(models.RoutePerformance{}))
}

func TestUpdateBanditModel_StampsModel(t *testing.T) {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	s := NewRouteSelector(meanSampler{}, WithRouteClock(func() time.Time { return at }))

	err := s.UpdateBanditModel(context.Background(), models.BanditReward{Outcome: models.RouteOutcome{Route: models.RouteEquity, PnL: 1}})
	require.NoError(t, err)
	assert.Equal(t, at, s.Snapshot().Model.UpdatedAt)
}
