package usecase

import (
	"math"

	"TradeCore/internal/domain/models"
)

// Feature names for the learned context weights, in update order.
var routeFeatures = []string{"ivRank", "expectedMove", "trendStrength", "rvol", "chainQuality"}

const (
	thompsonWeight    = 0.40
	contextWeight     = 0.35
	performanceWeight = 0.25
	minTradesForPerf  = 5
	maxAlternatives   = 3
)

// featureVector normalizes the context into the learned feature space.
func featureVector(c models.RouteSelectionContext) map[string]float64 {
	return map[string]float64{
		"ivRank":        c.IVRank,
		"expectedMove":  math.Min(c.ExpectedMove/0.1, 1),
		"trendStrength": c.TrendStrength,
		"rvol":          c.RVOL,
		"chainQuality":  c.ChainQuality,
	}
}

// contextScore rates how well route fits c. The returned notes name every
// heuristic that fired, for the rationale.
func contextScore(route models.RouteType, c models.RouteSelectionContext, weights map[string]map[models.RouteType]float64) (float64, []string) {
	score := 0.5
	var notes []string

	switch route {
	case models.RouteVertical:
		if c.IVRank > 0.6 {
			score += 0.2
			notes = append(notes, "high IV rank favors spreads")
		}
	case models.RouteLongCall, models.RouteLongPut:
		if c.IVRank < 0.4 {
			score += 0.2
			notes = append(notes, "low IV rank favors long premium")
		}
		if route == models.RouteLongCall && c.TrendStrength > 0.3 {
			score += 0.1
			notes = append(notes, "uptrend supports calls")
		}
		if route == models.RouteLongPut && c.TrendStrength < -0.3 {
			score += 0.1
			notes = append(notes, "downtrend supports puts")
		}
	case models.RouteLeveragedETF:
		if math.Abs(c.TrendStrength) > 0.5 {
			score += 0.1
			notes = append(notes, "strong trend suits leverage")
		} else {
			score -= 0.1
		}
	}

	if route.IsOption() {
		if c.ExpectedMove < 0.02 {
			score -= 0.2
			notes = append(notes, "expected move too small for options")
		}
		if c.ChainQuality < 0.3 {
			score -= 0.15
			notes = append(notes, "thin option chain")
		}
	}

	if c.FrictionHeadroom > 0.5 {
		score += 0.05
		notes = append(notes, "friction headroom")
	}
	if route == models.RouteLongCall || route == models.RouteLongPut {
		if c.ThetaHeadroom > 0.5 {
			score += 0.05
			notes = append(notes, "theta headroom")
		}
		if c.VegaHeadroom > 0.5 {
			score += 0.05
			notes = append(notes, "vega headroom")
		}
	}

	fv := featureVector(c)
	for _, name := range routeFeatures {
		score += weights[name][route] * fv[name]
	}
	return clamp01(score), notes
}

// performanceScore is neutral until a route has a minimal track record.
func performanceScore(p models.RoutePerformance) float64 {
	if p.TotalTrades < minTradesForPerf {
		return 0.5
	}
	score := 0.0
	if p.AvgPnL > 0 {
		score += 0.4
	}
	score += 0.3 * p.WinRate
	score += 0.2 * frictionEfficiency(p)
	score -= math.Min(0.2, p.AvgDrawdown)
	return clamp01(score)
}

func frictionEfficiency(p models.RoutePerformance) float64 {
	pnl := math.Abs(p.AvgPnL)
	if pnl+p.AvgFriction == 0 {
		return 0.5
	}
	return pnl / (pnl + p.AvgFriction)
}

func banditScore(thompson, ctx, perf float64) float64 {
	return thompsonWeight*thompson + contextWeight*ctx + performanceWeight*perf
}

// recordOutcome folds one realized outcome into the running stats.
func recordOutcome(p models.RoutePerformance, o models.RouteOutcome) models.RoutePerformance {
	n := float64(p.TotalTrades)
	p.TotalTrades++
	if o.PnL > 0 {
		p.Wins++
	}
	p.TotalPnL += o.PnL
	p.AvgPnL = p.TotalPnL / float64(p.TotalTrades)
	p.WinRate = float64(p.Wins) / float64(p.TotalTrades)
	p.AvgFriction = (p.AvgFriction*n + o.Friction) / (n + 1)
	p.AvgDrawdown = (p.AvgDrawdown*n + o.Drawdown) / (n + 1)
	return p
}
