package usecase

import (
	"math"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/service/metrics"
)

const (
	defaultTradeCount = 20
	defaultWinRate    = 0.5
	defaultAvgWin     = 0.02
	defaultAvgLoss    = 0.01
)

// DefaultSegments are the stressed periods every candidate is replayed against.
func DefaultSegments() []models.AdversarialSegment {
	return []models.AdversarialSegment{
		{Name: "high_volatility", Days: 30, WinRateShift: -0.05, WinMultiplier: 1.3, LossMultiplier: 1.6, TradeFrequency: 1.5},
		{Name: "earnings_season", Days: 20, WinRateShift: -0.08, WinMultiplier: 1.1, LossMultiplier: 1.4, TradeFrequency: 1.0},
		{Name: "market_crash", Days: 15, WinRateShift: -0.20, WinMultiplier: 0.8, LossMultiplier: 2.0, TradeFrequency: 0.8},
	}
}

// ApplyAdversarialPenalty replays every candidate on every segment. A negative
// segment Sharpe s costs min(1, |s|*0.1) of the remaining fitness. The slice is
// updated in place; per-segment results are returned alongside.
func (g *EvolutionGuard) ApplyAdversarialPenalty(cands []models.EvolutionCandidate) ([]models.EvolutionCandidate, []models.SegmentResult) {
	g.mu.Lock()
	segs := append([]models.AdversarialSegment(nil), g.segments...)
	g.mu.Unlock()

	results := make([]models.SegmentResult, 0, len(cands)*len(segs))
	worst := math.Inf(1)
	for i := range cands {
		c := &cands[i]
		kept := 1.0
		for _, seg := range segs {
			sharpe := SegmentSharpe(c.Metrics, c.Parameters, seg)
			r := models.SegmentResult{CandidateID: c.ID, Segment: seg.Name, Sharpe: sharpe}
			if sharpe < 0 {
				factor := math.Max(0, 1-math.Abs(sharpe)*0.1)
				r.Penalty = 1 - factor
				c.Fitness = penalize(c.Fitness, r.Penalty)
				kept *= factor
				metrics.GuardDecisions.WithLabelValues("adversarial", "penalized").Inc()
			} else {
				metrics.GuardDecisions.WithLabelValues("adversarial", "passed").Inc()
			}
			if sharpe < worst {
				worst = sharpe
			}
			results = append(results, r)
		}
		c.AdversarialPenalty = 1 - kept
	}

	g.mu.Lock()
	g.advCount += len(results)
	if len(results) > 0 && (!g.advSeen || worst < g.worstSharpe) {
		g.worstSharpe = worst
		g.advSeen = true
	}
	g.mu.Unlock()
	return cands, results
}

// SegmentSharpe estimates the Sharpe ratio of a two-outcome trade
// distribution after shifting it by the segment's stress factors.
// Without backtest metrics, take-profit and stop-loss stand in for the
// average win and loss at a coin-flip win rate.
func SegmentSharpe(m models.BacktestMetrics, p models.StrategyParameters, seg models.AdversarialSegment) float64 {
	n := float64(m.TradeCount)
	w, win, loss := m.WinRate, m.AvgWin, math.Abs(m.AvgLoss)
	if m.TradeCount <= 0 {
		n = defaultTradeCount
		w = defaultWinRate
		win, loss = p.TakeProfit, math.Abs(p.StopLoss)
		if win <= 0 {
			win = defaultAvgWin
		}
		if loss <= 0 {
			loss = defaultAvgLoss
		}
	}

	w = clamp01(w + seg.WinRateShift)
	if seg.WinMultiplier > 0 {
		win *= seg.WinMultiplier
	}
	if seg.LossMultiplier > 0 {
		loss *= seg.LossMultiplier
	}
	if seg.TradeFrequency > 0 {
		n *= seg.TradeFrequency
	}
	n = math.Max(1, math.Round(n))

	mu := w*win - (1-w)*loss
	sigma := math.Sqrt(w*math.Pow(win-mu, 2) + (1-w)*math.Pow(loss+mu, 2))
	if sigma < 1e-12 {
		if mu == 0 {
			return 0
		}
		sigma = math.Abs(mu)
	}
	return mu / sigma * math.Sqrt(n)
}
