package usecase

import (
	"math"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/service/metrics"
)

// ApplyNoveltyPressure penalizes elite candidates whose fingerprint was seen
// before: the n-th occurrence keeps decay^(n-1) of its fitness. Counts persist
// across calls until Cleanup resets them. The slice is updated in place.
func (g *EvolutionGuard) ApplyNoveltyPressure(cands []models.EvolutionCandidate) []models.EvolutionCandidate {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range cands {
		c := &cands[i]
		c.Fingerprint = Fingerprint(c.Parameters)
		if c.Fitness <= g.elite {
			continue
		}
		g.novelty[c.Fingerprint]++
		n := g.novelty[c.Fingerprint]
		if n == 1 {
			metrics.GuardDecisions.WithLabelValues("novelty", "novel").Inc()
			continue
		}
		factor := math.Pow(g.decay, float64(n-1))
		c.NoveltyPenalty = 1 - factor
		c.Fitness = penalize(c.Fitness, 1-factor)
		metrics.GuardDecisions.WithLabelValues("novelty", "penalized").Inc()
	}
	return cands
}
