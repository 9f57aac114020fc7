package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/service/metrics"
	"TradeCore/pkg/logger"
)

// FingerprintCorrelation is the Jaccard overlap of the two fingerprints' tokens.
func FingerprintCorrelation(a, b string) float64 {
	ta, tb := fingerprintTokens(a), fingerprintTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// fingerprintTokens splits "entry:a,b|exit:c|..." into entry:a, entry:b, exit:c, ...
func fingerprintTokens(fp string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(fp, "|") {
		name, vals, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		for _, v := range strings.Split(vals, ",") {
			if v == "" {
				continue
			}
			out[name+":"+v] = struct{}{}
		}
	}
	return out
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// CheckCorrelationGuard rejects a candidate whose fingerprint overlaps any
// active bot by more than the configured maximum.
func (g *EvolutionGuard) CheckCorrelationGuard(ctx context.Context, cand models.EvolutionCandidate) models.CorrelationCheck {
	fp := Fingerprint(cand.Parameters)

	g.mu.Lock()
	ids := make([]string, 0, len(g.bots))
	for id := range g.bots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	res := models.CorrelationCheck{Allowed: true, Fingerprint: fp}
	for _, id := range ids {
		c := FingerprintCorrelation(fp, g.bots[id])
		if c > res.Correlation {
			res.Correlation = c
			res.ConflictingBot = id
		}
	}
	limit := g.maxCorr
	g.mu.Unlock()

	if res.Correlation > limit {
		res.Allowed = false
		res.Reason = fmt.Sprintf("correlation %.2f with bot %s exceeds %.2f", res.Correlation, res.ConflictingBot, limit)
		metrics.GuardDecisions.WithLabelValues("correlation", "rejected").Inc()
		g.log.Info("candidate rejected by correlation guard",
			logger.String("candidate", cand.ID),
			logger.String("bot", res.ConflictingBot),
			logger.Float64("correlation", res.Correlation),
		)
		g.publish(ctx, models.TradingEvent{Type: models.EventCorrelationRejected, Payload: map[string]interface{}{
			"candidateId": cand.ID,
			"check":       res,
		}})
		return res
	}
	res.ConflictingBot = ""
	metrics.GuardDecisions.WithLabelValues("correlation", "allowed").Inc()
	return res
}

// RegisterActiveBot adds or replaces botID and updates its row of the
// correlation matrix. It does not run the guard.
func (g *EvolutionGuard) RegisterActiveBot(botID string, cand models.EvolutionCandidate) (string, error) {
	if strings.TrimSpace(botID) == "" {
		return "", models.ValidationError("invalid_bot", fmt.Errorf("bot id required"))
	}
	fp := Fingerprint(cand.Parameters)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropPairsLocked(botID)
	for id, other := range g.bots {
		if id == botID {
			continue
		}
		g.corr[pairKey(botID, id)] = FingerprintCorrelation(fp, other)
	}
	g.bots[botID] = fp
	return fp, nil
}

// UnregisterBot removes botID and its matrix entries. It reports whether the bot was active.
func (g *EvolutionGuard) UnregisterBot(botID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.bots[botID]; !ok {
		return false
	}
	delete(g.bots, botID)
	g.dropPairsLocked(botID)
	return true
}

func (g *EvolutionGuard) dropPairsLocked(botID string) {
	for id := range g.bots {
		delete(g.corr, pairKey(botID, id))
	}
}
