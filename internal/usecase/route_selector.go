package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	"TradeCore/internal/service/metrics"
	"TradeCore/pkg/logger"
)

// BetaSampler draws from Beta(alpha, beta). *stats.Sampler satisfies it.
type BetaSampler interface {
	Beta(alpha, beta float64) float64
}

// RouteSelector is a contextual Thompson-sampling bandit over trade structures.
// All state is guarded by one mutex; the zero value is not usable.
type RouteSelector struct {
	mu      sync.Mutex
	model   models.BanditModel
	perf    map[models.RouteType]models.RoutePerformance
	sampler BetaSampler
	lr      float64
	events  repository.EventPublisher
	now     func() time.Time
	log     *logger.Logger
}

type RouteOption func(*RouteSelector)

func WithLearningRate(lr float64) RouteOption {
	return func(s *RouteSelector) {
		if lr > 0 {
			s.lr = lr
		}
	}
}

func WithRouteEvents(p repository.EventPublisher) RouteOption {
	return func(s *RouteSelector) { s.events = p }
}

func WithRouteClock(now func() time.Time) RouteOption {
	return func(s *RouteSelector) { s.now = now }
}

func NewRouteSelector(sampler BetaSampler, opts ...RouteOption) *RouteSelector {
	s := &RouteSelector{sampler: sampler, lr: 0.01, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

func (s *RouteSelector) SetLogger(l *logger.Logger) { s.log = l }

func (s *RouteSelector) resetLocked() {
	s.model = models.BanditModel{
		Alpha:          make(map[models.RouteType]float64, len(models.AllRouteTypes)),
		Beta:           make(map[models.RouteType]float64, len(models.AllRouteTypes)),
		ContextWeights: make(map[string]map[models.RouteType]float64, len(routeFeatures)),
		UpdatedAt:      s.now().UTC(),
	}
	for _, r := range models.AllRouteTypes {
		s.model.Alpha[r] = 1
		s.model.Beta[r] = 1
	}
	for _, f := range routeFeatures {
		s.model.ContextWeights[f] = make(map[models.RouteType]float64, len(models.AllRouteTypes))
	}
	s.perf = make(map[models.RouteType]models.RoutePerformance, len(models.AllRouteTypes))
}

func (s *RouteSelector) ensureRoute(r models.RouteType) {
	if _, ok := s.model.Alpha[r]; !ok {
		s.model.Alpha[r] = 1
	}
	if _, ok := s.model.Beta[r]; !ok {
		s.model.Beta[r] = 1
	}
}

// SelectRoute ranks the available candidates and returns the best one with
// up to three alternatives. Each route type is sampled once per call.
func (s *RouteSelector) SelectRoute(ctx context.Context, rc models.RouteSelectionContext) (models.RouteSelection, error) {
	if len(rc.AvailableRoutes) == 0 {
		return models.RouteSelection{}, models.ValidationError("no_routes", models.ErrNoRoutes)
	}
	for _, c := range rc.AvailableRoutes {
		if !c.Type.Valid() {
			return models.RouteSelection{}, models.ValidationError("invalid_route", fmt.Errorf("unknown route type %q", c.Type))
		}
	}

	s.mu.Lock()
	samples := make(map[models.RouteType]float64, len(rc.AvailableRoutes))
	notes := make([][]string, len(rc.AvailableRoutes))
	scored := make([]models.ScoredRoute, len(rc.AvailableRoutes))
	for i, c := range rc.AvailableRoutes {
		sample, ok := samples[c.Type]
		if !ok {
			s.ensureRoute(c.Type)
			sample = s.sampler.Beta(s.model.Alpha[c.Type], s.model.Beta[c.Type])
			samples[c.Type] = sample
		}
		cs, n := contextScore(c.Type, rc, s.model.ContextWeights)
		ps := performanceScore(s.perf[c.Type])
		notes[i] = n
		scored[i] = models.ScoredRoute{
			Route:            c,
			ThompsonSample:   sample,
			ContextScore:     cs,
			PerformanceScore: ps,
			BanditScore:      banditScore(sample, cs, ps),
		}
	}
	s.mu.Unlock()

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scored[order[a]].BanditScore > scored[order[b]].BanditScore
	})

	best := scored[order[0]]
	alts := make([]models.ScoredRoute, 0, maxAlternatives)
	for _, idx := range order[1:] {
		if len(alts) == maxAlternatives {
			break
		}
		alts = append(alts, scored[idx])
	}

	metrics.RouteSelections.WithLabelValues(string(best.Route.Type)).Inc()
	sel := models.RouteSelection{
		SelectedRoute: best,
		Alternatives:  alts,
		Confidence:    best.ThompsonSample,
		Rationale:     rationale(best, notes[order[0]]),
	}
	s.log.Debug("route selected",
		logger.String("route", string(best.Route.Type)),
		logger.Float64("score", best.BanditScore),
		logger.Int("candidates", len(scored)),
	)
	return sel, nil
}

func rationale(r models.ScoredRoute, notes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected %s (score %.2f: sample %.2f, context %.2f, performance %.2f)",
		r.Route.Type, r.BanditScore, r.ThompsonSample, r.ContextScore, r.PerformanceScore)
	if len(notes) > 0 {
		b.WriteString("; ")
		b.WriteString(strings.Join(notes, "; "))
	}
	return b.String()
}

// UpdateBanditModel applies one realized outcome: running stats, the Beta
// posterior of the route, and the per-feature context weights.
func (s *RouteSelector) UpdateBanditModel(ctx context.Context, reward models.BanditReward) error {
	route := reward.Outcome.Route
	if !route.Valid() {
		return models.ValidationError("invalid_route", fmt.Errorf("unknown route type %q", route))
	}

	success := 0.0
	if reward.Outcome.PnL > 0 {
		success = 1
	}

	s.mu.Lock()
	s.ensureRoute(route)
	s.perf[route] = recordOutcome(s.perf[route], reward.Outcome)
	s.model.Alpha[route] += success
	s.model.Beta[route] += 1 - success
	fv := featureVector(reward.Context)
	for _, f := range routeFeatures {
		s.model.ContextWeights[f][route] += s.lr * (success - 0.5) * fv[f]
	}
	s.model.UpdatedAt = s.now().UTC()
	alpha, beta := s.model.Alpha[route], s.model.Beta[route]
	s.mu.Unlock()

	result := "loss"
	if success == 1 {
		result = "win"
	}
	metrics.BanditUpdates.WithLabelValues(string(route), result).Inc()
	s.log.Debug("bandit updated",
		logger.String("route", string(route)),
		logger.Float64("pnl", reward.Outcome.PnL),
		logger.Float64("alpha", alpha),
		logger.Float64("beta", beta),
	)

	s.publish(ctx, models.TradingEvent{
		Type: models.EventBanditUpdated,
		Payload: map[string]interface{}{
			"route":   route,
			"pnl":     reward.Outcome.PnL,
			"success": success == 1,
			"alpha":   alpha,
			"beta":    beta,
		},
	})
	return nil
}

// ResetBanditModel drops everything learned and restores Beta(1,1) priors.
func (s *RouteSelector) ResetBanditModel() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.log.Info("bandit model reset")
}

// Snapshot returns a deep copy of the model and performance table.
func (s *RouteSelector) Snapshot() models.RouterSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := models.BanditModel{
		Alpha:          make(map[models.RouteType]float64, len(s.model.Alpha)),
		Beta:           make(map[models.RouteType]float64, len(s.model.Beta)),
		ContextWeights: make(map[string]map[models.RouteType]float64, len(s.model.ContextWeights)),
		UpdatedAt:      s.model.UpdatedAt,
	}
	for k, v := range s.model.Alpha {
		m.Alpha[k] = v
	}
	for k, v := range s.model.Beta {
		m.Beta[k] = v
	}
	for f, ws := range s.model.ContextWeights {
		cp := make(map[models.RouteType]float64, len(ws))
		for k, v := range ws {
			cp[k] = v
		}
		m.ContextWeights[f] = cp
	}
	perf := make(map[models.RouteType]models.RoutePerformance, len(s.perf))
	for k, v := range s.perf {
		perf[k] = v
	}
	return models.RouterSnapshot{Model: m, Performance: perf}
}

func (s *RouteSelector) publish(ctx context.Context, ev models.TradingEvent) {
	if s.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = s.now().UTC()
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		s.log.Warn("event publish failed", logger.String("type", string(ev.Type)), logger.Error(err))
	}
}
