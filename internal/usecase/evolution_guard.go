package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	domsvc "TradeCore/internal/domain/service"
	svccache "TradeCore/internal/service/cache"
	"TradeCore/pkg/logger"
)

const (
	stopQuantum       = 0.005
	cacheMaxAge       = time.Hour
	defaultNoveltyMax = 1000
)

// EvolutionGuard holds the anti-overfitting state shared by a strategy search:
// indicator cache, novelty tracker, adversarial stats and the correlation guard.
type EvolutionGuard struct {
	calc         domsvc.IndicatorCalculator
	cache        *svccache.TTLCache
	indicatorTTL time.Duration
	hits         atomic.Int64
	misses       atomic.Int64

	mu          sync.Mutex
	novelty     map[string]int
	noveltyMax  int
	decay       float64
	elite       float64
	segments    []models.AdversarialSegment
	advCount    int
	worstSharpe float64
	maxCorr     float64
	bots        map[string]string
	corr        map[string]float64
	live        map[string]*liveRecord
	advSeen     bool

	events repository.EventPublisher
	now    func() time.Time
	log    *logger.Logger
}

type GuardOption func(*EvolutionGuard)

func WithIndicatorTTL(d time.Duration) GuardOption {
	return func(g *EvolutionGuard) {
		if d > 0 {
			g.indicatorTTL = d
		}
	}
}

func WithMaxCorrelation(v float64) GuardOption {
	return func(g *EvolutionGuard) {
		if v > 0 {
			g.maxCorr = v
		}
	}
}

// WithNovelty sets the per-repeat decay, the elite fitness threshold and the
// tracker size at which Cleanup resets it.
func WithNovelty(decay, elite float64, maxSize int) GuardOption {
	return func(g *EvolutionGuard) {
		if decay > 0 && decay <= 1 {
			g.decay = decay
		}
		if elite > 0 {
			g.elite = elite
		}
		if maxSize > 0 {
			g.noveltyMax = maxSize
		}
	}
}

func WithSegments(segs []models.AdversarialSegment) GuardOption {
	return func(g *EvolutionGuard) {
		if len(segs) > 0 {
			g.segments = segs
		}
	}
}

func WithGuardEvents(p repository.EventPublisher) GuardOption {
	return func(g *EvolutionGuard) { g.events = p }
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *EvolutionGuard) { g.now = now }
}

func NewEvolutionGuard(calc domsvc.IndicatorCalculator, opts ...GuardOption) *EvolutionGuard {
	g := &EvolutionGuard{
		calc:         calc,
		indicatorTTL: 5 * time.Minute,
		novelty:      make(map[string]int),
		noveltyMax:   defaultNoveltyMax,
		decay:        0.95,
		elite:        0.8,
		segments:     DefaultSegments(),
		maxCorr:      0.75,
		bots:         make(map[string]string),
		corr:         make(map[string]float64),
		live:         make(map[string]*liveRecord),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache = svccache.NewTTLCache(svccache.WithClock(g.now))
	return g
}

func (g *EvolutionGuard) SetLogger(l *logger.Logger) { g.log = l }

// Fingerprint identifies a strategy's logic independent of its id. Signal ids
// are sorted and deduplicated; stops are quantized so near-equal values collide.
func Fingerprint(p models.StrategyParameters) string {
	return fmt.Sprintf("entry:%s|exit:%s|sl:%.3f|tp:%.3f|tf:%s",
		strings.Join(normalizeSignals(p.EntrySignals), ","),
		strings.Join(normalizeSignals(p.ExitSignals), ","),
		quantize(p.StopLoss),
		quantize(p.TakeProfit),
		strings.ToLower(strings.TrimSpace(p.Timeframe)),
	)
}

func normalizeSignals(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func quantize(v float64) float64 {
	q := math.Round(v/stopQuantum) * stopQuantum
	if q == 0 {
		return 0
	}
	return q
}

// GetOptimizationStats reports the current state of every guard.
func (g *EvolutionGuard) GetOptimizationStats() models.OptimizationStats {
	hits, misses := g.hits.Load(), g.misses.Load()
	st := models.OptimizationStats{
		CacheSize:   g.cache.Len(),
		CacheHits:   hits,
		CacheMisses: misses,
	}
	if hits+misses > 0 {
		st.CacheHitRate = float64(hits) / float64(hits+misses)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	st.UniqueFingerprints = len(g.novelty)
	st.AdversarialEvaluations = g.advCount
	st.WorstAdversarialSharpe = g.worstSharpe
	st.ActiveBots = len(g.bots)
	for id, rec := range g.live {
		p := g.livePerfLocked(id, rec)
		st.LiveOutcomes += p.Trades
		if len(st.LiveBots) == 0 || p.Sharpe < st.WorstLiveSharpe {
			st.WorstLiveSharpe = p.Sharpe
		}
		st.LiveBots = append(st.LiveBots, p)
	}
	sort.Slice(st.LiveBots, func(i, j int) bool { return st.LiveBots[i].BotID < st.LiveBots[j].BotID })
	st.DiversificationScore = 1
	if len(g.corr) > 0 {
		sum := 0.0
		for _, c := range g.corr {
			sum += c
			if c > st.MaxPairwiseCorrelation {
				st.MaxPairwiseCorrelation = c
			}
		}
		st.DiversificationScore = 1 - sum/float64(len(g.corr))
	}
	return st
}

// Cleanup drops indicator entries older than an hour and resets the novelty
// tracker once it outgrows its limit. It returns the evicted cache count.
func (g *EvolutionGuard) Cleanup() (evicted int, noveltyReset bool) {
	evicted = g.cache.SweepOlderThan(cacheMaxAge)

	g.mu.Lock()
	if len(g.novelty) > g.noveltyMax {
		g.novelty = make(map[string]int)
		noveltyReset = true
	}
	g.mu.Unlock()

	g.log.Debug("evolution guard cleanup", logger.Int("evicted", evicted), logger.Bool("novelty_reset", noveltyReset))
	return evicted, noveltyReset
}

// liveRecord accumulates realized P&L per bot; moments are kept so the
// Sharpe estimate needs no trade list.
type liveRecord struct {
	trades int
	wins   int
	sum    float64
	sumSq  float64
}

// RecordLiveOutcome folds a realized trade into a bot's live record.
func (g *EvolutionGuard) RecordLiveOutcome(botID string, pnl float64) {
	if botID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.live[botID]
	if !ok {
		rec = &liveRecord{}
		g.live[botID] = rec
	}
	rec.trades++
	if pnl > 0 {
		rec.wins++
	}
	rec.sum += pnl
	rec.sumSq += pnl * pnl
}

// LivePerformance returns the live record of botID.
func (g *EvolutionGuard) LivePerformance(botID string) (models.BotPerformance, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.live[botID]
	if !ok {
		return models.BotPerformance{}, false
	}
	return g.livePerfLocked(botID, rec), true
}

func (g *EvolutionGuard) livePerfLocked(botID string, rec *liveRecord) models.BotPerformance {
	_, active := g.bots[botID]
	p := models.BotPerformance{BotID: botID, Active: active, Trades: rec.trades, Wins: rec.wins, TotalPnL: rec.sum}
	if rec.trades == 0 {
		return p
	}
	n := float64(rec.trades)
	mu := rec.sum / n
	p.WinRate = float64(rec.wins) / n
	p.AvgPnL = mu
	sigma := math.Sqrt(math.Max(0, rec.sumSq/n-mu*mu))
	if sigma < 1e-12 {
		if mu == 0 {
			return p
		}
		sigma = math.Abs(mu)
	}
	p.Sharpe = mu / sigma * math.Sqrt(n)
	return p
}

func (g *EvolutionGuard) publish(ctx context.Context, ev models.TradingEvent) {
	if g.events == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = g.now().UTC()
	if err := g.events.PublishEvent(ctx, ev); err != nil {
		g.log.Warn("event publish failed", logger.String("type", string(ev.Type)), logger.Error(err))
	}
}

// penalize lowers fitness by share of its magnitude, so it never rises.
func penalize(fitness, share float64) float64 {
	return fitness - math.Abs(fitness)*share
}
