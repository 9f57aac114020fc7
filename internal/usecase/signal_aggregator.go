package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"TradeCore/internal/domain/models"
	domsvc "TradeCore/internal/domain/service"
	svccache "TradeCore/internal/service/cache"
	"TradeCore/internal/service/metrics"
	pkgcache "TradeCore/pkg/cache"
	"TradeCore/pkg/logger"
)

const signalKeyPrefix = "signals"

// SignalAggregator fuses indicator readings and the regime label into one
// CompositeSignal. It never fails: collaborator errors produce a degraded signal.
type SignalAggregator struct {
	indicators domsvc.IndicatorService
	cache      *svccache.TTLCache
	shared     pkgcache.Service
	ttl        time.Duration
	count      int
	timeout    time.Duration
	now        func() time.Time
	log        *logger.Logger
}

type SignalOption func(*SignalAggregator)

func WithSignalTTL(ttl time.Duration) SignalOption {
	return func(a *SignalAggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithIndicatorCount sets how many bars are requested from the indicator service.
func WithIndicatorCount(n int) SignalOption {
	return func(a *SignalAggregator) {
		if n > 0 {
			a.count = n
		}
	}
}

func WithFetchTimeout(d time.Duration) SignalOption {
	return func(a *SignalAggregator) { a.timeout = d }
}

// WithSharedCache adds a second cache level shared across instances.
func WithSharedCache(c pkgcache.Service) SignalOption {
	return func(a *SignalAggregator) { a.shared = c }
}

func WithSignalClock(now func() time.Time) SignalOption {
	return func(a *SignalAggregator) { a.now = now }
}

func WithSignalLogger(l *logger.Logger) SignalOption {
	return func(a *SignalAggregator) { a.log = l }
}

func NewSignalAggregator(ind domsvc.IndicatorService, opts ...SignalOption) *SignalAggregator {
	a := &SignalAggregator{
		indicators: ind,
		ttl:        30 * time.Second,
		count:      200,
		timeout:    10 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cache = svccache.NewTTLCache(svccache.WithClock(a.now))
	return a
}

func signalKey(symbol, timeframe string) string {
	return pkgcache.GenerateKeyWithParams(signalKeyPrefix, strings.ToUpper(symbol), timeframe)
}

// GenerateSignals returns the composite verdict for symbol, from cache when fresh.
func (a *SignalAggregator) GenerateSignals(ctx context.Context, symbol, timeframe string) models.CompositeSignal {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if timeframe == "" {
		timeframe = "1h"
	}
	key := signalKey(symbol, timeframe)

	if v, ok := a.cache.Get(key); ok {
		sig := v.(models.CompositeSignal)
		sig.Status = models.SignalCached
		metrics.SignalsTotal.WithLabelValues(string(sig.Signal), string(sig.Status)).Inc()
		return sig
	}
	if a.shared != nil {
		var sig models.CompositeSignal
		if err := a.shared.Get(ctx, key, &sig); err == nil {
			a.cache.Set(key, sig, a.ttl)
			sig.Status = models.SignalCached
			metrics.SignalsTotal.WithLabelValues(string(sig.Signal), string(sig.Status)).Inc()
			return sig
		}
	}

	sig := a.compute(ctx, symbol, timeframe)
	metrics.SignalsTotal.WithLabelValues(string(sig.Signal), string(sig.Status)).Inc()
	if sig.Degraded() {
		return sig
	}

	a.cache.Set(key, sig, a.ttl)
	if a.shared != nil {
		if err := a.shared.Set(ctx, key, sig, a.ttl); err != nil {
			a.log.Warn("shared signal cache write failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return sig
}

func (a *SignalAggregator) compute(ctx context.Context, symbol, timeframe string) models.CompositeSignal {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var (
		ind       *models.Indicators
		indErr    error
		regime    models.Regime
		regimeErr error
	)
	// Plain group: a regime failure must not cancel the indicator fetch.
	var g errgroup.Group
	g.Go(func() error {
		start := time.Now()
		ind, indErr = a.indicators.GetIndicators(ctx, symbol, timeframe, a.count)
		observeCall("indicators", start, indErr)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		regime, regimeErr = a.indicators.GetMarketRegime(ctx, symbol)
		observeCall("regime", start, regimeErr)
		return nil
	})
	_ = g.Wait()

	if indErr != nil || ind == nil {
		if indErr != nil {
			a.log.Warn("indicators unavailable, signal degraded", logger.String("symbol", symbol), logger.Error(indErr))
		}
		return a.degraded(symbol, timeframe)
	}

	label := RegimeUnknown
	if regimeErr != nil {
		a.log.Warn("regime unavailable", logger.String("symbol", symbol), logger.Error(regimeErr))
	} else {
		label = normalizeRegime(regime.State)
	}
	adj := adjustmentFor(label)

	signals := evaluateAll(ind, adj)
	side, conf, buy, sell := blend(signals)

	return models.CompositeSignal{
		Symbol:           symbol,
		Timeframe:        timeframe,
		Signal:           side,
		Confidence:       clamp01(conf * adj.Multiplier),
		BuyScore:         buy,
		SellScore:        sell,
		Regime:           label,
		RegimeMultiplier: adj.Multiplier,
		Indicators:       signals,
		Reason:           reasonFor(side, signals),
		Status:           models.SignalComputed,
		Timestamp:        a.now().UTC(),
	}
}

func (a *SignalAggregator) degraded(symbol, timeframe string) models.CompositeSignal {
	return models.CompositeSignal{
		Symbol:           symbol,
		Timeframe:        timeframe,
		Signal:           models.SignalNeutral,
		Confidence:       neutralConfidence,
		Regime:           RegimeUnknown,
		RegimeMultiplier: 1.0,
		Reason:           "No data",
		Status:           models.SignalDegraded,
		Timestamp:        a.now().UTC(),
	}
}

// reasonFor lists the indicators that agree with the verdict, e.g. "buy: macd bullish histogram, rsi oversold below 30".
func reasonFor(side models.SignalSide, signals map[string]models.IndicatorSignal) string {
	if side == models.SignalNeutral {
		return "indicators mixed or flat"
	}
	names := make([]string, 0, len(signals))
	for name, s := range signals {
		if s.Signal == side {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		s := signals[name]
		d := s.Detail
		if d == "" {
			d = s.Strength
		}
		parts = append(parts, strings.TrimSpace(name+" "+d))
	}
	return fmt.Sprintf("%s: %s", side, strings.Join(parts, ", "))
}

// SweepCache drops expired signals and returns how many were removed.
func (a *SignalAggregator) SweepCache() int {
	return a.cache.Sweep()
}

// ClearCache empties every cache level, including the indicator service's own.
func (a *SignalAggregator) ClearCache(ctx context.Context) {
	a.cache.Clear()
	if a.shared != nil {
		if err := a.shared.DeleteByPattern(ctx, signalKeyPrefix+":*"); err != nil {
			a.log.Warn("shared signal cache clear failed", logger.Error(err))
		}
	}
	a.indicators.ClearCache()
}

func observeCall(call string, start time.Time, err error) {
	metrics.CollaboratorLatency.WithLabelValues(call).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues(call).Inc()
	}
}
