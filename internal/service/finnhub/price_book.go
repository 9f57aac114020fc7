package finnhub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeCore/internal/domain/models"
	domsvc "TradeCore/internal/domain/service"
	"TradeCore/internal/service/metrics"
	xhttp "TradeCore/pkg/http"

	"github.com/tidwall/gjson"
)

// PriceBook is the Market Data Provider: the last streamed trade per symbol,
// with a REST quote fallback when the streamed price is missing or stale.
type PriceBook struct {
	mu     sync.RWMutex
	last   map[string]models.Ticker
	maxAge time.Duration
	now    func() time.Time

	restURL string
	apiKey  string
	client  *xhttp.Client
}

type PriceBookOption func(*PriceBook)

// WithRestFallback enables quote lookups against the Finnhub REST API.
func WithRestFallback(restURL, apiKey string, client *xhttp.Client) PriceBookOption {
	return func(b *PriceBook) {
		b.restURL = strings.TrimRight(restURL, "/")
		b.apiKey = apiKey
		b.client = client
	}
}

// WithPriceClock overrides time.Now, for tests.
func WithPriceClock(now func() time.Time) PriceBookOption {
	return func(b *PriceBook) { b.now = now }
}

func NewPriceBook(maxAge time.Duration, opts ...PriceBookOption) *PriceBook {
	b := &PriceBook{last: make(map[string]models.Ticker), maxAge: maxAge, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Update records a streamed tick. Older ticks never overwrite newer ones.
func (b *PriceBook) Update(t *models.Tick) {
	if t == nil || t.Symbol == "" || t.Price <= 0 {
		return
	}
	ts := time.Unix(t.Timestamp, 0).UTC()
	sym := strings.ToUpper(t.Symbol)
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.last[sym]; ok && cur.Timestamp.After(ts) {
		return
	}
	b.last[sym] = models.Ticker{Symbol: sym, Last: t.Price, Timestamp: ts}
}

// Set stores a price directly; used for manual marks and tests.
func (b *PriceBook) Set(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sym := strings.ToUpper(symbol)
	b.last[sym] = models.Ticker{Symbol: sym, Last: price, Timestamp: b.now().UTC()}
}

func (b *PriceBook) GetTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	sym := strings.ToUpper(symbol)
	b.mu.RLock()
	t, ok := b.last[sym]
	b.mu.RUnlock()
	if ok && (b.maxAge <= 0 || b.now().Sub(t.Timestamp) <= b.maxAge) {
		return t, nil
	}
	if b.client == nil {
		if ok {
			return models.Ticker{}, fmt.Errorf("%s: last price is %s old", sym, b.now().Sub(t.Timestamp).Round(time.Second))
		}
		return models.Ticker{}, fmt.Errorf("%s: no price", sym)
	}

	start := time.Now()
	q, err := b.quote(ctx, sym)
	metrics.CollaboratorLatency.WithLabelValues("quote").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("quote").Inc()
		return models.Ticker{}, err
	}
	b.mu.Lock()
	b.last[sym] = q
	b.mu.Unlock()
	return q, nil
}

func (b *PriceBook) quote(ctx context.Context, sym string) (models.Ticker, error) {
	var raw []byte
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.restURL + "/quote",
		QueryParams: map[string][]string{"symbol": {sym}, "token": {b.apiKey}},
	}, &raw)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("quote %s: %w", sym, err)
	}
	res := gjson.ParseBytes(raw)
	price := res.Get("c").Float()
	if price <= 0 {
		return models.Ticker{}, fmt.Errorf("quote %s: no current price", sym)
	}
	ts := b.now().UTC()
	if sec := res.Get("t").Int(); sec > 0 {
		ts = time.Unix(sec, 0).UTC()
	}
	// the quote is as fresh as we can get; stamp it now so it is not refetched immediately
	if b.maxAge > 0 && b.now().Sub(ts) > b.maxAge {
		ts = b.now().UTC()
	}
	return models.Ticker{Symbol: sym, Last: price, Timestamp: ts}, nil
}

var _ domsvc.MarketData = (*PriceBook)(nil)
