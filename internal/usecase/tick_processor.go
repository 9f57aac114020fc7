package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	drepo "TradeCore/internal/domain/repository"
)

// PriceSink receives every accepted tick before it is forwarded.
type PriceSink interface {
	Update(t *models.Tick)
}

// TickProcessor marks prices and routes ticks to the configured backend
// ("kafka", "clickhouse" or "none").
type TickProcessor struct {
	prices  PriceSink
	pub     drepo.TickPublisher
	store   drepo.TickStorage
	metrics drepo.Metrics
	backend string
}

func NewTickProcessor(prices PriceSink, pub drepo.TickPublisher, store drepo.TickStorage, metrics drepo.Metrics, backend string) *TickProcessor {
	return &TickProcessor{prices: prices, pub: pub, store: store, metrics: metrics, backend: backend}
}

// Process marks the price, then forwards t to the backend.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	if p.prices != nil {
		p.prices.Update(t)
	}
	p.metrics.RecordLastPrice(t.Symbol, t.Price)

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, t)
	case "clickhouse":
		err = p.store.Store(ctx, t)
	case "none", "":
		return nil
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, t.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// Close closes the publisher and storage if set.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
