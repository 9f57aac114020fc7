package repository

import (
	"context"
	"errors"
	"time"

	"TradeCore/internal/domain/models"
)

// ErrAccountNotFound is returned by AccountStore.Load when nothing was persisted yet.
var ErrAccountNotFound = errors.New("account snapshot not found")

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickPublisher forwards market ticks to the stream backend.
type TickPublisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// TickStorage persists ticks so candles can be built for local indicators.
type TickStorage interface {
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Health(ctx context.Context) error
	Close() error
}

// AccountStore persists the paper account as a single document.
type AccountStore interface {
	Load(ctx context.Context) (*models.PaperAccount, error)
	Save(ctx context.Context, acct *models.PaperAccount) error
}

// EventPublisher receives trading events. Implementations must be safe for concurrent use.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.TradingEvent) error
}

// Locker serializes work on a key across goroutines or processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
