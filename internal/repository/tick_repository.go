package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	pkgkafka "TradeCore/pkg/kafka"
)

const tickInsertChunk = 2000

// ClickHouseTickStorage writes ticks into the ticks table candles are built from.
type ClickHouseTickStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseTickStorage creates ClickHouse tick storage for database.ticks.
func NewClickHouseTickStorage(db *sql.DB, database string) repository.TickStorage {
	return &ClickHouseTickStorage{db: db, table: database + ".ticks"}
}

func (s *ClickHouseTickStorage) Store(ctx context.Context, t *models.Tick) error {
	return s.StoreBatch(ctx, []*models.Tick{t})
}

// StoreBatch inserts multi-row VALUES in chunks. Invalid ticks are skipped.
func (s *ClickHouseTickStorage) StoreBatch(ctx context.Context, ticks []*models.Tick) error {
	for start := 0; start < len(ticks); start += tickInsertChunk {
		end := start + tickInsertChunk
		if end > len(ticks) {
			end = len(ticks)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, t := range ticks[start:end] {
			if !validTick(t) {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.Unix(t.Timestamp, 0).UTC(),
				t.Symbol,
				t.Price,
				t.Volume,
				"finnhub",
				tickEventID(t),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume, source, event_id) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseTickStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseTickStorage) Close() error {
	return nil
}

// KafkaTickPublisher forwards ticks keyed by symbol.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTickPublisher creates a Kafka tick publisher.
func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) repository.TickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.PublishBatch(ctx, []*models.Tick{t})
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	msgs := make([]pkgkafka.Message, 0, len(ticks))
	for _, t := range ticks {
		if !validTick(t) {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(t.Symbol), Value: TickWire{
			Symbol: t.Symbol,
			T:      t.Timestamp,
			C:      t.Price,
			V:      t.Volume,
		}})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the event publisher.
func (p *KafkaTickPublisher) Close() error {
	return nil
}

// TickWire is the JSON shape on the ticks topic.
type TickWire struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

func validTick(t *models.Tick) bool {
	return t != nil && t.Symbol != "" && t.Timestamp > 0 && t.Price > 0
}

func tickEventID(t *models.Tick) string {
	return fmt.Sprintf("%s-%d-%g", t.Symbol, t.Timestamp, t.Price)
}
