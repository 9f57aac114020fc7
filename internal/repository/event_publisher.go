package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
	metrics "TradeCore/internal/service/metrics"
	pkgkafka "TradeCore/pkg/kafka"
)

// KafkaEventPublisher writes trading events to the events topic keyed by symbol.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, ev models.TradingEvent) error {
	key := ev.Symbol
	if key == "" {
		key = string(ev.Type)
	}
	err := p.producer.Publish(ctx, p.topic, []byte(key), ev)
	observe("kafka", err)
	return err
}

// ClickHouseEventJournal appends trading events to database.trading_events.
type ClickHouseEventJournal struct {
	db    *sql.DB
	table string
}

func NewClickHouseEventJournal(db *sql.DB, database string) *ClickHouseEventJournal {
	return &ClickHouseEventJournal{db: db, table: database + ".trading_events"}
}

func (j *ClickHouseEventJournal) PublishEvent(ctx context.Context, ev models.TradingEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (id, type, symbol, payload, ts) VALUES (?, ?, ?, ?, ?)", j.table)
	_, err = j.db.ExecContext(ctx, q, ev.ID, string(ev.Type), ev.Symbol, string(payload), ev.Timestamp.UTC())
	observe("clickhouse", err)
	if err != nil {
		return fmt.Errorf("journal event: %w", err)
	}
	return nil
}

// MultiPublisher fans an event out to every sink and joins their errors.
type MultiPublisher []repository.EventPublisher

func (m MultiPublisher) PublishEvent(ctx context.Context, ev models.TradingEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, models.TradingEvent) error { return nil }

func observe(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.EventsPublished.WithLabelValues(sink, result).Inc()
}

// LogBatchPublisher ships aggregated error batches from the log collector
// to a Kafka topic.
type LogBatchPublisher struct {
	producer *pkgkafka.Producer
}

func NewLogBatchPublisher(producer *pkgkafka.Producer) *LogBatchPublisher {
	return &LogBatchPublisher{producer: producer}
}

func (p *LogBatchPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	err := p.producer.Publish(ctx, topic, nil, payload)
	observe("kafka_logs", err)
	return err
}
