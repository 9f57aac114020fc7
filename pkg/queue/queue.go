package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the publishing side used by request handlers.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig tunes the worker pool and retry policy.
type QueueConfig struct {
	Workers       int
	RetryLimit    int
	RetryDelay    time.Duration // first retry; later ones back off exponentially
	MaxRetryDelay time.Duration
}

// Message is the envelope stored in Redis. The payload stays raw JSON until
// the owning job decodes it.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// ParsePayload decodes a job payload into T. Jobs receive json.RawMessage
// from Redis and typed values when invoked directly.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T
	var raw []byte

	switch p := payload.(type) {
	case *T:
		if p == nil {
			return nil, fmt.Errorf("nil payload")
		}
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case nil:
		return nil, fmt.Errorf("nil payload")
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode %T payload: %w", payload, err)
		}
		raw = b
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &result, nil
}
