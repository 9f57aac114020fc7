package queue

import "context"

// Job handles one message type. Payloads arrive as json.RawMessage when
// read from Redis; use ParsePayload to decode them.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}
