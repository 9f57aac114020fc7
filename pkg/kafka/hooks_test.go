package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChain_OrderAndPanics(t *testing.T) {
	var calls []string
	record := func(name string) HookFuncs {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				calls = append(calls, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				calls = append(calls, "after:"+name)
			},
		}
	}
	panicky := HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { panic("boom") }}

	chain := NewHookChain(record("a"), nil, panicky, record("b"))
	ctx, km, data, err := chain.BeforeHandle(context.Background(), "tradecore.outcomes", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))

	chain.AfterHandle(ctx, "tradecore.outcomes", km, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, calls)
}

func TestHookChain_BeforeErrorNotifiesAll(t *testing.T) {
	var notified int
	onErr := HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { notified++ }}
	reject := HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
		return ctx, km, data, &HookError{Code: "ERR_VALIDATION", Err: errors.New("missing route")}
	}}

	_, _, _, err := NewHookChain(onErr, reject, onErr).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_VALIDATION", he.Code)
	assert.Equal(t, 2, notified)
}

func TestExtractTraceID(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	assert.Equal(t, "abc", ExtractTraceID(km))
	assert.Empty(t, ExtractTraceID(kafka.Message{}))
}
