package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, clk *fakeClock, opts ...MemoryOption) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(append([]MemoryOption{WithMemoryClock(clk.Now)}, opts...)...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCache_RoundTripStruct(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mc := newTestCache(t, clk)
	ctx := context.Background()

	type payload struct {
		Symbol string  `json:"symbol"`
		Score  float64 `json:"score"`
	}
	require.NoError(t, mc.Set(ctx, "sig:AAPL", payload{"AAPL", 0.7}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "sig:AAPL", &got))
	assert.Equal(t, payload{"AAPL", 0.7}, got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mc := newTestCache(t, clk)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", 30*time.Second))
	clk.Advance(31 * time.Second)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCache_TryLock(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mc := newTestCache(t, clk)
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock:AAPL", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "lock:AAPL", 10*time.Second)
	assert.False(t, ok, "second lock must fail while held")

	require.NoError(t, mc.Unlock(ctx, "lock:AAPL"))
	ok, _ = mc.TryLock(ctx, "lock:AAPL", 10*time.Second)
	assert.True(t, ok)

	clk.Advance(11 * time.Second)
	ok, _ = mc.TryLock(ctx, "lock:AAPL", 10*time.Second)
	assert.True(t, ok, "expired lock can be retaken")
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mc := newTestCache(t, clk)
	ctx := context.Background()

	_ = mc.Set(ctx, "signals:AAPL:1h", "a", 0)
	_ = mc.Set(ctx, "signals:MSFT:1h", "b", 0)
	_ = mc.Set(ctx, "lock:AAPL", "c", 0)

	require.NoError(t, mc.DeleteByPattern(ctx, "signals:*"))
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCache_EvictsLRU(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	mc := newTestCache(t, clk, WithMemoryMaxSize(2))
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	clk.Advance(time.Second)
	_ = mc.Set(ctx, "b", "2", 0)
	clk.Advance(time.Second)
	var s string
	_ = mc.Get(ctx, "a", &s) // touch a
	clk.Advance(time.Second)
	_ = mc.Set(ctx, "c", "3", 0)

	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a", "c")
	assert.True(t, ok)
}

func TestHashParams_OrderIndependent(t *testing.T) {
	a := HashParams(map[string]float64{"period": 14, "std": 2})
	b := HashParams(map[string]float64{"std": 2, "period": 14})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, HashParams(map[string]float64{"period": 21, "std": 2}))
}
