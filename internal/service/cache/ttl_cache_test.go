package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTTLCache_ExpiresOnRead(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTLCache(WithClock(clk.now))

	c.Set("a", 1, 30*time.Second)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	clk.t = clk.t.Add(30 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok, "entry is valid through its expiry instant")

	clk.t = clk.t.Add(time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Sweep(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTLCache(WithClock(clk.now))

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	c.Set("forever", 3, 0)

	clk.t = clk.t.Add(2 * time.Second)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 2, c.Len())
}

func TestTTLCache_SweepOlderThan(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTLCache(WithClock(clk.now))

	c.Set("old", 1, 0)
	clk.t = clk.t.Add(50 * time.Minute)
	c.Set("young", 2, 0)
	clk.t = clk.t.Add(15 * time.Minute)

	assert.Equal(t, 1, c.SweepOlderThan(time.Hour))
	_, ok := c.Get("young")
	assert.True(t, ok)
}

func TestTTLCache_DeletePrefix(t *testing.T) {
	c := NewTTLCache()
	c.Set("AAPL:1h", 1, 0)
	c.Set("AAPL:4h", 2, 0)
	c.Set("MSFT:1h", 3, 0)

	assert.Equal(t, 2, c.DeletePrefix("AAPL:"))
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
