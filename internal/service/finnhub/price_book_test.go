package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
	xhttp "TradeCore/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceBookStreamedPrice(t *testing.T) {
	now := time.Unix(1_700_000_100, 0)
	b := NewPriceBook(time.Minute, WithPriceClock(func() time.Time { return now }))

	b.Update(&models.Tick{Symbol: "abc", Timestamp: 1_700_000_090, Price: 101})
	b.Update(&models.Tick{Symbol: "ABC", Timestamp: 1_700_000_050, Price: 99})

	tk, err := b.GetTicker(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, 101.0, tk.Last)
}

func TestPriceBookStaleWithoutFallback(t *testing.T) {
	now := time.Unix(1_700_001_000, 0)
	b := NewPriceBook(time.Minute, WithPriceClock(func() time.Time { return now }))
	b.Update(&models.Tick{Symbol: "ABC", Timestamp: 1_700_000_000, Price: 101})

	_, err := b.GetTicker(context.Background(), "ABC")
	require.Error(t, err)

	_, err = b.GetTicker(context.Background(), "XYZ")
	require.Error(t, err)
}

func TestPriceBookRestFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "ABC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "k", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{"c":123.5,"h":125,"l":120,"t":0}`))
	}))
	defer srv.Close()

	b := NewPriceBook(time.Minute, WithRestFallback(srv.URL, "k", xhttp.NewClient(xhttp.WithHTTPClient(srv.Client()))))
	tk, err := b.GetTicker(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 123.5, tk.Last)
	assert.Equal(t, "ABC", tk.Symbol)
}

func TestPriceBookRestNoPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"c":0}`))
	}))
	defer srv.Close()

	b := NewPriceBook(time.Minute, WithRestFallback(srv.URL, "k", xhttp.NewClient(xhttp.WithHTTPClient(srv.Client()))))
	_, err := b.GetTicker(context.Background(), "ABC")
	require.Error(t, err)
}

func TestDecodeTrades(t *testing.T) {
	ticks := decodeTrades([]byte(`{"type":"trade","data":[{"s":"ABC","p":10.5,"v":3,"t":1700000000123}]}`))
	require.Len(t, ticks, 1)
	assert.Equal(t, int64(1700000000), ticks[0].Timestamp)
	assert.Equal(t, 10.5, ticks[0].Price)

	assert.Empty(t, decodeTrades([]byte(`{"type":"ping"}`)))
	assert.Empty(t, decodeTrades([]byte(`garbage`)))
}
