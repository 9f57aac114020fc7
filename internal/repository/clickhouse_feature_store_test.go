package repository

import (
	"testing"

	domrepo "TradeCore/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleQueryInterval(t *testing.T) {
	cases := map[domrepo.Timeframe]string{
		domrepo.TF1m:  "INTERVAL 1 MINUTE",
		domrepo.TF15m: "INTERVAL 15 MINUTE",
		domrepo.TF4h:  "INTERVAL 240 MINUTE",
		domrepo.TF1d:  "INTERVAL 1440 MINUTE",
	}
	for tf, want := range cases {
		q, err := candleQuery("tradecore.ticks", tf)
		require.NoError(t, err)
		assert.Contains(t, q, want, tf)
		assert.Contains(t, q, "FROM tradecore.ticks")
	}
}

func TestCandleQueryUnknownTimeframe(t *testing.T) {
	_, err := candleQuery("t", domrepo.Timeframe("7m"))
	require.Error(t, err)
}
