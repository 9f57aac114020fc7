package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	pkgch "TradeCore/pkg/clickhouse"
	applogger "TradeCore/pkg/logger"
)

// CHFeatureStore builds OHLCV candles on the fly from the ticks table.
type CHFeatureStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB(), table: ch.Database() + ".ticks"}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

// GetLatestNCandles returns up to n most recent candles in ascending bucket order.
func (s *CHFeatureStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	q, err := candleQuery(s.table, tf)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// query is DESC for the LIMIT; callers want ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func candleQuery(table string, tf domrepo.Timeframe) (string, error) {
	d := tf.Duration()
	if d <= 0 {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	const qtpl = `
        SELECT
            toStartOfInterval(ts, INTERVAL %d MINUTE) AS bucket,
            symbol,
            argMin(price, ts) AS open,
            max(price) AS high,
            min(price) AS low,
            argMax(price, ts) AS close,
            sum(volume) AS vol
        FROM %s
        WHERE symbol = ?
        GROUP BY bucket, symbol
        ORDER BY bucket DESC
        LIMIT ?
    `
	return fmt.Sprintf(qtpl, int(d/time.Minute), table), nil
}
