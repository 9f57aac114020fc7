package usecase

import (
	"context"

	"TradeCore/internal/domain/models"
	drepo "TradeCore/internal/domain/repository"
	mid "TradeCore/internal/middleware"
	applogger "TradeCore/pkg/logger"
)

// TickCollector pumps ticks from the market stream through the pipeline.
type TickCollector struct {
	stream  drepo.MarketStream
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	l       *applogger.Logger
	done    chan struct{}
}

func NewTickCollector(stream drepo.MarketStream, metrics drepo.Metrics, pipe *mid.RealtimePipeline, l *applogger.Logger) *TickCollector {
	return &TickCollector{stream: stream, metrics: metrics, pipe: pipe, l: l, done: make(chan struct{})}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx ends.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	go c.run(ctx)
	return nil
}

func (c *TickCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		ticks, errs := c.stream.Read(ctx)
		c.consume(ctx, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		if err := c.stream.Reconnect(ctx); err != nil {
			c.l.Warn("market stream reconnect aborted", applogger.Error(err))
			return
		}
	}
}

// consume drains one Read session; it returns when the stream ends.
func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				c.l.Warn("market stream error", applogger.Error(err))
				return
			}
			if !ok {
				errs = nil
			}
		case t, ok := <-ticks:
			if !ok {
				return
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.l.Debug("tick not forwarded", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
