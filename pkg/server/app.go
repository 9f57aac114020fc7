package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	mid "TradeCore/internal/middleware"
	tradingmetrics "TradeCore/internal/service/metrics"
	"TradeCore/internal/service/ratelimit"
	"TradeCore/internal/usecase"
	pkgch "TradeCore/pkg/clickhouse"
	"TradeCore/pkg/config"
	xhttp "TradeCore/pkg/http"
	pkgkafka "TradeCore/pkg/kafka"
	applogger "TradeCore/pkg/logger"
	"TradeCore/pkg/queue"
)

// Components are the wired parts the App starts and stops. Optional parts
// (collector, consumer, workers, infrastructure clients) may be nil.
type Components struct {
	Logger        *applogger.Logger
	Handlers      []xhttp.Handler
	Signals       *usecase.SignalAggregator
	Guard         *usecase.EvolutionGuard
	Ledger        *usecase.PaperLedger
	Collector     *usecase.TickCollector
	Processor     *usecase.TickProcessor
	Consumer      *pkgkafka.Consumer
	KafkaHandlers []pkgkafka.MessageHandler
	Workers       *queue.RedisQueue
	Producer      *pkgkafka.Producer
	ClickHouse    *pkgch.Client
	Redis         *redis.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	c          Components
	l          *applogger.Logger
	httpServer *xhttp.Server
}

func New(cfg *config.Config, c Components) *App {
	l := c.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, c: c, l: l}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		_ = a.shutdown(context.Background())
		return err
	}
	<-ctx.Done()

	a.l.Info("shutdown signal received")
	return a.shutdown(context.Background())
}

func (a *App) start(ctx context.Context) error {
	tradingmetrics.Register()

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if a.cfg.Server.RateLimitRPS > 0 {
		opts = append(opts, xhttp.WithMiddleware(mid.RateLimit(ratelimit.New(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst))))
	}
	a.httpServer = xhttp.NewServer(a.c.Handlers, opts...)

	if a.c.Collector != nil {
		if err := a.c.Collector.Start(ctx); err != nil {
			// prices fall back to REST quotes
			a.l.Error("tick collector start failed", applogger.Error(err))
		} else {
			a.l.Info("tick collector started", applogger.Any("symbols", a.cfg.Finnhub.Symbols))
		}
	}

	if a.c.Consumer != nil {
		for _, h := range a.c.KafkaHandlers {
			a.c.Consumer.RegisterHandler(h)
			a.l.Info("kafka handler registered", applogger.String("topic", h.Topic()))
		}
		go func() {
			if err := a.c.Consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
	}

	if a.c.Workers != nil {
		if err := a.c.Workers.Start(); err != nil {
			return err
		}
		a.l.Info("evolution workers started", applogger.Int("workers", a.cfg.Evolution.QueueConcurrency))
	}

	if a.c.Signals != nil {
		go a.every(ctx, a.cfg.Signals.SweepInterval, func() {
			if n := a.c.Signals.SweepCache(); n > 0 {
				a.l.Debug("signal cache swept", applogger.Int("evicted", n))
			}
		})
	}
	if a.c.Guard != nil {
		go a.every(ctx, a.cfg.Evolution.CleanupInterval, func() {
			n, reset := a.c.Guard.Cleanup()
			a.l.Debug("evolution cleanup", applogger.Int("evicted", n), applogger.Bool("novelty_reset", reset))
		})
	}

	return a.httpServer.Start()
}

func (a *App) every(ctx context.Context, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// shutdown stops intake first, then flushes state, then closes clients.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down")
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.c.Collector != nil {
		if err := a.c.Collector.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Workers != nil {
		if err := a.c.Workers.Stop(ctx); err != nil {
			a.l.Warn("evolution workers stop error", applogger.Error(err))
		}
	}
	if a.c.Ledger != nil {
		if err := a.c.Ledger.Close(ctx); err != nil {
			a.l.Error("paper ledger flush error", applogger.Error(err))
		}
	}
	if a.c.Processor != nil {
		a.c.Processor.Close()
	}

	a.l.RemoveCollector()
	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.c.Redis != nil {
		if err := a.c.Redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
