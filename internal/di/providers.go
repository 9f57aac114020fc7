package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	domsvc "TradeCore/internal/domain/service"
	"TradeCore/internal/handler/api"
	mid "TradeCore/internal/middleware"
	internalrepo "TradeCore/internal/repository"
	"TradeCore/internal/service/finnhub"
	"TradeCore/internal/services/indicators"
	"TradeCore/internal/usecase"
	pkgcache "TradeCore/pkg/cache"
	pkgch "TradeCore/pkg/clickhouse"
	"TradeCore/pkg/config"
	xhttp "TradeCore/pkg/http"
	pkgkafka "TradeCore/pkg/kafka"
	applogger "TradeCore/pkg/logger"
	"TradeCore/pkg/metrics"
	"TradeCore/pkg/queue"
	"TradeCore/pkg/server"
	"TradeCore/pkg/stats"
)

// Optional infrastructure providers return nil when the section is disabled;
// downstream providers treat nil as "not configured".

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rc, nil
}

// ProvideKafkaProducer creates the shared Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.LoggingHook{Log: l}))
	return consumer, nil
}

// ProvideCache returns Redis behind an in-process L1 when Redis is enabled,
// and a memory cache otherwise.
func ProvideCache(rc *redis.Client) pkgcache.Service {
	if rc == nil {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(5000), pkgcache.WithMemoryCleanup(time.Minute))
	}
	return pkgcache.NewLayeredCache(pkgcache.NewRedisCacheFromClient(rc, "tradecore"), pkgcache.WithLayeredMemorySize(2000))
}

// ProvideEventPublisher fans trading events out to Kafka and the ClickHouse journal.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, ch *pkgch.Client) domrepo.EventPublisher {
	var sinks internalrepo.MultiPublisher
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic))
	}
	if ch != nil {
		sinks = append(sinks, internalrepo.NewClickHouseEventJournal(ch.DB(), cfg.ClickHouse.Database))
	}
	if len(sinks) == 0 {
		return internalrepo.NopPublisher{}
	}
	return sinks
}

// ProvideMetrics creates the Prometheus recorder for the tick path.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

func ProvideFeatureStore(ch *pkgch.Client, l *applogger.Logger) domrepo.FeatureStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHFeatureStore(ch)
	store.SetLogger(l)
	return store
}

func ProvideTalibService(store domrepo.FeatureStore, l *applogger.Logger) *indicators.TalibIndicatorService {
	if store == nil {
		return nil
	}
	svc := indicators.NewTalibIndicatorService(store)
	svc.SetLogger(l)
	return svc
}

// ProvideIndicatorService picks the remote indicator service or local talib.
func ProvideIndicatorService(cfg *config.Config, local *indicators.TalibIndicatorService) domsvc.IndicatorService {
	if cfg.Indicators.Source == "local" && local != nil {
		return local
	}
	return indicators.NewHTTPIndicatorService(
		indicators.NewHTTPServiceBase(cfg.Indicators.ServiceURL, cfg.Indicators.Timeout, cfg.Indicators.RPS),
	)
}

// ProvideIndicatorCalculator needs candles; without ClickHouse the guard's
// indicator cache reports every lookup as unavailable.
func ProvideIndicatorCalculator(local *indicators.TalibIndicatorService) domsvc.IndicatorCalculator {
	if local == nil {
		return nil
	}
	return local
}

func ProvideBrainService(cfg *config.Config) domsvc.BrainService {
	return indicators.NewHTTPBrainService(
		indicators.NewHTTPServiceBase(cfg.Brain.ServiceURL, cfg.Brain.Timeout, 0),
	)
}

// ProvidePriceBook creates the market data provider fed by the tick stream.
func ProvidePriceBook(cfg *config.Config) *finnhub.PriceBook {
	var opts []finnhub.PriceBookOption
	if cfg.Finnhub.APIKey != "" {
		client := xhttp.NewClient(
			xhttp.WithTimeout(cfg.Paper.PriceTimeout),
			xhttp.WithRateLimit(1, 5),
			xhttp.WithRetry(cfg.Paper.PriceTimeout),
		)
		opts = append(opts, finnhub.WithRestFallback(cfg.Finnhub.RestURL, cfg.Finnhub.APIKey, client))
	}
	return finnhub.NewPriceBook(cfg.Finnhub.MaxPriceAge, opts...)
}

func ProvideMarketData(book *finnhub.PriceBook) domsvc.MarketData { return book }

func ProvideSignalAggregator(cfg *config.Config, ind domsvc.IndicatorService, shared pkgcache.Service, l *applogger.Logger) *usecase.SignalAggregator {
	opts := []usecase.SignalOption{
		usecase.WithSignalTTL(cfg.Signals.CacheTTL),
		usecase.WithIndicatorCount(cfg.Signals.IndicatorCount),
		usecase.WithFetchTimeout(cfg.Indicators.Timeout),
		usecase.WithSignalLogger(l),
	}
	if cfg.Signals.SharedCache {
		opts = append(opts, usecase.WithSharedCache(shared))
	}
	return usecase.NewSignalAggregator(ind, opts...)
}

func ProvideDecisionEnricher(agg *usecase.SignalAggregator, brain domsvc.BrainService, l *applogger.Logger) *usecase.DecisionEnricher {
	d := usecase.NewDecisionEnricher(agg, brain)
	d.SetLogger(l)
	return d
}

func ProvideRouteSelector(cfg *config.Config, events domrepo.EventPublisher, l *applogger.Logger) *usecase.RouteSelector {
	seed := cfg.Router.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := usecase.NewRouteSelector(
		stats.NewSampler(stats.NewSource(seed)),
		usecase.WithLearningRate(cfg.Router.LearningRate),
		usecase.WithRouteEvents(events),
	)
	s.SetLogger(l)
	return s
}

// ProvidePaperLedger restores the account snapshot before returning.
func ProvidePaperLedger(cfg *config.Config, market domsvc.MarketData, events domrepo.EventPublisher, locks pkgcache.Service, l *applogger.Logger) (*usecase.PaperLedger, error) {
	opts := []usecase.LedgerOption{
		usecase.WithInitialBalance(cfg.Paper.InitialBalance),
		usecase.WithLedgerEvents(events),
		usecase.WithPriceTimeout(cfg.Paper.PriceTimeout),
	}
	if cfg.Paper.SymbolLock {
		opts = append(opts, usecase.WithSymbolLocker(locks, cfg.Paper.LockTTL))
	}
	ledger := usecase.NewPaperLedger(internalrepo.NewJSONAccountStore(cfg.Paper.SnapshotPath), market, opts...)
	ledger.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ledger.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("paper ledger: %w", err)
	}
	return ledger, nil
}

func ProvideEvolutionGuard(cfg *config.Config, calc domsvc.IndicatorCalculator, events domrepo.EventPublisher, l *applogger.Logger) *usecase.EvolutionGuard {
	segs := make([]models.AdversarialSegment, 0, len(cfg.Evolution.Segments))
	for _, sc := range cfg.Evolution.Segments {
		segs = append(segs, models.AdversarialSegment{
			Name:           sc.Name,
			Days:           sc.Days,
			WinRateShift:   sc.WinRateShift,
			WinMultiplier:  sc.WinMultiplier,
			LossMultiplier: sc.LossMultiplier,
			TradeFrequency: sc.TradeFrequency,
		})
	}
	g := usecase.NewEvolutionGuard(calc,
		usecase.WithIndicatorTTL(cfg.Evolution.IndicatorTTL),
		usecase.WithMaxCorrelation(cfg.Evolution.MaxCorrelation),
		usecase.WithNovelty(cfg.Evolution.NoveltyDecay, cfg.Evolution.EliteThreshold, cfg.Evolution.NoveltyMaxSize),
		usecase.WithSegments(segs),
		usecase.WithGuardEvents(events),
	)
	g.SetLogger(l)
	return g
}

func ProvideTradingCycle(d *usecase.DecisionEnricher, r *usecase.RouteSelector, ledger *usecase.PaperLedger, g *usecase.EvolutionGuard, l *applogger.Logger) *usecase.TradingCycle {
	c := usecase.NewTradingCycle(d, r, ledger, g)
	c.SetLogger(l)
	return c
}

func ProvideEvolutionJob(g *usecase.EvolutionGuard, l *applogger.Logger) *usecase.EvolutionJob {
	return usecase.NewEvolutionJob(g, l)
}

// ProvideEvolutionQueue runs evolution batches on Redis workers. The same
// queue publishes and consumes.
func ProvideEvolutionQueue(cfg *config.Config, rc *redis.Client, job *usecase.EvolutionJob, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:       cfg.Evolution.QueueConcurrency,
		RetryLimit:    3,
		RetryDelay:    5 * time.Second,
		MaxRetryDelay: time.Minute,
	}, rc, queue.ModeProducerConsumer, queue.WithKeyPrefix("tradecore:"+cfg.Evolution.QueueName))
	q.RegisterJob(job)
	return q
}

func ProvideQueueService(q *queue.RedisQueue) queue.QueueService {
	if q == nil {
		return nil
	}
	return q
}

func ProvideCandles(store domrepo.FeatureStore) *usecase.CandlesUseCase {
	if store == nil {
		return nil
	}
	return usecase.NewCandlesUseCase(store)
}

// ProvideHandlers builds every HTTP route group.
func ProvideHandlers(
	l *applogger.Logger,
	agg *usecase.SignalAggregator,
	candles *usecase.CandlesUseCase,
	enricher *usecase.DecisionEnricher,
	router *usecase.RouteSelector,
	ledger *usecase.PaperLedger,
	guard *usecase.EvolutionGuard,
	job *usecase.EvolutionJob,
	q queue.QueueService,
	cycle *usecase.TradingCycle,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewSignalsEchoHandler(l, agg, candles),
		api.NewDecisionEchoHandler(l, enricher),
		api.NewRoutesEchoHandler(l, router, cycle),
		api.NewPaperEchoHandler(l, ledger),
		api.NewEvolutionEchoHandler(l, guard, job, q),
		api.NewCycleEchoHandler(l, cycle),
	}
}

// ProvideFinnhubStream creates the Finnhub WebSocket stream, or nil without an API key.
func ProvideFinnhubStream(cfg *config.Config, l *applogger.Logger) domrepo.MarketStream {
	if cfg.Finnhub.APIKey == "" || len(cfg.Finnhub.Symbols) == 0 {
		return nil
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		l,
	)
}

func ProvideTickStorage(ch *pkgch.Client, cfg *config.Config) domrepo.TickStorage {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseTickStorage(ch.DB(), cfg.ClickHouse.Database)
}

func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.TickPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.TicksTopic)
}

func ProvideTickProcessor(
	book *finnhub.PriceBook,
	pub domrepo.TickPublisher,
	store domrepo.TickStorage,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(book, pub, store, m, cfg.Ticks.Backend)
}

// ProvideTickCollector puts the realtime pipeline between the stream and the processor.
func ProvideTickCollector(
	stream domrepo.MarketStream,
	processor *usecase.TickProcessor,
	m domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.TickCollector {
	if stream == nil {
		return nil
	}
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(cfg.Ticks.MaxRPS),
		mid.WithBufferSize(cfg.Ticks.BufferSize),
	)
	return usecase.NewTickCollector(stream, m, pipe, l)
}

// ProvideKafkaHandlers registers the outcome feed, and the tick sink when
// ticks travel through Kafka into ClickHouse.
func ProvideKafkaHandlers(
	cfg *config.Config,
	store domrepo.TickStorage,
	m domrepo.Metrics,
	cycle *usecase.TradingCycle,
	l *applogger.Logger,
) []pkgkafka.MessageHandler {
	hs := []pkgkafka.MessageHandler{usecase.NewOutcomeHandler(cfg.Kafka.OutcomesTopic, cycle, l)}
	if cfg.Ticks.Backend == "kafka" && store != nil {
		hs = append(hs, usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, store, m))
	}
	return hs
}

// ProvideApp creates the application runner.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handlers []xhttp.Handler,
	agg *usecase.SignalAggregator,
	guard *usecase.EvolutionGuard,
	ledger *usecase.PaperLedger,
	collector *usecase.TickCollector,
	processor *usecase.TickProcessor,
	consumer *pkgkafka.Consumer,
	kafkaHandlers []pkgkafka.MessageHandler,
	workers *queue.RedisQueue,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	rc *redis.Client,
) *server.App {
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Log.CollectTopic,
			Publisher:    internalrepo.NewLogBatchPublisher(producer),
		})
	}
	return server.New(cfg, server.Components{
		Logger:        l,
		Handlers:      handlers,
		Signals:       agg,
		Guard:         guard,
		Ledger:        ledger,
		Collector:     collector,
		Processor:     processor,
		Consumer:      consumer,
		KafkaHandlers: kafkaHandlers,
		Workers:       workers,
		Producer:      producer,
		ClickHouse:    ch,
		Redis:         rc,
	})
}
