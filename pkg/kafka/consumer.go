package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"TradeCore/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig is assembled from ConsumerOptions; zero values fall back to
// the defaults in NewConsumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string // "earliest" or "latest"
	WorkerCount     int
	BufferSize      int
	RetryMax        int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
	Logger          *logger.Logger
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if groupID != "" {
			c.GroupID = groupID
		}
	}
}

func WithConsumerAutoOffsetReset(mode string) ConsumerOption {
	return func(c *ConsumerConfig) { c.AutoOffsetReset = mode }
}

func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry sets how often a failing handler is retried and the
// exponential backoff range between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		if backoffMin > 0 {
			c.BackoffMin = backoffMin
		}
		if backoffMax > 0 {
			c.BackoffMax = backoffMax
		}
	}
}

// WithConsumerDLQ routes messages that exhaust their retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if minBytes > 0 {
			c.MinBytes = minBytes
		}
		if maxBytes > 0 {
			c.MaxBytes = maxBytes
		}
	}
}

func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer reads every registered topic with its own group reader and fans
// messages out to a worker pool. Messages from one partition are handled one
// at a time so per-partition order holds.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer

	inbox    chan kafka.Message
	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	feeders  sync.WaitGroup
	stopOnce sync.Once

	partitions sync.Map // "topic/partition" -> *sync.Mutex
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:         "tradecore",
		AutoOffsetReset: "earliest",
		WorkerCount:     1,
		BufferSize:      64,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        1,
		MaxBytes:        10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	initConsumerMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		log:      cfg.Logger,
		hook:     NoopHook{},
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		inbox:    make(chan kafka.Message, cfg.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// WithConsumerHook installs lifecycle hooks; nil keeps the current ones.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler must be called before Start. The first handler for a
// topic wins.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("kafka consumer: duplicate handler ignored", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}
	offset := kafka.FirstOffset
	if c.cfg.AutoOffsetReset == "latest" {
		offset = kafka.LastOffset
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: offset,
		})
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workers.Add(1)
		go c.work()
	}
	for topic, r := range c.readers {
		c.feeders.Add(1)
		go c.feed(topic, r)
	}
	go func() {
		c.feeders.Wait()
		close(c.inbox)
	}()

	c.log.Info("kafka consumer: started",
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.cfg.WorkerCount),
		logger.String("group", c.cfg.GroupID))
	return nil
}

// Stop closes the readers and waits for in-flight messages until ctx ends.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.cancel()
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka consumer: close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}

		done := make(chan struct{})
		go func() {
			c.feeders.Wait()
			c.workers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer: stop: %w", ctx.Err())
		}

		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("kafka consumer: close dlq writer", logger.Error(cerr))
			}
		}
		if err == nil {
			c.log.Info("kafka consumer: stopped")
		}
	})
	return err
}

// feed pulls from one reader into the shared inbox. The send blocks when
// workers fall behind, which in turn stops fetching.
func (c *Consumer) feed(topic string, r *kafka.Reader) {
	defer c.feeders.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka consumer: fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		select {
		case c.inbox <- km:
			consumerBacklog.WithLabelValues(topic).Set(float64(len(c.inbox)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.workers.Done()
	for km := range c.inbox {
		c.dispatch(km)
	}
}

func (c *Consumer) dispatch(km kafka.Message) {
	h, ok := c.handlers[km.Topic]
	if !ok {
		return
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			consumerHandled.WithLabelValues(km.Topic, "panic").Inc()
			c.log.Error("kafka consumer: handler panic", logger.String("topic", km.Topic), logger.Any("panic", r))
		}
	}()

	mu := c.partitionLock(km.Topic, km.Partition)
	mu.Lock()
	defer mu.Unlock()

	err := c.handleWithRetry(h, km)
	if errors.Is(err, context.Canceled) {
		// shutting down; leave the offset uncommitted so the message is redelivered
		return
	}

	result := "ok"
	if err != nil {
		result = "failed"
		c.hook.OnError(context.Background(), km.Topic, km, km.Value, err)
		c.log.Error("kafka consumer: handler gave up",
			logger.String("topic", km.Topic),
			logger.Int64("offset", km.Offset),
			logger.Error(err))
		if c.dlq != nil {
			result = "dead_lettered"
			c.deadLetter(km, err)
		}
	}
	// failures without a dlq stay uncommitted and are redelivered after a rebalance
	if err == nil || c.dlq != nil {
		c.commit(km)
	}
	consumerHandled.WithLabelValues(km.Topic, result).Inc()
	consumerLatency.WithLabelValues(km.Topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(h MessageHandler, km kafka.Message) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.BackoffMin
	eb.MaxInterval = c.cfg.BackoffMax
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(c.cfg.RetryMax, 0))), c.ctx)

	op := func() error {
		ctx, msg, data, err := c.hook.BeforeHandle(c.ctx, km.Topic, km, km.Value)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = h.Handle(ctx, data)
		c.hook.AfterHandle(ctx, km.Topic, msg, data, err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.hook.OnError(c.ctx, km.Topic, km, km.Value, err)
	}
	return backoff.RetryNotify(op, policy, notify)
}

func (c *Consumer) deadLetter(km kafka.Message, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(km.Topic)},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(km.Offset, 10))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("kafka consumer: dlq write failed", logger.String("dlq", c.cfg.DLQTopic), logger.Error(err))
	}
}

func (c *Consumer) commit(km kafka.Message) {
	r := c.readers[km.Topic]
	if r == nil {
		return
	}
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return r.CommitMessages(ctx, km)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithMaxRetries(eb, 2)); err != nil {
		c.log.Error("kafka consumer: commit failed",
			logger.String("topic", km.Topic),
			logger.Int64("offset", km.Offset),
			logger.Error(err))
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := topic + "/" + strconv.Itoa(partition)
	mu, _ := c.partitions.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

var (
	consumerBacklog *prometheus.GaugeVec
	consumerHandled *prometheus.CounterVec
	consumerLatency *prometheus.HistogramVec
	consumerOnce    sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerBacklog = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "tradecore_kafka_consumer_backlog", Help: "Fetched messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "tradecore_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
			[]string{"topic", "result"},
		)
		consumerLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "tradecore_kafka_consumer_handle_seconds", Help: "Handling time per message including retries"},
			[]string{"topic"},
		)
	})
}
