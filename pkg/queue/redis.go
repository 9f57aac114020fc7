package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"TradeCore/pkg/logger"
)

// QueueMode selects whether a RedisQueue runs workers.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
)

// RedisQueue is a list-backed job queue with a sorted-set retry schedule
// and a dead-letter list, all under one key prefix.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	mode      QueueMode
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
	now       func() time.Time
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	if config.MaxRetryDelay < config.RetryDelay {
		config.MaxRetryDelay = 30 * config.RetryDelay
	}
	initQueueMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		mode:      mode,
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "tradecore:queue",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob routes messages of job.Type() to job. Later registrations of
// the same type are ignored.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if r.mode == ModeProducerOnly {
		r.logger.Info("redis publisher started", logger.String("prefix", r.keyPrefix))
		return nil
	}
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryMover()
	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx ends.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for queue workers: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// PublishMessage encodes payload and pushes it onto the queue.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.isRunning
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, EnqueuedAt: r.now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.LPush(ctx, r.key("messages"), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		res, err := r.client.BRPop(r.ctx, time.Second, r.key("messages")).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || r.ctx.Err() != nil {
				continue
			}
			r.logger.Error("queue pop failed", logger.Int("worker", id), logger.Error(err))
			select {
			case <-r.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.logger.Error("queue message undecodable", logger.Error(err))
			continue
		}
		r.process(msg)
	}
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	start := r.now()
	err := job.Handle(r.ctx, msg.Payload)
	elapsed := r.now().Sub(start)
	switch {
	case err == nil:
		observeJob(msg.Type, "ok", elapsed)
	case errors.Is(err, context.Canceled):
		// shutting down; the message is lost with the worker
		r.logger.Warn("job cancelled", logger.String("id", msg.ID), logger.String("job", job.Name()))
	default:
		r.fail(msg, job, err, elapsed)
	}
}

func (r *RedisQueue) fail(msg Message, job Job, err error, elapsed time.Duration) {
	msg.Attempts++
	msg.LastError = err.Error()
	if msg.Attempts > r.config.RetryLimit {
		observeJob(msg.Type, "dead", elapsed)
		r.logger.Error("job exhausted retries",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err))
		r.deadLetter(msg)
		return
	}

	observeJob(msg.Type, "retry", elapsed)
	at := r.now().Add(RetryDelay(r.config, msg.Attempts))
	data, merr := json.Marshal(msg)
	if merr != nil {
		r.logger.Error("encode retry", logger.Error(merr))
		return
	}
	if zerr := r.client.ZAdd(context.Background(), r.key("retry"), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); zerr != nil {
		r.logger.Error("schedule retry", logger.Error(zerr))
		return
	}
	r.logger.Warn("job failed, retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", at.Format(time.RFC3339)),
		logger.Error(err))
}

// RetryDelay is the wait before retry number attempt (1-based): exponential
// from RetryDelay, capped at MaxRetryDelay, without jitter.
func RetryDelay(cfg *QueueConfig, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryDelay
	b.MaxInterval = cfg.MaxRetryDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (r *RedisQueue) deadLetter(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encode dead letter", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.key("dlq"), data).Err(); err != nil {
		r.logger.Error("push dead letter", logger.Error(err))
	}
}

// retryMover moves due retries back onto the main list every few seconds.
func (r *RedisQueue) retryMover() {
	defer r.wg.Done()
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			r.moveDueRetries()
		}
	}
}

func (r *RedisQueue) moveDueRetries() {
	due, err := r.client.ZRangeByScore(r.ctx, r.key("retry"), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("read due retries", logger.Error(err))
		}
		return
	}
	for _, m := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.key("retry"), m)
		pipe.LPush(r.ctx, r.key("messages"), m)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if r.ctx.Err() != nil {
				return
			}
			r.logger.Error("requeue retry", logger.Error(err))
		}
	}
}

// Depth reports pending, retry-scheduled and dead-lettered message counts.
func (r *RedisQueue) Depth(ctx context.Context) (pending, retrying, dead int64, err error) {
	pipe := r.client.Pipeline()
	p := pipe.LLen(ctx, r.key("messages"))
	rt := pipe.ZCard(ctx, r.key("retry"))
	d := pipe.LLen(ctx, r.key("dlq"))
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("queue depth: %w", err)
	}
	return p.Val(), rt.Val(), d.Val(), nil
}

func (r *RedisQueue) key(suffix string) string {
	return r.keyPrefix + ":" + suffix
}
