package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "EarlyPump/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ErrPermanent marks a handler failure that a retry cannot fix, such as an undecodable
// payload. Wrap it and the consumer skips the remaining retries.
var ErrPermanent = errors.New("kafka: permanent message failure")

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics in a consumer group and hands messages to a worker pool.
// Offsets are committed after handling; a message that still fails after RetryMax retries
// (or at once with ErrPermanent) is logged and skipped. A message whose handler is cut off
// by Stop is left uncommitted for redelivery.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *applogger.Logger
	handlers  map[string]MessageHandler
	readers   map[string]messageReader
	newReader func(topic string) messageReader

	msgs       chan kafka.Message
	cancel     context.CancelFunc
	workCtx    context.Context
	workCancel context.CancelFunc
	fetchWG    sync.WaitGroup
	workWG     sync.WaitGroup
	stopOnce   sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := newConsumer(cfg)
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.GroupID,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			StartOffset: kafka.FirstOffset,
		})
	}
	return c, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	l := cfg.Logger
	if l == nil {
		l = applogger.Nop()
	}
	initMetricsOnce()
	return &Consumer{
		cfg:      cfg,
		log:      l,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		msgs:     make(chan kafka.Message, cfg.BufferSize),
	}
}

// RegisterHandler registers a handler; a second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start launches one fetcher per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	// handlers outlive ctx so Stop can drain the queue; Stop cancels them on its deadline
	c.workCtx, c.workCancel = context.WithCancel(context.WithoutCancel(ctx))
	ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.worker()
	}
	for topic, r := range c.readers {
		c.fetchWG.Add(1)
		go c.fetch(ctx, topic, r)
	}

	c.log.Info("kafka consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.handlers)),
		applogger.Int("workers", c.cfg.WorkerCount),
	)
	return nil
}

// Stop stops fetching, drains the queue and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.fetchWG.Wait()
		close(c.msgs)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer workers: %w", ctx.Err())
		}
		if c.workCancel != nil {
			c.workCancel()
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if err == nil {
			c.log.Info("kafka consumer stopped")
		}
	})
	return err
}

func (c *Consumer) fetch(ctx context.Context, topic string, r messageReader) {
	defer c.fetchWG.Done()
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case c.msgs <- m:
			consumerQueue.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workWG.Done()
	for m := range c.msgs {
		c.process(m)
	}
}

func (c *Consumer) process(m kafka.Message) {
	h, ok := c.handlers[m.Topic]
	if !ok {
		return
	}

	start := time.Now()
	var err error
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(c.workCtx, h, m.Value)
		if err == nil || errors.Is(err, ErrPermanent) || attempt > c.cfg.RetryMax {
			break
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.workCtx.Done():
			return
		}
	}
	observeHandle(m.Topic, time.Since(start), err)
	if err != nil && c.workCtx.Err() != nil {
		c.log.Warn("kafka message left for redelivery",
			applogger.String("topic", m.Topic),
			applogger.Int64("offset", m.Offset),
			applogger.Error(err),
		)
		return
	}
	if err != nil {
		c.log.Error("kafka message skipped",
			applogger.String("topic", m.Topic),
			applogger.Int("partition", m.Partition),
			applogger.Int64("offset", m.Offset),
			applogger.Error(err),
		)
	}

	if r := c.readers[m.Topic]; r != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := r.CommitMessages(ctx, m); cerr != nil {
			c.log.Warn("kafka commit failed", applogger.String("topic", m.Topic), applogger.Error(cerr))
		}
	}
}

func (c *Consumer) safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	// up to 50% jitter
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp - jitter
}
