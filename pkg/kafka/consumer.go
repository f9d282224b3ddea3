package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"PairFlow/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics in a consumer group and hands messages to
// a worker pool. At most one message per partition is in flight, so order
// within a partition is kept. Offsets are committed after success, or after
// the message reached the DLQ.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	hook     ConsumerHook

	readers    map[string]*kafka.Reader
	committers map[string]committer
	dlq        messageWriter

	queue     chan delivery
	ctx       context.Context
	cancel    context.CancelFunc
	readersWg sync.WaitGroup
	workersWg sync.WaitGroup
	stopOnce  sync.Once

	partMu    sync.Mutex
	partLocks map[string]*sync.Mutex
}

type delivery struct {
	topic string
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:        cfg,
		log:        cfg.Logger,
		handlers:   make(map[string]MessageHandler),
		hook:       NoopHook{},
		readers:    make(map[string]*kafka.Reader),
		committers: make(map[string]committer),
		queue:      make(chan delivery, cfg.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
		partLocks:  make(map[string]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.LeastBytes{}}
	}

	consumerMetricsOnce.Do(initConsumerMetrics)
	return c, nil
}

// RegisterHandler registers a message handler for its topic. Must be called
// before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka consumer: handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets the lifecycle hook. Several hooks can be combined
// with Chain.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: startOffset(c.cfg.AutoOffsetReset),
		})
		c.readers[topic] = r
		c.committers[topic] = r
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workersWg.Add(1)
		go c.worker()
	}
	for topic, r := range c.readers {
		c.readersWg.Add(1)
		go c.fetchLoop(topic, r)
	}

	c.log.Info("kafka consumer: started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.cfg.WorkerCount))
	return nil
}

// Stop stops fetching, lets the workers finish what is queued and closes the
// readers. Messages that were not committed are redelivered to the group.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.log.Info("kafka consumer: stopping")
		c.cancel()
		c.readersWg.Wait()
		close(c.queue)
		stopErr = waitGroup(ctx, &c.workersWg)

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Error("kafka consumer: close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("kafka consumer: close dlq writer", logger.Error(err))
			}
		}
	})
	return stopErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	}
}

// fetchLoop blocks on the queue when workers fall behind, so backpressure
// reaches the broker instead of dropping messages.
func (c *Consumer) fetchLoop(topic string, r *kafka.Reader) {
	defer c.readersWg.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka consumer: fetch message", logger.String("topic", topic), logger.Error(err))
			if !c.pause(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, 1)) {
				return
			}
			continue
		}
		select {
		case c.queue <- delivery{topic: topic, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.queue)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workersWg.Done()
	for d := range c.queue {
		c.process(d)
	}
}

// process runs the handler with retries, dead-letters what still fails and
// commits the offset.
func (c *Consumer) process(d delivery) {
	handler, ok := c.handlers[d.topic]
	if !ok {
		return
	}
	start := time.Now()

	pl := c.partitionLock(d.topic, d.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	attempts, err := c.handleWithRetry(handler, d)
	result := "ok"
	if err != nil {
		result = "failed"
		if IsPermanent(err) {
			result = "permanent"
		}
		c.log.Error("kafka consumer: handle message",
			logger.String("topic", d.topic),
			logger.Int("partition", d.km.Partition),
			logger.Int64("offset", d.km.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err))
	}

	commit := err == nil
	if err != nil && c.dlq != nil {
		if dlqErr := c.deadLetter(d, attempts, err); dlqErr != nil {
			c.log.Error("kafka consumer: write dlq", logger.String("topic", c.cfg.DLQTopic), logger.Error(dlqErr))
		} else {
			result = "dlq"
			commit = true
		}
	}
	if commit {
		_ = c.commit(d)
	}

	consumerHandled.WithLabelValues(d.topic, result).Inc()
	consumerHandleLatency.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(handler MessageHandler, d delivery) (int, error) {
	var err error
	attempts := 0
	for {
		attempts++
		err = c.handleOnce(handler, d)
		if err == nil || IsPermanent(err) || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		if !c.pause(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return attempts, err
		}
	}
}

// handleOnce runs the hooks and the handler. Panics become errors.
func (c *Consumer) handleOnce(handler MessageHandler, d delivery) (err error) {
	ctx, err := c.hook.BeforeHandle(context.Background(), d.km)
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("handler: %v", r)}
		}
		c.hook.AfterHandle(ctx, d.km, err)
	}()
	if err != nil {
		return err
	}
	return handler.Handle(ctx, d.km.Value)
}

func (c *Consumer) deadLetter(d delivery, attempts int, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   d.km.Key,
		Value: d.km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(d.topic)},
			{Key: "source_partition", Value: []byte(strconv.Itoa(d.km.Partition))},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(d.km.Offset, 10))},
			{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
}

func (c *Consumer) commit(d delivery) error {
	cm := c.committers[d.topic]
	if cm == nil {
		return nil
	}
	var err error
	for attempt := 1; attempt <= c.cfg.CommitRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = cm.CommitMessages(ctx, d.km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka consumer: commit offset",
		logger.String("topic", d.topic), logger.Int64("offset", d.km.Offset), logger.Error(err))
	return err
}

// pause sleeps for d and reports false when the consumer stopped meanwhile.
func (c *Consumer) pause(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := topic + "#" + strconv.Itoa(partition)
	c.partMu.Lock()
	defer c.partMu.Unlock()
	l, ok := c.partLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[key] = l
	}
	return l
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The message goes straight to
// the DLQ when one is configured.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func startOffset(reset string) int64 {
	if reset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// backoffWithJitter doubles from min per attempt, caps at max and subtracts
// up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
	consumerRegisterer    prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetConsumerMetricsRegisterer sets where consumer metrics register. It must
// run before the first NewConsumer call.
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		consumerRegisterer = reg
	}
}

func initConsumerMetrics() {
	f := promauto.With(consumerRegisterer)
	consumerQueueDepth = f.NewGaugeVec(
		prometheus.GaugeOpts{Name: "pairflow_kafka_consumer_queue_depth", Help: "Messages waiting for a consumer worker"},
		[]string{"topic"},
	)
	consumerHandled = f.NewCounterVec(
		prometheus.CounterOpts{Name: "pairflow_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
		[]string{"topic", "result"},
	)
	consumerHandleLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{Name: "pairflow_kafka_consumer_handle_seconds", Help: "Handling time per message including retries"},
		[]string{"topic"},
	)
}
