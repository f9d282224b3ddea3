package usecase

import (
	"context"
	"sync"
	"time"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	mid "PairFlow/internal/middleware"
	"PairFlow/pkg/logger"
)

const backoffFactor = 1.8

// CollectorOption configures TickCollector.
type CollectorOption func(*TickCollector)

// WithBackoff sets the first reconnect delay and its cap.
func WithBackoff(initial, max time.Duration) CollectorOption {
	return func(c *TickCollector) {
		if initial > 0 {
			c.initial = initial
		}
		if max > 0 {
			c.max = max
		}
	}
}

// TickCollector drives the market stream: it keeps it connected, hands
// every tick to the pipeline and keeps the per-symbol feed status.
type TickCollector struct {
	stream  domrepo.MarketStream
	pipe    mid.Proc
	status  *FeedStatusTracker
	metrics domrepo.Metrics
	log     *logger.Logger
	initial time.Duration
	max     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream domrepo.MarketStream, pipe mid.Proc, status *FeedStatusTracker, metrics domrepo.Metrics, log *logger.Logger, opts ...CollectorOption) *TickCollector {
	c := &TickCollector{
		stream:  stream,
		pipe:    pipe,
		status:  status,
		metrics: metrics,
		log:     log,
		initial: time.Second,
		max:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start runs the connect/read loop in the background until Stop or ctx ends.
func (c *TickCollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

func (c *TickCollector) run(ctx context.Context) {
	delay := c.initial
	first := true
	for ctx.Err() == nil {
		var err error
		if first {
			err = c.connect(ctx)
		} else {
			err = c.stream.Reconnect(ctx)
		}
		first = false
		if err != nil {
			c.fail(err)
			if !c.sleep(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, c.max)
			continue
		}

		delay = c.initial
		c.status.SetConnected(true, nil)
		err = c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		c.fail(err)
		if !c.sleep(ctx, delay) {
			return
		}
		delay = nextBackoff(delay, c.max)
	}
}

func (c *TickCollector) connect(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	return c.stream.Subscribe(ctx)
}

func (c *TickCollector) fail(err error) {
	c.metrics.RecordError("stream")
	c.status.SetConnected(false, err)
	c.log.Warn("feed disconnected", logger.Error(err))
}

// consume reads until the connection ends and returns why.
func (c *TickCollector) consume(ctx context.Context) error {
	ticks, errs := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				c.drain(ctx, ticks)
				return err
			}
			errs = nil
		case t, ok := <-ticks:
			if !ok {
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						return err
					}
				default:
				}
				return errStreamClosed
			}
			c.handle(ctx, t)
		}
	}
}

// drain handles ticks already buffered when the connection failed.
func (c *TickCollector) drain(ctx context.Context, ticks <-chan models.Tick) {
	for {
		select {
		case t, ok := <-ticks:
			if !ok {
				return
			}
			c.handle(ctx, t)
		default:
			return
		}
	}
}

func (c *TickCollector) handle(ctx context.Context, t models.Tick) {
	c.status.RecordMessage(t.Symbol, t.Timestamp)
	if err := c.pipe.Process(ctx, t); err != nil {
		c.log.Debug("tick rejected", logger.String("symbol", t.Symbol), logger.Error(err))
	}
}

func (c *TickCollector) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stop ends the loop and closes the stream.
func (c *TickCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.status.SetConnected(false, nil)
	return c.stream.Close()
}

func nextBackoff(d, max time.Duration) time.Duration {
	next := time.Duration(float64(d) * backoffFactor)
	if next > max {
		return max
	}
	return next
}
