package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/pkg/logger"
)

var (
	ErrQueueFull       = errors.New("pipeline: queue full")
	ErrPipelineStopped = errors.New("pipeline: stopped")
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t models.Tick) error
}

// RealtimePipeline sits between the feed and the store. It validates ticks and
// hands each symbol to its own worker through a bounded queue, so every symbol
// has exactly one writer and a slow symbol never stalls the feed read loop.
type RealtimePipeline struct {
	proc      Proc
	metrics   domrepo.Metrics
	log       *logger.Logger
	queueSize int
	// simple format transform hook (optional)
	transform func(models.Tick) models.Tick

	mu      sync.RWMutex
	ctx     context.Context
	queues  map[string]chan models.Tick
	stopped bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type PipelineOption func(*RealtimePipeline)

// WithQueueSize sets the per-symbol queue capacity.
func WithQueueSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithTransform sets a transformation hook applied before validation.
func WithTransform(fn func(models.Tick) models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:      proc,
		metrics:   metrics,
		log:       log,
		queueSize: 1024,
		ctx:       context.Background(),
		queues:    make(map[string]chan models.Tick),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start sets the context workers process under. Workers themselves start
// lazily on the first tick of each symbol.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

// Process validates t and enqueues it on its symbol's worker. It never blocks;
// a full queue drops the tick and returns ErrQueueFull.
func (p *RealtimePipeline) Process(_ context.Context, t models.Tick) error {
	if p.transform != nil {
		t = p.transform(t)
	}
	t.Symbol = strings.ToLower(strings.TrimSpace(t.Symbol))
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return ErrPipelineStopped
	}
	q, ok := p.queues[t.Symbol]
	if ok {
		err := p.enqueue(q, t)
		p.mu.RUnlock()
		return err
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPipelineStopped
	}
	q, ok = p.queues[t.Symbol]
	if !ok {
		q = make(chan models.Tick, p.queueSize)
		p.queues[t.Symbol] = q
		p.wg.Add(1)
		go p.worker(p.ctx, t.Symbol, q)
	}
	return p.enqueue(q, t)
}

// enqueue must be called with mu held so Stop cannot close q concurrently.
func (p *RealtimePipeline) enqueue(q chan models.Tick, t models.Tick) error {
	select {
	case q <- t:
		return nil
	default:
		n := p.dropped.Add(1)
		p.metrics.RecordError("pipeline_queue_full")
		p.log.Warn("pipeline queue full, dropping tick",
			logger.String("symbol", t.Symbol), logger.Int64("dropped_total", n))
		return ErrQueueFull
	}
}

func (p *RealtimePipeline) worker(ctx context.Context, symbol string, q <-chan models.Tick) {
	defer p.wg.Done()
	for t := range q {
		start := time.Now()
		if err := p.proc.Process(ctx, t); err != nil {
			p.metrics.RecordError("pipeline_process")
			p.log.Error("process tick", logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
}

// Stop closes every queue and waits until the workers drained them. Process
// calls after Stop return ErrPipelineStopped.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Dropped returns how many ticks were dropped on full queues.
func (p *RealtimePipeline) Dropped() int64 { return p.dropped.Load() }

// QueueDepth returns the number of ticks waiting for symbol's worker.
func (p *RealtimePipeline) QueueDepth(symbol string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queues[strings.ToLower(symbol)])
}

func validateTick(t models.Tick) error {
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if !(t.Price > 0) || math.IsInf(t.Price, 0) {
		return fmt.Errorf("price must be positive, got %v", t.Price)
	}
	if t.Size < 0 || math.IsNaN(t.Size) {
		return fmt.Errorf("negative size")
	}
	return nil
}
