package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/internal/services/analytics"
	"PairFlow/internal/store"
	"PairFlow/pkg/logger"
)

// AnalyticsRunner periodically snapshots the pair from the store, runs the
// analytics engine and publishes the result. Readers get the latest
// published value without locking.
type AnalyticsRunner struct {
	store    *store.Store
	settings *SettingsStore
	metrics  domrepo.Metrics
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time

	latest atomic.Pointer[models.AnalyticsResult]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnalyticsRunner creates a runner computing every interval.
func NewAnalyticsRunner(st *store.Store, settings *SettingsStore, metrics domrepo.Metrics, log *logger.Logger, interval time.Duration) *AnalyticsRunner {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &AnalyticsRunner{
		store:    st,
		settings: settings,
		metrics:  metrics,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Start begins the periodic loop.
func (r *AnalyticsRunner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce()
			}
		}
	}()
	r.log.Info("analytics runner started", logger.Duration("interval", r.interval))
}

// Stop ends the loop and waits for the running cycle.
func (r *AnalyticsRunner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// RunOnce computes and publishes one result. A panic in the engine is
// logged and leaves the previous result published.
func (r *AnalyticsRunner) RunOnce() *models.AnalyticsResult {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordError("analytics_panic")
			r.log.Error("analytics cycle panic", logger.Any("panic", rec))
		}
	}()

	start := time.Now()
	s := r.settings.Get()
	tf := domrepo.NormalizeTimeframe(s.Timeframe)
	p, q := r.store.PairSeries(s.Primary(), s.Secondary(), tf)

	res := analytics.Compute(analytics.Input{
		Settings:  s,
		Primary:   analytics.Series{Symbol: p.Symbol, Ticks: p.Ticks, Bars: p.Bars},
		Secondary: analytics.Series{Symbol: q.Symbol, Ticks: q.Ticks, Bars: q.Bars},
	}, r.now())

	r.latest.Store(res)
	r.metrics.RecordLatency("analytics_cycle", time.Since(start).Seconds())
	if res.Spread != nil {
		r.metrics.RecordZScore(res.Spread.ZScore)
	}
	return res
}

// Latest returns the last published result, or nil before the first cycle.
func (r *AnalyticsRunner) Latest() *models.AnalyticsResult {
	return r.latest.Load()
}
