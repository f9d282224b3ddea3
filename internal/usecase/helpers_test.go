package usecase

import (
	"context"
	"errors"
	"sync"

	"PairFlow/internal/domain/models"
)

type countingMetrics struct {
	mu      sync.Mutex
	errors  map[string]int
	ticks   int
	bars    int
	fired   map[string]int
	zscores []float64
}

func newMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}, fired: map[string]int{}}
}

func (m *countingMetrics) RecordTick(string) {
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordBarClosed(string, string) {
	m.mu.Lock()
	m.bars++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordAlertFired(t string) {
	m.mu.Lock()
	m.fired[t]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordZScore(z float64) {
	m.mu.Lock()
	m.zscores = append(m.zscores, z)
	m.mu.Unlock()
}

func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) RecordLatency(string, float64)   {}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type recordingPublisher struct {
	mu    sync.Mutex
	ticks []models.Tick
	bars  []models.Bar
	notes []models.AlertNotification
	fail  bool
}

func (p *recordingPublisher) PublishTick(_ context.Context, t models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.ticks = append(p.ticks, t)
	return nil
}

func (p *recordingPublisher) PublishBar(_ context.Context, b models.Bar) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars = append(p.bars, b)
	return nil
}

func (p *recordingPublisher) PublishNotification(_ context.Context, n models.AlertNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, n)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type memRepo struct {
	mu     sync.Mutex
	alerts []models.Alert
	saves  int
}

func (r *memRepo) Load(context.Context) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert(nil), r.alerts...), nil
}

func (r *memRepo) Save(_ context.Context, a []models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append([]models.Alert(nil), a...)
	r.saves++
	return nil
}

type procFunc func(context.Context, models.Tick) error

func (f procFunc) Process(ctx context.Context, t models.Tick) error { return f(ctx, t) }
