package usecase

import (
	"context"
	"sync"
	"testing"

	"PairFlow/internal/domain/models"
	"PairFlow/internal/store"
	"PairFlow/pkg/logger"
)

type tickSink struct {
	mu    sync.Mutex
	ticks []models.Tick
}

func (s *tickSink) OnTick(_ context.Context, t models.Tick) {
	s.mu.Lock()
	s.ticks = append(s.ticks, t)
	s.mu.Unlock()
}

type barSink struct{ bars []models.Bar }

func (s *barSink) OnBar(_ context.Context, b models.Bar) { s.bars = append(s.bars, b) }

func TestTickProcessorFanOut(t *testing.T) {
	st := store.New()
	pub := &recordingPublisher{}
	m := newMetrics()
	p := NewTickProcessor(st, pub, m, logger.NewNop())
	ts, bs := &tickSink{}, &barSink{}
	p.AddTickSink(ts)
	p.AddBarSink(bs)

	ctx := context.Background()
	// the second tick opens a new second, closing the 1s bar of the first
	_ = p.Process(ctx, models.Tick{Symbol: "BTCUSDT", Timestamp: 1_000, Price: 10, Size: 1})
	_ = p.Process(ctx, models.Tick{Symbol: "btcusdt", Timestamp: 2_000, Price: 11, Size: 1})

	if st.LatestPrice("btcusdt") != 11 || len(ts.ticks) != 2 || ts.ticks[0].Symbol != "btcusdt" {
		t.Fatalf("store/sink: price=%v ticks=%+v", st.LatestPrice("btcusdt"), ts.ticks)
	}
	if len(pub.ticks) != 2 || m.ticks != 2 {
		t.Fatalf("published %d ticks, metric %d", len(pub.ticks), m.ticks)
	}
	if len(bs.bars) != len(pub.bars) || m.bars != len(bs.bars) {
		t.Fatalf("bars: sink=%d pub=%d metric=%d", len(bs.bars), len(pub.bars), m.bars)
	}
	found := false
	for _, b := range bs.bars {
		if b.Timeframe == "1s" && b.BucketStart == 1_000 && b.Close == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("1s bar not emitted: %+v", bs.bars)
	}
}

func TestTickProcessorPublishFailureKeepsTick(t *testing.T) {
	st := store.New()
	m := newMetrics()
	p := NewTickProcessor(st, &recordingPublisher{fail: true}, m, logger.NewNop())
	if err := p.Process(context.Background(), models.Tick{Symbol: "x", Timestamp: 1, Price: 1}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !st.Has("x") || m.errorCount("publish_tick") != 1 {
		t.Fatalf("tick lost or failure not counted")
	}
}

func TestTickProcessorCountsLateTicks(t *testing.T) {
	st := store.New()
	m := newMetrics()
	p := NewTickProcessor(st, nil, m, logger.NewNop())
	bs := &barSink{}
	p.AddBarSink(bs)

	ctx := context.Background()
	_ = p.Process(ctx, models.Tick{Symbol: "btcusdt", Timestamp: 100, Price: 10, Size: 1})
	_ = p.Process(ctx, models.Tick{Symbol: "btcusdt", Timestamp: 1_100, Price: 12, Size: 1})
	_ = p.Process(ctx, models.Tick{Symbol: "btcusdt", Timestamp: 300, Price: 999, Size: 7})
	_ = p.Process(ctx, models.Tick{Symbol: "btcusdt", Timestamp: 2_000, Price: 13, Size: 1})

	if got := m.errorCount("late_tick"); got != 1 {
		t.Fatalf("late_tick = %d, want 1", got)
	}
	for _, b := range bs.bars {
		if b.High == 999 {
			t.Fatalf("late tick reached bar %+v", b)
		}
	}
}
