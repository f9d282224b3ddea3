package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PairFlow/internal/domain/models"
	"PairFlow/pkg/logger"
)

type fakeStream struct {
	mu         sync.Mutex
	failFirst  int
	connects   int
	reconnects int
	closed     bool
	connected  atomic.Bool
}

func (f *fakeStream) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects <= f.failFirst {
		return errors.New("dial refused")
	}
	f.connected.Store(true)
	return nil
}

func (f *fakeStream) Subscribe(context.Context) error { return nil }

func (f *fakeStream) Read(context.Context) (<-chan models.Tick, <-chan error) {
	ticks := make(chan models.Tick, 2)
	errs := make(chan error, 1)
	ticks <- models.Tick{Symbol: "btcusdt", Timestamp: 1_000, Price: 1}
	ticks <- models.Tick{Symbol: "ethusdt", Timestamp: 2_000, Price: 2}
	errs <- errors.New("connection reset")
	close(errs)
	close(ticks)
	return ticks, errs
}

func (f *fakeStream) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	f.reconnects++
	f.mu.Unlock()
	return f.Connect(ctx)
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.connected.Store(false)
	return nil
}

func (f *fakeStream) IsConnected() bool { return f.connected.Load() }

func TestTickCollectorReconnects(t *testing.T) {
	stream := &fakeStream{failFirst: 2}
	status := NewFeedStatusTracker([]string{"BTCUSDT", "ethusdt"})
	var got atomic.Int64
	proc := procFunc(func(context.Context, models.Tick) error {
		got.Add(1)
		return nil
	})
	m := newMetrics()
	c := NewTickCollector(stream, proc, status, m, logger.NewNop(), WithBackoff(time.Millisecond, 4*time.Millisecond))

	c.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for got.Load() < 6 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got.Load() < 6 {
		t.Fatalf("processed %d ticks, want at least 6", got.Load())
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.connects < 5 || stream.reconnects < 2 || !stream.closed {
		t.Fatalf("connects=%d reconnects=%d closed=%v", stream.connects, stream.reconnects, stream.closed)
	}
	if m.errorCount("stream") < 4 {
		t.Fatalf("stream errors = %d", m.errorCount("stream"))
	}

	for _, st := range status.Statuses() {
		if st.MessageCount < 3 || st.Connected {
			t.Fatalf("status %+v", st)
		}
	}
}

func TestNextBackoff(t *testing.T) {
	d := time.Second
	var seq []time.Duration
	for i := 0; i < 8; i++ {
		d = nextBackoff(d, 30*time.Second)
		seq = append(seq, d)
	}
	if seq[0] != 1800*time.Millisecond {
		t.Fatalf("first step = %v", seq[0])
	}
	if seq[len(seq)-1] != 30*time.Second {
		t.Fatalf("not capped: %v", seq)
	}
}

func TestFeedStatusTracker(t *testing.T) {
	tr := NewFeedStatusTracker([]string{"ETHUSDT", "btcusdt"})
	tr.RecordMessage("BTCUSDT", 20)
	tr.RecordMessage("btcusdt", 10)
	tr.SetConnected(false, errors.New("boom"))

	st := tr.Statuses()
	if len(st) != 2 || st[0].Symbol != "btcusdt" || st[1].Symbol != "ethusdt" {
		t.Fatalf("statuses = %+v", st)
	}
	if st[0].MessageCount != 2 || st[0].LastMessage != 20 || st[0].Error != "boom" {
		t.Fatalf("btc status = %+v", st[0])
	}
	tr.SetConnected(true, nil)
	if s := tr.Statuses()[1]; !s.Connected || s.Error != "" {
		t.Fatalf("eth status = %+v", s)
	}
}
