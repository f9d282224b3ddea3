package store

import (
	"fmt"
	"sync"
	"testing"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
)

func TestIngestEvictsAndUpdatesLatestPrice(t *testing.T) {
	s := New(WithTickCapacity(3))
	if s.LatestPrice("btcusdt") != 0 {
		t.Fatalf("latest price of unknown symbol must be 0")
	}
	for i := 1; i <= 5; i++ {
		s.Ingest(models.Tick{Symbol: "BTCUSDT", Timestamp: int64(i), Price: float64(i), Size: 1})
	}
	if got := s.LatestPrice("btcusdt"); got != 5 {
		t.Fatalf("latest price = %v, want 5", got)
	}
	snap := s.Snapshot("btcusdt", 0)
	if len(snap) != 3 || snap[0].Price != 3 || snap[2].Price != 5 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap[0].Symbol != "btcusdt" {
		t.Fatalf("symbol not normalized: %q", snap[0].Symbol)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Ingest(models.Tick{Symbol: "ethusdt", Timestamp: 1, Price: 10, Size: 1})
	snap := s.Snapshot("ethusdt", 1)
	snap[0].Price = 99
	if again := s.Snapshot("ethusdt", 1); again[0].Price != 10 {
		t.Fatalf("snapshot aliased store memory")
	}
}

func TestIngestReturnsClosedBars(t *testing.T) {
	s := New(WithTimeframes(domrepo.TF1s, domrepo.TF1m))
	s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 500, Price: 1, Size: 1})
	closed, _ := s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 1_500, Price: 2, Size: 1})
	if len(closed) != 1 || closed[0].Timeframe != "1s" {
		t.Fatalf("closed = %+v", closed)
	}
	closed, _ = s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 61_000, Price: 3, Size: 1})
	if len(closed) != 2 {
		t.Fatalf("expected a 1s and a 1m bar, got %+v", closed)
	}
	if bars := s.Bars("btcusdt", domrepo.TF1m, 0); len(bars) != 1 || bars[0].Trades != 2 {
		t.Fatalf("1m bars = %+v", bars)
	}
	if bars := s.Bars("btcusdt", domrepo.TF5m, 0); bars != nil {
		t.Fatalf("5m is not configured, got %+v", bars)
	}
}

func TestIngestReportsLateTicks(t *testing.T) {
	s := New(WithTimeframes(domrepo.TF1s, domrepo.TF1m))
	s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 100, Price: 10, Size: 1})
	s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 1_100, Price: 12, Size: 1})

	// closed for 1s, still open for 1m
	closed, late := s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 300, Price: 999, Size: 7})
	if len(closed) != 0 || late != 1 {
		t.Fatalf("closed=%+v late=%d, want none and 1", closed, late)
	}
	if got := len(s.Snapshot("btcusdt", 0)); got != 3 {
		t.Fatalf("raw ticks = %d, want 3", got)
	}

	closed, _ = s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 2_000, Price: 13, Size: 1})
	if len(closed) != 1 || closed[0].High != 12 || closed[0].Trades != 1 {
		t.Fatalf("1s bar polluted by late tick: %+v", closed)
	}
}

func TestPairSeriesIsConsistent(t *testing.T) {
	s := New(WithTimeframes(domrepo.TF1s))
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(0); ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			// btc always leads eth by at most one tick
			s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: i, Price: float64(i + 1), Size: 1})
			s.Ingest(models.Tick{Symbol: "ethusdt", Timestamp: i, Price: float64(i + 1), Size: 1})
		}
	}()

	for n := 0; n < 200; n++ {
		p, q := s.PairSeries("ethusdt", "BTCUSDT", domrepo.TF1s)
		if p.Symbol != "ethusdt" || q.Symbol != "btcusdt" {
			t.Fatalf("symbols = %q, %q", p.Symbol, q.Symbol)
		}
		if d := len(q.Ticks) - len(p.Ticks); d < 0 || d > 1 {
			t.Fatalf("legs out of step: btc=%d eth=%d", len(q.Ticks), len(p.Ticks))
		}
	}
	close(stop)
	wg.Wait()

	p, q := s.PairSeries("btcusdt", "solusdt", domrepo.TF1s)
	if len(p.Ticks) == 0 || q.Ticks != nil || q.Symbol != "solusdt" {
		t.Fatalf("missing leg must be empty: %+v", q)
	}
	same, again := s.PairSeries("btcusdt", "btcusdt", domrepo.TF1s)
	if len(same.Ticks) != len(again.Ticks) {
		t.Fatalf("same symbol twice: %d vs %d", len(same.Ticks), len(again.Ticks))
	}
}

func TestSeriesAndClear(t *testing.T) {
	s := New()
	for i := int64(0); i < 10; i++ {
		s.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: i * 1_000, Price: float64(i + 1), Size: 1})
	}
	snap := s.Series("BTCUSDT", domrepo.TF1s, 4, 0)
	if len(snap.Ticks) != 4 || len(snap.Bars) != 9 {
		t.Fatalf("series ticks=%d bars=%d", len(snap.Ticks), len(snap.Bars))
	}
	if got := s.Symbols(); len(got) != 1 || got[0] != "btcusdt" {
		t.Fatalf("symbols = %v", got)
	}
	s.Clear()
	if s.Has("btcusdt") || s.LatestPrice("btcusdt") != 0 {
		t.Fatalf("clear must drop every series")
	}
}

func TestConcurrentIngestAcrossSymbols(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		sym := fmt.Sprintf("sym%d", w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := int64(0); i < 2_000; i++ {
				s.Ingest(models.Tick{Symbol: sym, Timestamp: i * 10, Price: float64(i + 1), Size: 1})
				_ = s.Snapshot(sym, 50)
			}
		}()
	}
	wg.Wait()
	for w := 0; w < 4; w++ {
		sym := fmt.Sprintf("sym%d", w)
		snap := s.Snapshot(sym, 0)
		if len(snap) != 2_000 {
			t.Fatalf("%s ticks = %d", sym, len(snap))
		}
		for i := 1; i < len(snap); i++ {
			if snap[i].Timestamp < snap[i-1].Timestamp {
				t.Fatalf("%s out of order at %d", sym, i)
			}
		}
	}
}
