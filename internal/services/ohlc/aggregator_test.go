package ohlc

import (
	"errors"
	"testing"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
)

func tick(ts int64, price, size float64) models.Tick {
	return models.Tick{Symbol: "btcusdt", Timestamp: ts, Price: price, Size: size}
}

func feed(a *Aggregator, ticks ...models.Tick) []models.Bar {
	var out []models.Bar
	for _, t := range ticks {
		if bar, ok, _ := a.OnTick(t); ok {
			out = append(out, bar)
		}
	}
	return out
}

func TestBarSummarizesBucket(t *testing.T) {
	a := New("btcusdt", domrepo.TF1s, 0)
	closed := feed(a,
		tick(1_000, 10, 1),
		tick(1_200, 12, 2),
		tick(1_500, 9, 0.5),
		tick(1_999, 11, 1.5),
		tick(2_000, 20, 1), // closes bucket 1000
	)
	if len(closed) != 1 {
		t.Fatalf("closed bars = %d, want 1", len(closed))
	}
	bar := closed[0]
	if bar.BucketStart != 1_000 || bar.Timeframe != "1s" || bar.Symbol != "btcusdt" {
		t.Fatalf("unexpected bar identity: %+v", bar)
	}
	if bar.Open != 10 || bar.Close != 11 || bar.High != 12 || bar.Low != 9 {
		t.Fatalf("unexpected OHLC: %+v", bar)
	}
	if bar.Volume != 5 || bar.Trades != 4 {
		t.Fatalf("volume=%v trades=%d", bar.Volume, bar.Trades)
	}
	forming, ok := a.Forming()
	if !ok || forming.BucketStart != 2_000 || forming.Trades != 1 {
		t.Fatalf("forming bar = %+v ok=%v", forming, ok)
	}
}

func TestFirstTickDoesNotCloseABar(t *testing.T) {
	a := New("btcusdt", domrepo.TF1m, 0)
	if _, ok, _ := a.OnTick(tick(90_000, 1, 1)); ok {
		t.Fatalf("first tick must not close a bar")
	}
	if a.Len() != 0 {
		t.Fatalf("bars = %d", a.Len())
	}
}

func TestGapsAreNotBackfilled(t *testing.T) {
	a := New("btcusdt", domrepo.TF1s, 0)
	feed(a,
		tick(0, 1, 1),
		tick(500, 2, 1),
		tick(3_500, 3, 1), // closes 0, buckets 1000 and 2000 are empty
		tick(4_200, 4, 1), // closes 3000
	)
	bars := a.Bars(0)
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if bars[0].BucketStart != 0 || bars[1].BucketStart != 3_000 {
		t.Fatalf("unexpected buckets %d, %d", bars[0].BucketStart, bars[1].BucketStart)
	}
	if bars[1].Volume == 0 || bars[1].Trades != 1 {
		t.Fatalf("no synthetic bars expected: %+v", bars[1])
	}
}

func TestLateTickDoesNotAlterClosedBar(t *testing.T) {
	a := New("btcusdt", domrepo.TF1s, 0)
	feed(a, tick(100, 10, 1), tick(900, 11, 1), tick(1_100, 12, 1))
	before := a.Bars(0)[0]

	// belongs to bucket 0, which is already closed
	if _, ok, err := a.OnTick(tick(300, 999, 7)); ok || !errors.Is(err, ErrLateTick) {
		t.Fatalf("late tick: closed=%v err=%v", ok, err)
	}
	after := a.Bars(0)[0]
	if before != after {
		t.Fatalf("closed bar changed: %+v -> %+v", before, after)
	}

	closed := feed(a, tick(1_200, 13, 1), tick(2_000, 14, 1))
	if len(closed) != 1 || closed[0].BucketStart != 1_000 {
		t.Fatalf("unexpected close: %+v", closed)
	}
	got := closed[0]
	if got.Open != 12 || got.High != 13 || got.Low != 12 || got.Close != 13 || got.Volume != 2 || got.Trades != 2 {
		t.Fatalf("late tick leaked into the open bar: %+v", got)
	}
	if a.Late() != 1 {
		t.Fatalf("late = %d, want 1", a.Late())
	}
}

func TestTickForOpenBucketJoinsOpenBar(t *testing.T) {
	a := New("btcusdt", domrepo.TF1s, 0)
	feed(a, tick(1_500, 10, 1), tick(1_100, 8, 1))
	closed := feed(a, tick(2_000, 9, 1))
	if len(closed) != 1 || closed[0].Low != 8 || closed[0].Trades != 2 || a.Late() != 0 {
		t.Fatalf("out-of-order tick in the open bucket must join it: %+v late=%d", closed, a.Late())
	}
}

func TestBucketStartsStrictlyIncrease(t *testing.T) {
	a := New("btcusdt", domrepo.TF1s, 0)
	for i := int64(0); i < 50; i++ {
		a.OnTick(tick(i*700, float64(i+1), 1))
	}
	bars := a.Bars(0)
	for i := 1; i < len(bars); i++ {
		if bars[i].BucketStart <= bars[i-1].BucketStart {
			t.Fatalf("bucket %d not increasing: %d <= %d", i, bars[i].BucketStart, bars[i-1].BucketStart)
		}
		if bars[i].BucketStart%1_000 != 0 {
			t.Fatalf("bucket %d not aligned: %d", i, bars[i].BucketStart)
		}
	}
}

func TestCapacityEvictsOldestBar(t *testing.T) {
	a := New("btcusdt", domrepo.TF1s, 3)
	for i := int64(0); i < 6; i++ {
		a.OnTick(tick(i*1_000, float64(i+1), 1))
	}
	bars := a.Bars(0)
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(bars))
	}
	if bars[0].BucketStart != 2_000 || bars[2].BucketStart != 4_000 {
		t.Fatalf("unexpected window %d..%d", bars[0].BucketStart, bars[2].BucketStart)
	}
}

func TestBucketAlignment(t *testing.T) {
	cases := []struct {
		ts, width, want int64
	}{
		{59_999, 60_000, 0},
		{60_000, 60_000, 60_000},
		{299_999, 300_000, 0},
		{1_700_000_123_456, 1_000, 1_700_000_123_000},
		{-1, 1_000, -1_000},
	}
	for _, c := range cases {
		if got := Bucket(c.ts, c.width); got != c.want {
			t.Errorf("Bucket(%d, %d) = %d, want %d", c.ts, c.width, got, c.want)
		}
	}
}
