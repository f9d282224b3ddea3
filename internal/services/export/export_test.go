package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"PairFlow/internal/domain/models"
	"PairFlow/pkg/util"
)

func TestTicksCSV(t *testing.T) {
	var buf bytes.Buffer
	ticks := []models.Tick{
		{Symbol: "btcusdt", Timestamp: 1_700_000_000_123, Price: 43250.1, Size: 0.002},
		{Symbol: "btcusdt", Timestamp: 1_700_000_001_000, Price: 0.1 + 0.2, Size: 1},
	}
	if err := TicksCSV(&buf, ticks); err != nil {
		t.Fatalf("csv: %v", err)
	}
	want := "timestamp,symbol,price,size\n" +
		"2023-11-14T22:13:20.123Z,btcusdt,43250.1,0.002\n" +
		"2023-11-14T22:13:21.000Z,btcusdt,0.30000000000000004,1\n"
	if buf.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestBarsCSV(t *testing.T) {
	var buf bytes.Buffer
	bars := []models.Bar{{Symbol: "ethusdt", Timeframe: "1m", BucketStart: 60_000, Open: 1, High: 2.5, Low: 0.5, Close: 2, Volume: 10, Trades: 3}}
	if err := Bars(&buf, FormatCSV, bars); err != nil {
		t.Fatalf("csv: %v", err)
	}
	want := "timestamp,symbol,open,high,low,close,volume,trades\n" +
		"1970-01-01T00:01:00.000Z,ethusdt,1,2.5,0.5,2,10,3\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}
}

func TestEmptyCSVHasHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Ticks(&buf, FormatCSV, nil); err != nil {
		t.Fatalf("csv: %v", err)
	}
	if buf.String() != "timestamp,symbol,price,size\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestTicksJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Ticks(&buf, FormatJSON, []models.Tick{{Symbol: "btcusdt", Timestamp: 1_500, Price: 1.25, Size: 2}}); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Fatalf("expected indented output: %s", buf.String())
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["timestamp"] != "1970-01-01T00:00:01.500Z" || got[0]["price"] != 1.25 {
		t.Fatalf("decoded = %v", got)
	}

	buf.Reset()
	if err := BarsJSON(&buf, nil); err != nil || strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("empty bars = %q err=%v", buf.String(), err)
	}
}

func sampleWindow(n int) ([]models.Tick, []models.Bar) {
	rng := rand.New(rand.NewSource(7))
	base := int64(1_700_000_000_000)
	ticks := make([]models.Tick, n)
	bars := make([]models.Bar, n)
	for i := range ticks {
		p := 20_000 + rng.Float64()*10_000
		ticks[i] = models.Tick{Symbol: "btcusdt", Timestamp: base + int64(i)*137, Price: p, Size: rng.Float64() / 3}
		bars[i] = models.Bar{
			Symbol: "btcusdt", Timeframe: "1m", BucketStart: base + int64(i)*60_000,
			Open: p, High: p + rng.Float64(), Low: p - rng.Float64(), Close: p + rng.NormFloat64()/10,
			Volume: rng.Float64() * 50, Trades: rng.Intn(100) + 1,
		}
	}
	return ticks, bars
}

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-9 }

func mustMillis(t *testing.T, s string) int64 {
	t.Helper()
	ms, ok := util.ParseMillis(s)
	if !ok {
		t.Fatalf("unparseable timestamp %q", s)
	}
	return ms
}

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestJSONRoundTrip(t *testing.T) {
	ticks, bars := sampleWindow(25)

	var buf bytes.Buffer
	if err := TicksJSON(&buf, ticks); err != nil {
		t.Fatalf("ticks json: %v", err)
	}
	var gotTicks []tickRecord
	if err := json.Unmarshal(buf.Bytes(), &gotTicks); err != nil {
		t.Fatalf("decode ticks: %v", err)
	}
	if len(gotTicks) != len(ticks) {
		t.Fatalf("ticks = %d, want %d", len(gotTicks), len(ticks))
	}
	for i, r := range gotTicks {
		w := ticks[i]
		if mustMillis(t, r.Timestamp) != w.Timestamp || r.Symbol != w.Symbol || !near(r.Price, w.Price) || !near(r.Size, w.Size) {
			t.Fatalf("tick %d: got %+v want %+v", i, r, w)
		}
	}

	buf.Reset()
	if err := BarsJSON(&buf, bars); err != nil {
		t.Fatalf("bars json: %v", err)
	}
	var gotBars []barRecord
	if err := json.Unmarshal(buf.Bytes(), &gotBars); err != nil {
		t.Fatalf("decode bars: %v", err)
	}
	if len(gotBars) != len(bars) {
		t.Fatalf("bars = %d, want %d", len(gotBars), len(bars))
	}
	for i, r := range gotBars {
		w := bars[i]
		if mustMillis(t, r.Timestamp) != w.BucketStart || r.Symbol != w.Symbol || r.Timeframe != w.Timeframe || r.Trades != w.Trades {
			t.Fatalf("bar %d: got %+v want %+v", i, r, w)
		}
		if !near(r.Open, w.Open) || !near(r.High, w.High) || !near(r.Low, w.Low) || !near(r.Close, w.Close) || !near(r.Volume, w.Volume) {
			t.Fatalf("bar %d prices: got %+v want %+v", i, r, w)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ticks, bars := sampleWindow(25)

	var buf bytes.Buffer
	if err := TicksCSV(&buf, ticks); err != nil {
		t.Fatalf("ticks csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read ticks csv: %v", err)
	}
	if len(rows) != len(ticks)+1 {
		t.Fatalf("rows = %d, want header + %d", len(rows), len(ticks))
	}
	for i, row := range rows[1:] {
		w := ticks[i]
		if mustMillis(t, row[0]) != w.Timestamp || row[1] != w.Symbol || !near(mustFloat(t, row[2]), w.Price) || !near(mustFloat(t, row[3]), w.Size) {
			t.Fatalf("tick row %d: %v want %+v", i, row, w)
		}
	}

	buf.Reset()
	if err := BarsCSV(&buf, bars); err != nil {
		t.Fatalf("bars csv: %v", err)
	}
	rows, err = csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read bars csv: %v", err)
	}
	if len(rows) != len(bars)+1 {
		t.Fatalf("rows = %d, want header + %d", len(rows), len(bars))
	}
	for i, row := range rows[1:] {
		w := bars[i]
		trades, err := strconv.Atoi(row[7])
		if err != nil || trades != w.Trades {
			t.Fatalf("bar row %d trades %q want %d", i, row[7], w.Trades)
		}
		if mustMillis(t, row[0]) != w.BucketStart || row[1] != w.Symbol {
			t.Fatalf("bar row %d: %v want %+v", i, row, w)
		}
		want := []float64{w.Open, w.High, w.Low, w.Close, w.Volume}
		for j, v := range want {
			if got := mustFloat(t, row[2+j]); !near(got, v) {
				t.Fatalf("bar row %d col %s = %v want %v", i, barHeader[2+j], got, v)
			}
		}
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := FileName("btcusdt", "ticks", FormatCSV, now); got != "btcusdt_ticks_20240102T030405Z.csv" {
		t.Fatalf("file name = %s", got)
	}
	if FormatCSV.ContentType() == FormatJSON.ContentType() {
		t.Fatalf("content types must differ")
	}
}
