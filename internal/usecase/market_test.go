package usecase

import (
	"errors"
	"testing"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/internal/store"
)

func TestMarket(t *testing.T) {
	st := store.New()
	m := NewMarket(st)
	if _, err := m.Ticks("btcusdt", 10); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("unknown symbol: %v", err)
	}

	st.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 1_000, Price: 10, Size: 1})
	st.Ingest(models.Tick{Symbol: "btcusdt", Timestamp: 2_000, Price: 12, Size: 3})

	ticks, err := m.Ticks("BTCUSDT", 1)
	if err != nil || len(ticks) != 1 || ticks[0].Price != 12 {
		t.Fatalf("ticks = %+v %v", ticks, err)
	}
	bars, err := m.Bars("btcusdt", domrepo.TF1m, 10)
	if err != nil || bars == nil || len(bars) != 0 {
		t.Fatalf("1m bars = %+v %v", bars, err)
	}
	stats, err := m.Stats("btcusdt")
	if err != nil || stats.Change != 2 || stats.VWAP != 11.5 || stats.Trades != 2 {
		t.Fatalf("stats = %+v %v", stats, err)
	}
	syms := m.Symbols()
	if len(syms) != 1 || syms[0].Price != 12 {
		t.Fatalf("symbols = %+v", syms)
	}
	m.Clear()
	if len(m.Symbols()) != 0 {
		t.Fatalf("clear left data")
	}
}
