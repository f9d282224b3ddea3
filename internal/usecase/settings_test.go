package usecase

import (
	"errors"
	"testing"

	"PairFlow/internal/domain/models"
)

func TestSettingsStore(t *testing.T) {
	st, err := NewSettingsStore(models.Settings{Symbols: []string{"BTCUSDT", "ethusdt"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got := st.Get()
	if got.Primary() != "btcusdt" || got.Timeframe != "1m" || got.RollingWindow != 20 {
		t.Fatalf("defaults/normalization: %+v", got)
	}

	bad := []models.Settings{
		{Symbols: []string{"btcusdt"}},
		{Symbols: []string{"a", "b"}, Timeframe: "2m"},
		{Symbols: []string{"a", "b"}, RollingWindow: 4},
		{Symbols: []string{"a", "b"}, RollingWindow: 101},
		{Symbols: []string{"a", "A"}},
	}
	for _, s := range bad {
		if _, err := st.Update(s); !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("update %+v err = %v", s, err)
		}
	}
	if st.Get().Primary() != "btcusdt" {
		t.Fatalf("rejected update changed settings")
	}

	upd, err := st.Update(models.Settings{Symbols: []string{"solusdt", "bnbusdt"}, Timeframe: "1s", RollingWindow: 5})
	if err != nil || upd.Secondary() != "bnbusdt" || upd.Timeframe != "1s" {
		t.Fatalf("update: %+v %v", upd, err)
	}
	upd.Symbols[0] = "mutated"
	if st.Get().Primary() != "solusdt" {
		t.Fatalf("Get must return a copy")
	}
}
