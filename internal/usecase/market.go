package usecase

import (
	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/internal/services/features"
	"PairFlow/internal/store"
)

// SymbolPrice is a symbol with data and its latest price.
type SymbolPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Market serves read access to the tick store.
type Market struct {
	store *store.Store
}

func NewMarket(st *store.Store) *Market { return &Market{store: st} }

// Symbols lists every symbol with data and its latest price.
func (m *Market) Symbols() []SymbolPrice {
	syms := m.store.Symbols()
	out := make([]SymbolPrice, len(syms))
	for i, s := range syms {
		out[i] = SymbolPrice{Symbol: s, Price: m.store.LatestPrice(s)}
	}
	return out
}

// Ticks returns the last limit ticks of symbol.
func (m *Market) Ticks(symbol string, limit int) ([]models.Tick, error) {
	if !m.store.Has(symbol) {
		return nil, ErrUnknownSymbol
	}
	return m.store.Snapshot(symbol, limit), nil
}

// Bars returns the last limit closed bars of symbol for tf.
func (m *Market) Bars(symbol string, tf domrepo.Timeframe, limit int) ([]models.Bar, error) {
	if !m.store.Has(symbol) {
		return nil, ErrUnknownSymbol
	}
	bars := m.store.Bars(symbol, tf, limit)
	if bars == nil {
		bars = []models.Bar{}
	}
	return bars, nil
}

// Stats summarizes the tick window of symbol.
func (m *Market) Stats(symbol string) (models.PriceStats, error) {
	if !m.store.Has(symbol) {
		return models.PriceStats{}, ErrUnknownSymbol
	}
	return features.ComputePriceStats(store.NormalizeSymbol(symbol), m.store.Snapshot(symbol, 0)), nil
}

// Clear drops every series.
func (m *Market) Clear() { m.store.Clear() }
