package features

import "PairFlow/internal/domain/models"

// ComputePriceStats summarizes a tick window. An empty window yields zero stats.
func ComputePriceStats(symbol string, ticks []models.Tick) models.PriceStats {
	ps := models.PriceStats{Symbol: symbol}
	if len(ticks) == 0 {
		return ps
	}
	first := ticks[0].Price
	ps.LastPrice = ticks[len(ticks)-1].Price
	ps.High, ps.Low = first, first
	notional := 0.0
	for _, t := range ticks {
		if t.Price > ps.High {
			ps.High = t.Price
		}
		if t.Price < ps.Low {
			ps.Low = t.Price
		}
		ps.Volume += t.Size
		notional += t.Price * t.Size
	}
	ps.Trades = len(ticks)
	ps.Change = ps.LastPrice - first
	if first != 0 {
		ps.ChangePercent = ps.Change / first * 100
	}
	if ps.Volume != 0 {
		ps.VWAP = notional / ps.Volume
	}
	return ps
}

// VWAP returns the volume-weighted average price, or 0 with no volume.
func VWAP(ticks []models.Tick) float64 {
	var pv, v float64
	for _, t := range ticks {
		pv += t.Price * t.Size
		v += t.Size
	}
	if v == 0 {
		return 0
	}
	return pv / v
}

// TickPrices extracts prices in order.
func TickPrices(ticks []models.Tick) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Price
	}
	return out
}

// BarCloses extracts close prices in order.
func BarCloses(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
