package analytics

import (
	"time"

	"PairFlow/internal/domain/models"
	"PairFlow/internal/services/features"
)

const (
	// MinBars is how many closed bars each symbol needs before bar closes
	// replace raw tick prices.
	MinBars = 6
	// MinPairPoints gates the regression on the aligned series length.
	MinPairPoints = 5
	// MinADFHistory gates the unit-root test on the spread history length.
	MinADFHistory = 20
)

// Series is one symbol's history as of snapshot time.
type Series struct {
	Symbol string
	Ticks  []models.Tick
	Bars   []models.Bar
}

// Input is an immutable snapshot of both legs of the pair.
type Input struct {
	Settings  models.Settings
	Primary   Series
	Secondary Series
}

// Compute derives a full analytics result from in. It never fails; missing
// parts are left nil and histories empty.
func Compute(in Input, now time.Time) *models.AnalyticsResult {
	res := &models.AnalyticsResult{
		Settings:           in.Settings,
		Primary:            features.ComputePriceStats(in.Primary.Symbol, in.Primary.Ticks),
		Secondary:          features.ComputePriceStats(in.Secondary.Symbol, in.Secondary.Ticks),
		SpreadHistory:      []float64{},
		ZScoreHistory:      []float64{},
		CorrelationHistory: []float64{},
		ComputedAt:         now,
	}

	x, y, source := prices(in.Primary, in.Secondary)
	x, y = features.Align(x, y)
	res.Source = source
	res.Points = len(x)
	if len(x) < MinPairPoints {
		return res
	}

	reg := Regress(x, y)
	if reg == nil {
		return res
	}
	window := in.Settings.RollingWindow
	res.Regression = reg
	res.Spread = Spread(reg.Residuals, window)
	res.SpreadHistory = reg.Residuals
	res.ZScoreHistory = features.RollingStats(reg.Residuals, window).ZScore

	corrWindow := window
	if corrWindow <= 0 || corrWindow > len(x) {
		corrWindow = len(x)
	}
	res.CorrelationHistory = features.RollingCorrelation(x, y, corrWindow)

	if len(reg.Residuals) >= MinADFHistory {
		adf := ADF(reg.Residuals)
		res.ADF = &adf
	}
	return res
}

// prices picks bar closes when both legs have enough closed bars, otherwise
// raw tick prices.
func prices(p, s Series) ([]float64, []float64, string) {
	if len(p.Bars) >= MinBars && len(s.Bars) >= MinBars {
		return features.BarCloses(p.Bars), features.BarCloses(s.Bars), models.SourceBars
	}
	return features.TickPrices(p.Ticks), features.TickPrices(s.Ticks), models.SourceTicks
}

// MetricValues extracts the alert inputs from a published result: zScore and
// spread when spread stats exist, plus last price and window volume per symbol.
func MetricValues(res *models.AnalyticsResult) models.MetricValues {
	mv := models.MetricValues{
		Prices: make(map[string]float64, 2),
		Volume: make(map[string]float64, 2),
	}
	if res == nil {
		return mv
	}
	if res.Spread != nil {
		z, sp := res.Spread.ZScore, res.Spread.Spread
		mv.ZScore, mv.Spread = &z, &sp
	}
	for _, ps := range []models.PriceStats{res.Primary, res.Secondary} {
		if ps.Symbol == "" || ps.Trades == 0 {
			continue
		}
		mv.Prices[ps.Symbol] = ps.LastPrice
		mv.Volume[ps.Symbol] = ps.Volume
	}
	return mv
}
