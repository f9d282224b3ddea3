// Package analytics computes pairs-trading statistics over immutable
// snapshots. Every function is pure; insufficient or degenerate input yields
// nil or a default result.
package analytics

import (
	"math"

	"PairFlow/internal/domain/models"
	"PairFlow/internal/services/features"
)

// CriticalValues of the simplified unit-root test.
var CriticalValues = models.CriticalValues{
	OnePercent:  -3.43,
	FivePercent: -2.86,
	TenPercent:  -2.57,
}

// MinADFPoints is the shortest spread the unit-root test accepts.
const MinADFPoints = 10

// Regress fits secondary = alpha + beta*primary and returns nil when the fit
// is undefined.
func Regress(primary, secondary []float64) *models.RegressionResult {
	alpha, beta, ok := features.Regress(primary, secondary)
	if !ok {
		return nil
	}
	resid := make([]float64, len(primary))
	for i := range primary {
		resid[i] = secondary[i] - (alpha + beta*primary[i])
	}
	return &models.RegressionResult{
		HedgeRatio:  beta,
		Intercept:   alpha,
		RSquared:    features.RSquared(primary, secondary, alpha, beta),
		Correlation: features.Correlation(primary, secondary),
		Residuals:   resid,
	}
}

// Spread summarizes the trailing window of the residual series. It needs at
// least 2 residuals.
func Spread(residuals []float64, window int) *models.SpreadStats {
	if len(residuals) < 2 {
		return nil
	}
	if window <= 0 {
		window = len(residuals)
	}
	recent := features.Tail(residuals, window)
	cur := residuals[len(residuals)-1]

	st := &models.SpreadStats{
		Spread:   cur,
		Mean:     features.Mean(recent),
		Std:      features.StdDev(recent),
		HalfLife: features.HalfLife(recent),
	}
	if st.Std > 0 {
		st.ZScore = (cur - st.Mean) / st.Std
	}
	if st.Mean != 0 {
		st.SpreadPercent = (cur/st.Mean - 1) * 100
	}
	return st
}

// ADF runs the simplified unit-root regression of first differences on lagged
// levels. The p-value is a step function over CriticalValues, not the true
// ADF distribution.
func ADF(spread []float64) models.ADFResult {
	res := models.ADFResult{PValue: 1, CriticalValues: CriticalValues, Lag: 1}
	if len(spread) < MinADFPoints {
		return res
	}
	diff, lagged := features.Diff(spread)
	alpha, beta, ok := features.Regress(lagged, diff)
	if !ok {
		return res
	}
	resid := make([]float64, len(diff))
	for i := range diff {
		resid[i] = diff[i] - (alpha + beta*lagged[i])
	}
	n := float64(len(diff))
	se := features.StdDev(resid) / (features.StdDev(lagged) * math.Sqrt(n))
	if !(se > 0) || math.IsInf(se, 0) {
		return res
	}

	stat := beta / se
	res.TestStatistic = stat
	res.PValue = pValue(stat)
	res.IsStationary = stat < CriticalValues.FivePercent
	return res
}

func pValue(stat float64) float64 {
	switch {
	case stat < CriticalValues.OnePercent:
		return 0.01
	case stat < CriticalValues.FivePercent:
		return 0.05
	case stat < CriticalValues.TenPercent:
		return 0.10
	default:
		return 0.5
	}
}
