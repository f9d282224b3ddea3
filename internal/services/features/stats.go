// Package features holds the pure numeric building blocks of the pairs
// analytics. Degenerate input never panics; it yields zero values or ok=false.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the sample standard deviation, or 0 with fewer than 2 points.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return finite(stat.StdDev(xs, nil))
}

// Regress fits y = alpha + beta*x by ordinary least squares. It fails when the
// inputs differ in length, have fewer than 2 points, or x has no variance.
func Regress(x, y []float64) (alpha, beta float64, ok bool) {
	if len(x) < 2 || len(x) != len(y) {
		return 0, 0, false
	}
	if v := stat.Variance(x, nil); !(v > 0) || math.IsInf(v, 0) {
		return 0, 0, false
	}
	alpha, beta = stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, 0, false
	}
	return alpha, beta, true
}

// Correlation returns the Pearson correlation, or 0 when it is undefined.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return finite(stat.Correlation(x, y, nil))
}

// RSquared returns the coefficient of determination of a fitted line, or 0
// when y has no variance.
func RSquared(x, y []float64, alpha, beta float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return finite(stat.RSquared(x, y, nil, alpha, beta))
}

// Diff returns first differences and the lagged levels they pair with:
// diff[i] = s[i+1]-s[i], lagged[i] = s[i].
func Diff(s []float64) (diff, lagged []float64) {
	if len(s) < 2 {
		return nil, nil
	}
	diff = make([]float64, len(s)-1)
	lagged = make([]float64, len(s)-1)
	for i := 1; i < len(s); i++ {
		diff[i-1] = s[i] - s[i-1]
		lagged[i-1] = s[i-1]
	}
	return diff, lagged
}

// HalfLife estimates mean-reversion half-life from an AR(1) fit of the
// differences on the lagged levels. Fewer than 3 points gives 0; no mean
// reversion (slope >= 0, or a flat series) gives +Inf.
func HalfLife(s []float64) float64 {
	if len(s) < 3 {
		return 0
	}
	diff, lagged := Diff(s)
	_, beta, ok := Regress(lagged, diff)
	if !ok || beta >= 0 {
		return math.Inf(1)
	}
	if 1+beta <= 0 {
		// overshoots the mean within a single step
		return 0
	}
	return -math.Ln2 / math.Log(1+beta)
}

// RollingCorrelation returns Pearson correlations over successive windows of
// size w. The result has max(0, n-w+1) entries.
func RollingCorrelation(x, y []float64, w int) []float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if w < 1 || n < w {
		return []float64{}
	}
	x, y = x[len(x)-n:], y[len(y)-n:]
	out := make([]float64, 0, n-w+1)
	for i := w - 1; i < n; i++ {
		out = append(out, Correlation(x[i-w+1:i+1], y[i-w+1:i+1]))
	}
	return out
}

// Rolling holds trailing-window statistics aligned index-for-index with the input.
type Rolling struct {
	Mean   []float64
	Std    []float64
	ZScore []float64
}

// RollingStats computes trailing mean, sample std and z-score over windows of
// size w. Indexes before w-1 hold zero placeholders.
func RollingStats(xs []float64, w int) Rolling {
	r := Rolling{
		Mean:   make([]float64, len(xs)),
		Std:    make([]float64, len(xs)),
		ZScore: make([]float64, len(xs)),
	}
	if w < 1 {
		return r
	}
	for i := w - 1; i < len(xs); i++ {
		win := xs[i-w+1 : i+1]
		m := Mean(win)
		sd := StdDev(win)
		r.Mean[i] = m
		r.Std[i] = sd
		if sd > 0 {
			r.ZScore[i] = (xs[i] - m) / sd
		}
	}
	return r
}

// Tail returns the last n elements of xs (all of xs if shorter).
func Tail(xs []float64, n int) []float64 {
	if n < 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

// Align truncates both series to the shorter length keeping the newest values.
func Align(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return Tail(a, n), Tail(b, n)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
