package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Clamp01 bounds v to [0,1] and maps NaN to 0.
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// Clamp bounds v to [lo,hi] and maps NaN to lo.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// Safe replaces NaN and infinities with fallback.
func Safe(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// Mean is stat.Mean that tolerates empty input.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// StdDev is the sample standard deviation, 0 below two points.
func StdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return Safe(stat.StdDev(x, nil), 0)
}

// PopStdDev is the population standard deviation.
func PopStdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, v := stat.PopMeanVariance(x, nil)
	return math.Sqrt(math.Max(v, 0))
}

// Variance is the population variance.
func Variance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, v := stat.PopMeanVariance(x, nil)
	return math.Max(v, 0)
}

// Correlation returns Pearson's r, or 0 when either side is constant.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0
	}
	return Safe(stat.Correlation(x, y, nil), 0)
}

// IndexCorrelation correlates values with 0..n-1.
func IndexCorrelation(values []float64) float64 {
	return Correlation(Index(len(values)), values)
}

// Index returns 0..n-1 as floats.
func Index(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// LinearFit returns intercept and slope of values against their index.
func LinearFit(values []float64) (alpha, beta float64) {
	if len(values) < 2 {
		return Mean(values), 0
	}
	alpha, beta = stat.LinearRegression(Index(len(values)), values, nil, false)
	return Safe(alpha, Mean(values)), Safe(beta, 0)
}

// Detrend subtracts the least-squares line.
func Detrend(values []float64) []float64 {
	alpha, beta := LinearFit(values)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - (alpha + beta*float64(i))
	}
	return out
}

// Percentile uses linear interpolation between order statistics, p in [0,100].
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, p)
}

// PercentileSorted is Percentile on pre-sorted input.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := Clamp(p, 0, 100) / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PercentileRank is 100 * count(values <= x) / n.
func PercentileRank(values []float64, x float64) float64 {
	if len(values) == 0 {
		return 0
	}
	c := 0
	for _, v := range values {
		if v <= x {
			c++
		}
	}
	return 100 * float64(c) / float64(len(values))
}

// Median of values.
func Median(values []float64) float64 { return Percentile(values, 50) }

// Autocorrelation at the given lag, 0 when undefined.
func Autocorrelation(x []float64, lag int) float64 {
	if lag <= 0 || len(x) <= lag+1 {
		return 0
	}
	return Correlation(x[:len(x)-lag], x[lag:])
}

// Abs returns |x| element-wise.
func Abs(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v)
	}
	return out
}

// MinMax returns the extremes of values.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
