package features

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"gonum.org/v1/gonum/stat"
)

// TrailingMean returns a length-n series where element i is the mean of
// values[max(0,i-window+1)..i]. Full windows come from the SMA indicator;
// the warm-up prefix uses partial-window means so no index looks ahead.
func TrailingMean(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if window < 1 {
		window = 1
	}

	sum := 0.0
	warm := window - 1
	if warm > n {
		warm = n
	}
	for i := 0; i < warm; i++ {
		sum += values[i]
		out[i] = sum / float64(i+1)
	}
	if n < window {
		return out
	}
	if window == 1 {
		copy(out, values)
		return out
	}

	sma := helper.ChanToSlice(trend.NewSmaWithPeriod[float64](window).Compute(helper.SliceToChan(values)))
	offset := n - len(sma)
	for j, v := range sma {
		out[offset+j] = v
	}
	return out
}

// Last returns the final element or 0 for an empty slice.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// Tail returns up to the last n elements without copying.
func Tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

// RollingStd returns the sample standard deviation over trailing windows.
// Windows shorter than two points yield 0.
func RollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		w := values[lo : i+1]
		if len(w) < 2 {
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
	return out
}

// RollingMax and RollingMin return trailing-window extremes.
func RollingMax(values []float64, window int) []float64 {
	return rollingExtreme(values, window, math.Max)
}

func RollingMin(values []float64, window int) []float64 {
	return rollingExtreme(values, window, math.Min)
}

func rollingExtreme(values []float64, window int, pick func(a, b float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		m := values[lo]
		for _, v := range values[lo+1 : i+1] {
			m = pick(m, v)
		}
		out[i] = m
	}
	return out
}
