package features

import "math"

// LogReturns computes r_t = ln(v_t / v_{t-1}). Non-positive pairs yield 0.
// It returns a slice of length len(values)-1, or nil if insufficient data.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev, cur := values[i-1], values[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// PctChanges computes (v_t - v_{t-1}) / v_{t-1}, skipping zero bases.
func PctChanges(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// Change is the relative change between the value lag steps back and now.
func Change(values []float64, lag int) float64 {
	if lag <= 0 || len(values) <= lag {
		return 0
	}
	base := values[len(values)-1-lag]
	if base == 0 {
		return 0
	}
	return (values[len(values)-1] - base) / base
}

// RealizedVolatility is the sample std of the last window log-returns. A
// window longer than the input uses all of it.
func RealizedVolatility(logReturns []float64, window int) float64 {
	if window <= 1 || len(logReturns) < 2 {
		return 0
	}
	return StdDev(Tail(logReturns, window))
}

// MedianSpacingDays returns the median gap between consecutive timestamps in days.
func MedianSpacingDays(unixSeconds []float64) float64 {
	if len(unixSeconds) < 2 {
		return 1
	}
	gaps := make([]float64, 0, len(unixSeconds)-1)
	for i := 1; i < len(unixSeconds); i++ {
		gaps = append(gaps, (unixSeconds[i]-unixSeconds[i-1])/86400)
	}
	m := Median(gaps)
	if m <= 0 {
		return 1
	}
	return m
}
