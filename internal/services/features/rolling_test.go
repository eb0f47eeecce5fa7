package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailingMean_PartialWarmupAndFullWindows(t *testing.T) {
	got := TrailingMean([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.Len(t, got, 6)
	assert.InDeltaSlice(t, []float64{1, 1.5, 2, 3, 4, 5}, got, 1e-12)
}

func TestTrailingMean_WindowLongerThanSeries(t *testing.T) {
	got := TrailingMean([]float64{2, 4}, 10)
	assert.InDeltaSlice(t, []float64{2, 3}, got, 1e-12)
}

func TestTrailingMean_NoLookAhead(t *testing.T) {
	base := []float64{5, 5, 5, 5, 5, 5, 5, 5}
	a := TrailingMean(base, 4)
	spiked := append(append([]float64(nil), base...), 1000)
	b := TrailingMean(spiked, 4)
	assert.InDeltaSlice(t, a, b[:len(a)], 1e-12)
}

func TestRollingExtremes(t *testing.T) {
	v := []float64{3, 1, 4, 1, 5, 9, 2}
	assert.Equal(t, []float64{3, 3, 4, 4, 5, 9, 9}, RollingMax(v, 3))
	assert.Equal(t, []float64{3, 1, 1, 1, 1, 1, 2}, RollingMin(v, 3))
}

func TestPercentileHelpers(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3, Percentile(v, 50), 1e-12)
	assert.InDelta(t, 1.4, Percentile(v, 10), 1e-12)
	assert.InDelta(t, 60, PercentileRank(v, 3), 1e-12)
	assert.Equal(t, 0.0, IndexCorrelation([]float64{7, 7, 7, 7}))
}

func TestLaggedMatrix(t *testing.T) {
	v := make([]float64, 15)
	for i := range v {
		v[i] = float64(i)
	}
	rows, idx := LaggedMatrix(v)
	require.Len(t, rows, 5)
	assert.Equal(t, 10, idx[0])
	assert.Len(t, rows[0], len(LagFeatureNames))
	assert.Equal(t, 9.0, rows[0][0])
	assert.Equal(t, 10.0, rows[0][5])
}

func TestRealizedVolatility(t *testing.T) {
	r := []float64{0.1, -0.1, 0.1, -0.1}
	assert.InDelta(t, 0.141421, RealizedVolatility(r, 2), 1e-6)
	assert.InDelta(t, 0.115470, RealizedVolatility(r, 10), 1e-6)
	assert.Zero(t, RealizedVolatility(r, 1))
	assert.Zero(t, RealizedVolatility([]float64{0.1}, 5))
}
