package analytics

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
)

var t0 = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func daily(n int) []time.Time {
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = t0.AddDate(0, 0, i)
	}
	return ts
}

func TestSpectralCycles_FindsDominantPeriod(t *testing.T) {
	n := 200
	values := make([]float64, n)
	for i := range values {
		values[i] = 100 + 0.05*float64(i) + 10*math.Sin(2*math.Pi*float64(i)/20)
	}

	res, err := NewSpectralCycles().Analyze(context.Background(), values, daily(n))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, res.Status)
	assert.InDelta(t, 20, res.DominantPeriod, 1e-9)
	assert.InDelta(t, 20, res.DominantPeriodDays, 1e-9)
	assert.Greater(t, res.Strength, 0.5)
	assert.GreaterOrEqual(t, res.Position, 0.0)
	assert.LessOrEqual(t, res.Position, 1.0)
	require.NotNil(t, res.NextPeak)
	require.NotNil(t, res.NextTrough)
	assert.True(t, res.NextPeak.After(t0.AddDate(0, 0, n-1)))
	assert.Len(t, res.Components, 5)
	assert.InDelta(t, 20, res.Components[0].Period, 1e-9)
	require.NotNil(t, res.Wavelet)
	assert.Len(t, res.Wavelet.Details, 4)
}

func TestSpectralCycles_ShortSeries(t *testing.T) {
	res, err := NewSpectralCycles().Analyze(context.Background(), make([]float64, 49), daily(49))
	require.NoError(t, err)
	assert.Equal(t, models.StatusInsufficientData, res.Status)
	assert.Equal(t, "Unknown", res.Phase)
	assert.Zero(t, res.Strength)
}

func TestNextTurns(t *testing.T) {
	peak, trough := nextTurns(0.25, 100)
	assert.InDelta(t, 25, peak, 1e-9)
	assert.InDelta(t, 75, trough, 1e-9)

	peak, trough = nextTurns(0.75, 100)
	assert.InDelta(t, 25, trough, 1e-9)
	assert.InDelta(t, 75, peak, 1e-9)
}

func twoRegimeReturns(seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, 0, 200)
	for i := 0; i < 100; i++ {
		out = append(out, -0.02+0.005*rng.NormFloat64())
	}
	for i := 0; i < 100; i++ {
		out = append(out, 0.02+0.005*rng.NormFloat64())
	}
	return out
}

func assertRowStochastic(t *testing.T, m [][]float64) {
	t.Helper()
	for i, row := range m {
		sum := 0.0
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9, "row %d", i)
	}
}

func TestGaussianHMM_SeparatesRegimes(t *testing.T) {
	res, err := NewGaussianHMM().Fit(context.Background(), twoRegimeReturns(7), 2)
	require.NoError(t, err)

	assert.Equal(t, MethodHMM, res.Method)
	require.Len(t, res.Regimes, 2)
	assert.Less(t, res.Regimes[0].Mean, res.Regimes[1].Mean)
	assert.Equal(t, "contraction", res.Regimes[0].Label)
	assert.Equal(t, "expansion", res.CurrentLabel)
	assertRowStochastic(t, res.Transition)

	sum := 0.0
	for _, p := range res.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Greater(t, res.Persistence, 0.5)
	for _, r := range res.Regimes {
		assert.GreaterOrEqual(t, r.ExpectedDuration, 1.0)
	}
}

func TestGaussianHMM_ThreeRegimeLabels(t *testing.T) {
	res, err := NewGaussianHMM().Fit(context.Background(), twoRegimeReturns(3), 3)
	require.NoError(t, err)
	require.Len(t, res.Regimes, 3)
	assert.Equal(t, []string{"contraction", "stable", "expansion"},
		[]string{res.Regimes[0].Label, res.Regimes[1].Label, res.Regimes[2].Label})
	assertRowStochastic(t, res.Transition)
}

func TestGaussianHMM_TooFewReturns(t *testing.T) {
	_, err := NewGaussianHMM().Fit(context.Background(), make([]float64, 10), 2)
	require.Error(t, err)
	assert.Equal(t, models.KindInsufficientData, models.KindOf(err))
}

func TestThresholdRegimes(t *testing.T) {
	res, err := NewThresholdRegimes().Fit(context.Background(), []float64{-1, 1, -1, 1, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentRegime)
	assert.Equal(t, []float64{0.3, 0.7}, res.Probabilities)
	assert.Equal(t, 0.9, res.Persistence)
	assertRowStochastic(t, res.Transition)

	res, err = NewThresholdRegimes().Fit(context.Background(), []float64{1}, 2)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInsufficientData, res.Status)
}

func garchReturns(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	omega, alpha, beta := 1e-5, 0.1, 0.85
	v := omega / (1 - alpha - beta)
	out := make([]float64, n)
	prev := 0.0
	for i := range out {
		v = omega + alpha*prev*prev + beta*v
		out[i] = math.Sqrt(v) * rng.NormFloat64()
		prev = out[i]
	}
	return out
}

func TestGARCH_FitsStationaryParameters(t *testing.T) {
	res, err := NewGARCH().Fit(context.Background(), garchReturns(600, 11), 5)
	require.NoError(t, err)

	assert.Equal(t, MethodGARCH, res.Method)
	assert.GreaterOrEqual(t, res.Alpha, 0.0)
	assert.GreaterOrEqual(t, res.Beta, 0.0)
	assert.Less(t, res.Persistence, 0.999)
	assert.Greater(t, res.Current, 0.0)
	require.Len(t, res.Forecast, 5)
	for _, f := range res.Forecast {
		assert.Greater(t, f, 0.0)
	}
	assert.Contains(t, []string{"low", "normal", "high"}, res.Regime)
}

func TestGARCH_TooFewReturns(t *testing.T) {
	_, err := NewGARCH().Fit(context.Background(), make([]float64, 10), 5)
	require.Error(t, err)
}

func TestRollingVolatility_FlatForecast(t *testing.T) {
	returns := garchReturns(100, 5)
	res, err := NewRollingVolatility().Fit(context.Background(), returns, 3)
	require.NoError(t, err)
	assert.Equal(t, MethodRollingStd, res.Method)
	assert.Equal(t, 0.9, res.Persistence)
	require.Len(t, res.Forecast, 3)
	for _, f := range res.Forecast {
		assert.Equal(t, res.Current, f)
	}
}

func simInputs() []domsvc.SimInput {
	rng := rand.New(rand.NewSource(1))
	a := make([]float64, 120)
	b := make([]float64, 120)
	a[0], b[0] = 100, 50
	for i := 1; i < len(a); i++ {
		a[i] = a[i-1] * math.Exp(0.001+0.02*rng.NormFloat64())
		b[i] = b[i-1] * math.Exp(0.001+0.015*rng.NormFloat64())
	}
	return []domsvc.SimInput{
		{Name: "hash_rate", Values: a, Reversion: 0.05},
		{Name: "difficulty", Values: b, Reversion: 0.03},
	}
}

func TestRandomWalkSimulator_SeededAndOrdered(t *testing.T) {
	cfg := domsvc.SimConfig{
		Paths: 500, Horizon: 20, Seed: 42,
		Scenarios: []domsvc.Scenario{{Name: "difficulty_spike", Series: 1, Threshold: 1.2, Above: true}},
	}
	sim := NewRandomWalkSimulator()
	first, err := sim.Simulate(context.Background(), simInputs(), cfg)
	require.NoError(t, err)
	second, err := sim.Simulate(context.Background(), simInputs(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first.Series, 2)
	for _, s := range first.Series {
		require.Len(t, s.MeanPath, 20)
		b68, b95 := s.Bands["68"], s.Bands["95"]
		for h, mean := range s.MeanPath {
			assert.LessOrEqual(t, b95.Lower[h], b68.Lower[h])
			assert.LessOrEqual(t, b68.Lower[h], mean)
			assert.LessOrEqual(t, mean, b68.Upper[h])
			assert.LessOrEqual(t, b68.Upper[h], b95.Upper[h])
		}
		assert.LessOrEqual(t, s.Terminal.Percentiles["p5"], s.Terminal.Percentiles["p95"])
	}
	for name, p := range first.Scenarios {
		assert.GreaterOrEqual(t, p, 0.0, name)
		assert.LessOrEqual(t, p, 1.0, name)
	}
	assert.Contains(t, first.Scenarios, "difficulty_spike")
	assert.Contains(t, first.Scenarios, "up_20pct")
	assert.LessOrEqual(t, first.StressExtremes["worst_case"], first.StressExtremes["best_case"])

	other := cfg
	other.Seed = 43
	third, err := sim.Simulate(context.Background(), simInputs(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.Series[0].MeanPath, third.Series[0].MeanPath)
}

func TestRandomWalkSimulator_Insufficient(t *testing.T) {
	res, err := NewRandomWalkSimulator().Simulate(context.Background(),
		[]domsvc.SimInput{{Name: "x", Values: []float64{1}}}, domsvc.SimConfig{Paths: 10, Horizon: 5})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInsufficientData, res.Status)
}

func TestLocalTrendKalman_TracksTrend(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	values := make([]float64, 200)
	for i := range values {
		values[i] = 50 + float64(i) + 2*rng.NormFloat64()
	}
	res, err := NewLocalTrendKalman().Smooth(context.Background(), "hash_rate", values)
	require.NoError(t, err)
	assert.Len(t, res.Filtered, 200)
	assert.Len(t, res.Smoothed, 200)
	assert.Len(t, res.Trend, 200)
	assert.Greater(t, res.CurrentTrend, 0.0)
	assert.LessOrEqual(t, res.NoiseReduction, 1.0)
}

func TestFixedGainFilter_ConstantSeries(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	res, err := NewFixedGainFilter().Smooth(context.Background(), "x", values)
	require.NoError(t, err)
	assert.Equal(t, values, res.Filtered)
	assert.Zero(t, res.NoiseReduction)
	assert.Zero(t, res.CurrentTrend)
}

func TestIsolationForest_FlagsSpike(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	values := make([]float64, 120)
	for i := range values {
		values[i] = 10 + 0.2*rng.NormFloat64()
	}
	values[len(values)-1] = 50

	opts := domsvc.AnomalyOptions{Seed: 42, High: 20, Low: 1}
	res, err := NewIsolationForest().Score(context.Background(), values, opts)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, res.Status)
	assert.True(t, res.IsAnomaly)
	assert.Equal(t, "High", res.Type)
	assert.Greater(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
	require.NotEmpty(t, res.Historical)
	assert.Equal(t, len(values)-1, res.Historical[len(res.Historical)-1].Index)

	again, err := NewIsolationForest().Score(context.Background(), values, opts)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestIsolationForest_ShortSeries(t *testing.T) {
	res, err := NewIsolationForest().Score(context.Background(), make([]float64, 19), domsvc.AnomalyOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInsufficientData, res.Status)
	assert.False(t, res.IsAnomaly)
}

func TestAnomalyType_Relative(t *testing.T) {
	opts := domsvc.AnomalyOptions{High: 0.05, Low: -0.05, Relative: true}
	assert.Equal(t, "High", anomalyType(100, 0.1, opts))
	assert.Equal(t, "Low", anomalyType(100, -0.1, opts))
	assert.Equal(t, "Statistical", anomalyType(100, 0.01, opts))
}

func TestRandomWalkSimulator_ExtremeInputsStayFinite(t *testing.T) {
	wild := make([]float64, 40)
	signed := make([]float64, 40)
	for i := range wild {
		wild[i], signed[i] = 1e-200, -1e300
		if i%2 == 1 {
			wild[i], signed[i] = 1e200, 1e300
		}
	}
	res, err := NewRandomWalkSimulator().Simulate(context.Background(), []domsvc.SimInput{
		{Name: "wild", Values: wild},
		{Name: "signed", Values: signed},
	}, domsvc.SimConfig{Paths: 200, Horizon: 30, Seed: 3})
	require.NoError(t, err)
	require.Equal(t, models.StatusOK, res.Status)

	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	for _, s := range res.Series {
		for h, m := range s.MeanPath {
			assert.True(t, finite(m), "%s mean at %d", s.Name, h)
			for name, b := range s.Bands {
				assert.True(t, finite(b.Lower[h]) && finite(b.Upper[h]), "%s band %s at %d", s.Name, name, h)
			}
		}
		assert.True(t, finite(s.Terminal.Std), s.Name)
	}
	for k, v := range res.RiskMetrics {
		assert.True(t, finite(v), k)
	}
	for k, v := range res.StressExtremes {
		assert.True(t, finite(v), k)
	}
	_, err = json.Marshal(res)
	assert.NoError(t, err)
}

func TestSpectralCycles_PhaseFollowsRangeNotDetrendedAngle(t *testing.T) {
	n := 120
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i) + 5*math.Sin(2*math.Pi*float64(i)/30)
	}
	res, err := NewSpectralCycles().Analyze(context.Background(), values, daily(n))
	require.NoError(t, err)
	assert.Greater(t, res.Position, 0.95)
	assert.Equal(t, "Peak - Distribution", res.Phase)
}
