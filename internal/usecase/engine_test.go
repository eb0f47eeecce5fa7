package usecase

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
	fitcache "ChainPulse/internal/service/cache"
	pkgcache "ChainPulse/pkg/cache"
)

var t0 = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func hashRateSeries(n int, seed int64) models.Series {
	rng := rand.New(rand.NewSource(seed))
	out := make(models.Series, n)
	hr := 200e6
	for i := range out {
		hr *= math.Exp(0.002 + 0.02*rng.NormFloat64() + 0.01*math.Sin(2*math.Pi*float64(i)/40))
		out[i] = models.Record{
			Timestamp: t0.AddDate(0, 0, i),
			Fields: map[string]float64{
				models.FieldHashRate:   hr,
				models.FieldDifficulty: hr * 1.1e5,
				models.FieldPrice:      30000 + 5000*math.Sin(float64(i)/25),
			},
		}
	}
	return out
}

func issuanceSeries(n int) models.Series {
	out := make(models.Series, n)
	for i := range out {
		out[i] = models.Record{
			Timestamp: t0.AddDate(0, 0, i),
			Fields:    map[string]float64{models.FieldDailyIssuance: 1e6 * (1 + 0.3*math.Sin(2*math.Pi*float64(i)/90))},
		}
	}
	return out
}

func newTestEngine(fc *fitcache.FitCache) *Engine {
	return NewEngine(DefaultAnalyzers(), fc, nil, nil, EngineOptions{Workers: 4, Timeout: time.Minute})
}

func smallConfig() models.AnalysisConfig {
	cfg := models.DefaultAnalysisConfig()
	cfg.Simulations = 200
	return cfg
}

func TestEngine_HashRibbonFullAnalysis(t *testing.T) {
	res, err := newTestEngine(nil).AnalyzeHashRibbon(context.Background(), hashRateSeries(200, 1), smallConfig())
	require.NoError(t, err)

	assert.Equal(t, models.KindHashRibbon, res.Kind)
	assert.Equal(t, 200, res.Points)
	assert.Equal(t, t0.AddDate(0, 0, 199), res.Timestamp)
	require.NotNil(t, res.HashRibbon)
	require.NotNil(t, res.CycleAnalysis)
	require.NotNil(t, res.RegimeAnalysis)
	require.NotNil(t, res.VolatilityAnalysis)
	require.NotNil(t, res.MonteCarlo)
	require.NotNil(t, res.Kalman)
	require.NotNil(t, res.AnomalyDetection)
	require.NotNil(t, res.RiskAssessment)
	require.Len(t, res.Predictions, 1)
	assert.NotNil(t, res.Anomalies)
	assert.LessOrEqual(t, len(res.Recommendations), 8)

	for i, row := range res.RegimeAnalysis.Transition {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-6, "row %d", i)
	}

	assert.Equal(t, 30, res.MonteCarlo.Horizon)
	require.Len(t, res.MonteCarlo.Series, 2)
	for _, s := range res.MonteCarlo.Series {
		for _, band := range s.Bands {
			for h := range s.MeanPath {
				assert.LessOrEqual(t, band.Lower[h], s.MeanPath[h])
				assert.LessOrEqual(t, s.MeanPath[h], band.Upper[h])
			}
		}
	}
	for _, k := range []string{"hash_rate_surge", "capitulation", "up_20pct"} {
		assert.Contains(t, res.MonteCarlo.Scenarios, k)
	}

	assert.GreaterOrEqual(t, res.OverallConfidence, 0.0)
	assert.LessOrEqual(t, res.OverallConfidence, 1.0)
	assert.Equal(t, smallConfig().Fingerprint(), res.Metadata.ConfigDigest)
	assert.Equal(t, "gaussian_hmm", res.Metadata.Methods[models.StageRegime])
	assert.Contains(t, res.Metadata.Diagnostics, "forecast.r2")
	assert.Empty(t, res.Metadata.Errors)

	_, err = json.Marshal(res)
	require.NoError(t, err, "no NaN or Inf may leak into the output")
}

func TestEngine_Idempotent(t *testing.T) {
	e := newTestEngine(nil)
	series := hashRateSeries(150, 3)

	a, err := e.AnalyzeHashRibbon(context.Background(), series, smallConfig())
	require.NoError(t, err)
	b, err := e.AnalyzeHashRibbon(context.Background(), series, smallConfig())
	require.NoError(t, err)

	a.Metadata.DurationMs, b.Metadata.DurationMs = 0, 0
	assert.Equal(t, a, b)
}

func TestEngine_FitCacheHitsOnRepeat(t *testing.T) {
	fc := fitcache.New(pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(64)))
	e := newTestEngine(fc)
	series := hashRateSeries(150, 4)

	first, err := e.AnalyzeHashRibbon(context.Background(), series, smallConfig())
	require.NoError(t, err)
	assert.Empty(t, first.Metadata.CacheHits)

	second, err := e.AnalyzeHashRibbon(context.Background(), series, smallConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{models.StageForecast, models.StageRegime, models.StageVolatility}, second.Metadata.CacheHits)
	assert.Equal(t, first.RegimeAnalysis, second.RegimeAnalysis)
	assert.Equal(t, first.VolatilityAnalysis, second.VolatilityAnalysis)
	assert.Equal(t, first.Predictions, second.Predictions)

	// Appending a point changes the key.
	longer := append(append(models.Series{}, series...), hashRateSeries(151, 4)[150])
	third, err := e.AnalyzeHashRibbon(context.Background(), longer, smallConfig())
	require.NoError(t, err)
	assert.Empty(t, third.Metadata.CacheHits)
}

func TestEngine_IssuanceCyclesCarrySpectralPeriod(t *testing.T) {
	res, err := newTestEngine(nil).AnalyzeIssuanceMultiple(context.Background(), issuanceSeries(400), smallConfig())
	require.NoError(t, err)
	require.NotNil(t, res.CycleAnalysis)
	require.Equal(t, models.StatusOK, res.CycleAnalysis.Status)

	im := res.IssuanceMultiple
	require.NotNil(t, im)
	require.NotNil(t, im.ProfitabilityCycles)
	require.NotNil(t, im.SupplyShock)
	assert.Positive(t, im.ProfitabilityCycles.DominantPeriodDays)
	assert.Equal(t, res.CycleAnalysis.DominantPeriodDays, im.ProfitabilityCycles.DominantPeriodDays)
	assert.Equal(t, res.CycleAnalysis.Phase, im.ProfitabilityCycles.SpectralPhase)
	assert.NotEmpty(t, im.Halving.Phase)
}

func TestEngine_DisabledSectionsAreNil(t *testing.T) {
	cfg := smallConfig()
	for _, f := range []**bool{
		&cfg.EnableCycleAnalysis, &cfg.EnableRegimeAnalysis, &cfg.EnableVolatilityAnalysis,
		&cfg.EnableMonteCarlo, &cfg.EnableKalmanFilter, &cfg.EnableAnomalyDetection,
		&cfg.EnableRiskAssessment, &cfg.EnablePredictions,
	} {
		*f = models.Bool(false)
	}

	res, err := newTestEngine(nil).AnalyzeIssuanceMultiple(context.Background(), issuanceSeries(400), cfg)
	require.NoError(t, err)
	require.NotNil(t, res.IssuanceMultiple)
	assert.Len(t, res.IssuanceMultiple.History, 400)
	assert.Nil(t, res.CycleAnalysis)
	assert.Nil(t, res.RegimeAnalysis)
	assert.Nil(t, res.VolatilityAnalysis)
	assert.Nil(t, res.MonteCarlo)
	assert.Nil(t, res.Kalman)
	assert.Nil(t, res.AnomalyDetection)
	assert.Nil(t, res.Anomalies)
	assert.Nil(t, res.RiskAssessment)
	assert.Nil(t, res.Predictions)
	assert.NotNil(t, res.Recommendations)

	require.NotNil(t, res.IssuanceMultiple.ProfitabilityCycles)
	assert.Zero(t, res.IssuanceMultiple.ProfitabilityCycles.DominantPeriodDays)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "regime_analysis")
	assert.Nil(t, generic["regime_analysis"])
}

func TestEngine_ShortSeriesDegrades(t *testing.T) {
	res, err := newTestEngine(nil).AnalyzeHashRibbon(context.Background(), hashRateSeries(25, 5), smallConfig())
	require.NoError(t, err)

	assert.Equal(t, models.StatusInsufficientData, res.CycleAnalysis.Status)
	assert.Equal(t, "Unknown", res.CycleAnalysis.Phase)
	assert.Equal(t, models.StatusInsufficientData, res.Predictions[0].Status)
	assert.Equal(t, "threshold", res.RegimeAnalysis.Method)
	assert.Equal(t, string(models.KindInsufficientData), res.Metadata.Fallbacks[models.StageRegime])
	assert.Equal(t, "rolling_std", res.VolatilityAnalysis.Method)
	assert.Contains(t, res.Metadata.InsufficientData, models.StageCycle)
	assert.Contains(t, res.Metadata.InsufficientData, models.StageForecast)
	assert.Equal(t, 6, res.MonteCarlo.Horizon)

	_, err = json.Marshal(res)
	require.NoError(t, err)
}

func TestEngine_FatalErrors(t *testing.T) {
	e := newTestEngine(nil)
	ctx := context.Background()

	bad := smallConfig()
	bad.ShortWindow, bad.LongWindow = 60, 30
	_, err := e.AnalyzeHashRibbon(ctx, hashRateSeries(100, 1), bad)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	series := hashRateSeries(100, 1)
	series[10].Timestamp = t0.AddDate(-1, 0, 0)
	_, err = e.AnalyzeHashRibbon(ctx, series, smallConfig())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = e.AnalyzeHashRibbon(ctx, nil, smallConfig())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = e.Analyze(ctx, "rainbow", hashRateSeries(100, 1), smallConfig())
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.True(t, models.IsFatal(err))
}

func TestEngine_TimeoutDiscardsResult(t *testing.T) {
	e := NewEngine(DefaultAnalyzers(), nil, nil, nil, EngineOptions{Workers: 2, Timeout: time.Nanosecond})
	res, err := e.AnalyzeHashRibbon(context.Background(), hashRateSeries(200, 1), smallConfig())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)
}

type panickingRegime struct{}

func (panickingRegime) Method() string { return "panicky" }
func (panickingRegime) Fit(context.Context, []float64, int) (*models.RegimeAnalysis, error) {
	panic("boom")
}

type failingRegime struct{}

func (failingRegime) Method() string { return "failing" }
func (failingRegime) Fit(context.Context, []float64, int) (*models.RegimeAnalysis, error) {
	return nil, models.FitFailure(models.StageRegime, assert.AnError)
}

func TestEngine_StagePanicIsIsolated(t *testing.T) {
	an := DefaultAnalyzers()
	an.Regime = panickingRegime{}
	e := NewEngine(an, nil, nil, nil, EngineOptions{Workers: 4, Timeout: time.Minute})

	res, err := e.AnalyzeHashRibbon(context.Background(), hashRateSeries(120, 2), smallConfig())
	require.NoError(t, err)
	require.NotNil(t, res.RegimeAnalysis)
	assert.Equal(t, models.StatusInsufficientData, res.RegimeAnalysis.Status)
	assert.Contains(t, res.Metadata.Errors[models.StageRegime], "panic: boom")
	assert.Equal(t, models.StatusOK, res.CycleAnalysis.Status, "other stages are unaffected")
}

func TestEngine_FallbackRecorded(t *testing.T) {
	an := DefaultAnalyzers()
	an.Regime = failingRegime{}
	e := NewEngine(an, nil, nil, nil, EngineOptions{Workers: 4, Timeout: time.Minute})

	res, err := e.AnalyzeHashRibbon(context.Background(), hashRateSeries(120, 2), smallConfig())
	require.NoError(t, err)
	assert.Equal(t, "threshold", res.RegimeAnalysis.Method)
	assert.Equal(t, "threshold", res.Metadata.Methods[models.StageRegime])
	assert.Equal(t, string(models.KindModelFitFailure), res.Metadata.Fallbacks[models.StageRegime])
	assert.Empty(t, res.Metadata.Errors)
}

func TestSimulationHorizon(t *testing.T) {
	assert.Equal(t, 30, SimulationHorizon(365, 400))
	assert.Equal(t, 10, SimulationHorizon(10, 400))
	assert.Equal(t, 5, SimulationHorizon(30, 20))
	assert.Equal(t, 0, SimulationHorizon(30, 3))
}
