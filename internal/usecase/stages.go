package usecase

import (
	"context"
	"errors"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	fitcache "ChainPulse/internal/service/cache"
	"ChainPulse/internal/services/features"
)

// Sub-seed offsets keep the random streams of different stages apart while
// staying a pure function of the configured seed.
const (
	seedOffsetAnomaly  = 1
	seedOffsetForecast = 2

	primaryReversion   = 0.05
	secondaryReversion = 0.03
	maxSimHorizon      = 30
)

// fitted is what the fit cache stores: the stage result plus the reason the
// fallback was taken, so a hit reports the same metadata as a fresh fit.
type fitted[T any] struct {
	Result   T      `json:"result"`
	Method   string `json:"method"`
	Fallback string `json:"fallback,omitempty"`
}

func (e *Engine) stages(r *run) []stage {
	cfg := r.cfg
	return []stage{
		{
			name:    models.StageCycle,
			enabled: cfg.CycleEnabled() && e.an.Cycle != nil,
			run:     e.cycleStage(r),
			degrade: func() {
				r.cycle = &models.CycleAnalysis{Status: models.StatusInsufficientData, Phase: "Unknown"}
			},
		},
		{
			name:    models.StageRegime,
			enabled: cfg.RegimeEnabled() && e.an.Regime != nil,
			run:     e.regimeStage(r),
			degrade: func() {
				r.regime = &models.RegimeAnalysis{Status: models.StatusInsufficientData, Method: methodOf(e.an.RegimeFallback)}
			},
		},
		{
			name:    models.StageVolatility,
			enabled: cfg.VolatilityEnabled() && e.an.Volatility != nil,
			run:     e.volatilityStage(r),
			degrade: func() {
				r.volatility = &models.VolatilityAnalysis{Status: models.StatusInsufficientData, Method: methodOf(e.an.VolatilityFallback)}
			},
		},
		{
			name:    models.StageMonteCarlo,
			enabled: cfg.MonteCarloEnabled() && e.an.Simulator != nil,
			run:     e.monteCarloStage(r),
			degrade: func() {
				r.monteCarlo = &models.MonteCarloResult{Status: models.StatusInsufficientData, Seed: cfg.Seed}
			},
		},
		{
			name:    models.StageKalman,
			enabled: cfg.KalmanEnabled() && e.an.Smoother != nil,
			run:     e.kalmanStage(r),
			degrade: func() {
				r.kalman = &models.KalmanResult{Status: models.StatusInsufficientData, Method: methodOf(e.an.SmootherFallback)}
			},
		},
		{
			name:    models.StageAnomaly,
			enabled: cfg.AnomalyEnabled() && e.an.Anomaly != nil,
			run:     e.anomalyStage(r),
			degrade: func() {
				r.anomaly = &models.AnomalyDetection{Status: models.StatusInsufficientData, Severity: "Low", Historical: []models.FlaggedPoint{}}
			},
		},
		{
			// Reads only the primary series, so it joins the fan-out.
			name:    models.StageForecast,
			enabled: cfg.PredictionsEnabled() && e.an.Forecaster != nil,
			run:     e.forecastStage(r),
			degrade: func() {
				p := models.Prediction{Status: models.StatusInsufficientData, Horizon: cfg.ForecastHorizon, Trend: "Sideways"}
				if v := r.out.Primary; len(v) > 0 {
					p.Value, p.Lower, p.Upper = v[len(v)-1], v[len(v)-1], v[len(v)-1]
				}
				r.predictions = []models.Prediction{p}
			},
		},
	}
}

type methoder interface{ Method() string }

func methodOf(m methoder) string {
	if m == nil {
		return ""
	}
	return m.Method()
}

// fallbackReason maps a primary failure to the metadata reason string.
func fallbackReason(err error) string {
	if k := models.KindOf(err); k != "" {
		return string(k)
	}
	return string(models.KindModelFitFailure)
}

func (e *Engine) cycleStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		m.method = "fft_haar"
		res, err := e.an.Cycle.Analyze(ctx, r.out.Primary, r.out.Timestamps)
		if err != nil {
			return err
		}
		m.insufficient = res.Status == models.StatusInsufficientData
		m.diag("strength", res.Strength)
		r.cycle = res
		return nil
	}
}

func (e *Engine) regimeStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		returns := features.LogReturns(r.out.Primary)
		key := fitcache.Key(models.StageRegime, r.fingerprint, returns)
		f, hit, err := fitcache.Do(ctx, e.cache, models.StageRegime, key, func(ctx context.Context) (fitted[*models.RegimeAnalysis], error) {
			var out fitted[*models.RegimeAnalysis]
			res, err := e.an.Regime.Fit(ctx, returns, r.cfg.Regimes)
			if err == nil {
				out.Result, out.Method = res, e.an.Regime.Method()
				return out, nil
			}
			if ctx.Err() != nil || e.an.RegimeFallback == nil {
				return out, err
			}
			out.Fallback = fallbackReason(err)
			res, err = e.an.RegimeFallback.Fit(ctx, returns, r.cfg.Regimes)
			out.Result, out.Method = res, e.an.RegimeFallback.Method()
			return out, err
		})
		if err != nil {
			return err
		}
		m.method, m.fallback, m.cacheHit = f.Method, f.Fallback, hit
		m.insufficient = f.Result.Status == models.StatusInsufficientData
		if f.Result.LogLikelihood != 0 {
			m.diag("log_likelihood", f.Result.LogLikelihood)
		}
		m.diag("persistence", f.Result.Persistence)
		r.regime = f.Result
		return nil
	}
}

func (e *Engine) volatilityStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		returns := features.LogReturns(r.out.Primary)
		key := fitcache.Key(models.StageVolatility, r.fingerprint, returns)
		f, hit, err := fitcache.Do(ctx, e.cache, models.StageVolatility, key, func(ctx context.Context) (fitted[*models.VolatilityAnalysis], error) {
			var out fitted[*models.VolatilityAnalysis]
			res, err := e.an.Volatility.Fit(ctx, returns, r.cfg.VolatilityHorizon)
			if err == nil {
				out.Result, out.Method = res, e.an.Volatility.Method()
				return out, nil
			}
			if ctx.Err() != nil || e.an.VolatilityFallback == nil {
				return out, err
			}
			out.Fallback = fallbackReason(err)
			res, err = e.an.VolatilityFallback.Fit(ctx, returns, r.cfg.VolatilityHorizon)
			out.Result, out.Method = res, e.an.VolatilityFallback.Method()
			return out, err
		})
		if err != nil {
			return err
		}
		m.method, m.fallback, m.cacheHit = f.Method, f.Fallback, hit
		m.insufficient = f.Result.Status == models.StatusInsufficientData
		m.diag("persistence", f.Result.Persistence)
		r.volatility = f.Result
		return nil
	}
}

// SimulationHorizon caps the configured horizon at 30 steps and at a
// quarter of the history.
func SimulationHorizon(configured, points int) int {
	return min(configured, maxSimHorizon, points/4)
}

func (e *Engine) monteCarloStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		m.method = "mean_reverting_walk"
		in := []domsvc.SimInput{{Name: r.out.PrimaryName, Values: r.out.Primary, Reversion: primaryReversion}}
		if len(r.out.Secondary) > 0 {
			in = append(in, domsvc.SimInput{Name: r.out.SecondaryName, Values: r.out.Secondary, Reversion: secondaryReversion})
		}
		res, err := e.an.Simulator.Simulate(ctx, in, domsvc.SimConfig{
			Paths:     r.cfg.Simulations,
			Horizon:   SimulationHorizon(r.cfg.Horizon, len(r.out.Primary)),
			Seed:      r.cfg.Seed,
			Scenarios: r.out.Scenarios,
		})
		if err != nil {
			return err
		}
		m.insufficient = res.Status == models.StatusInsufficientData
		r.monteCarlo = res
		return nil
	}
}

type smoothInput struct {
	name   string
	values []float64
}

func (e *Engine) kalmanStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		inputs := []smoothInput{{r.out.PrimaryName, r.out.Primary}}
		if len(r.out.Secondary) > 0 {
			inputs = append(inputs, smoothInput{r.out.SecondaryName, r.out.Secondary})
		}

		res, err := smoothAll(ctx, e.an.Smoother, inputs)
		if err != nil {
			if ctx.Err() != nil || e.an.SmootherFallback == nil {
				return err
			}
			// Every series is refit so the section reports a single method.
			m.fallback = fallbackReason(err)
			if res, err = smoothAll(ctx, e.an.SmootherFallback, inputs); err != nil {
				return err
			}
		}
		m.method = res.Method
		if len(r.out.Primary) < 2 {
			res.Status = models.StatusInsufficientData
			m.insufficient = true
		}
		if len(res.Series) > 0 {
			m.diag("noise_reduction", res.Series[0].NoiseReduction)
		}
		r.kalman = res
		return nil
	}
}

func smoothAll(ctx context.Context, s domsvc.Smoother, inputs []smoothInput) (*models.KalmanResult, error) {
	res := &models.KalmanResult{Status: models.StatusOK, Method: s.Method()}
	for _, in := range inputs {
		ks, err := s.Smooth(ctx, in.name, in.values)
		if err != nil {
			return nil, err
		}
		res.Series = append(res.Series, ks)
	}
	return res, nil
}

func (e *Engine) anomalyStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		m.method = "isolation_forest"
		opts := r.out.AnomalyTypes
		opts.Seed = r.cfg.Seed + seedOffsetAnomaly
		res, err := e.an.Anomaly.Score(ctx, r.out.Primary, opts)
		if err != nil {
			return err
		}
		m.insufficient = res.Status == models.StatusInsufficientData
		m.diag("score", res.Score)
		r.anomaly = res
		return nil
	}
}

func (e *Engine) forecastStage(r *run) func(context.Context, *stageMeta) error {
	return func(ctx context.Context, m *stageMeta) error {
		m.method = "rf_gbt_ensemble"
		key := fitcache.Key(models.StageForecast, r.fingerprint, r.out.Primary)
		pred, hit, err := fitcache.Do(ctx, e.cache, models.StageForecast, key, func(ctx context.Context) (models.Prediction, error) {
			return e.an.Forecaster.Forecast(ctx, r.out.Primary, r.cfg.ForecastHorizon, r.cfg.ConfidenceLevel, r.cfg.Seed+seedOffsetForecast)
		})
		if err != nil {
			return err
		}
		if pred.Status == "" {
			return errors.New("forecaster returned no status")
		}
		m.cacheHit = hit
		m.insufficient = pred.Status == models.StatusInsufficientData
		m.diag("r2", pred.R2)
		m.diag("residual_std", pred.ResidualStd)
		r.predictions = []models.Prediction{pred}
		return nil
	}
}
