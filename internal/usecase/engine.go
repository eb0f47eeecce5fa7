package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
	domsvc "ChainPulse/internal/domain/service"
	fitcache "ChainPulse/internal/service/cache"
	"ChainPulse/internal/services/analytics"
	"ChainPulse/internal/services/features"
	"ChainPulse/internal/services/indicators"
	"ChainPulse/pkg/logger"
)

// Analyzers holds the stage strategies. Stages with a fallback try the
// primary first and record the switch in metadata.
type Analyzers struct {
	Indicators map[models.IndicatorKind]domsvc.Indicator

	Cycle              domsvc.CycleAnalyzer
	Regime             domsvc.RegimeModel
	RegimeFallback     domsvc.RegimeModel
	Volatility         domsvc.VolatilityModel
	VolatilityFallback domsvc.VolatilityModel
	Simulator          domsvc.Simulator
	Smoother           domsvc.Smoother
	SmootherFallback   domsvc.Smoother
	Anomaly            domsvc.AnomalyScorer
	Risk               domsvc.RiskAssessor
	Forecaster         domsvc.Forecaster
}

// DefaultAnalyzers wires the native implementations.
func DefaultAnalyzers() Analyzers {
	return Analyzers{
		Indicators:         indicators.All(),
		Cycle:              analytics.NewSpectralCycles(),
		Regime:             analytics.NewGaussianHMM(),
		RegimeFallback:     analytics.NewThresholdRegimes(),
		Volatility:         analytics.NewGARCH(),
		VolatilityFallback: analytics.NewRollingVolatility(),
		Simulator:          analytics.NewRandomWalkSimulator(),
		Smoother:           analytics.NewLocalTrendKalman(),
		SmootherFallback:   analytics.NewFixedGainFilter(),
		Anomaly:            analytics.NewIsolationForest(),
		Risk:               analytics.NewCompositeRisk(),
		Forecaster:         analytics.NewTreeEnsemble(),
	}
}

// EngineOptions bounds one analysis call.
type EngineOptions struct {
	Workers int
	Timeout time.Duration
}

// Engine runs one indicator front-end and fans the shared stages out over a
// bounded worker group. It holds no per-call state; the fit cache is the only
// thing shared between calls.
type Engine struct {
	an      Analyzers
	cache   *fitcache.FitCache
	metrics domrepo.Metrics
	log     *logger.Logger
	workers int
	timeout time.Duration
}

func NewEngine(an Analyzers, fc *fitcache.FitCache, m domrepo.Metrics, l *logger.Logger, opts EngineOptions) *Engine {
	if m == nil {
		m = domrepo.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Engine{
		an:      an,
		cache:   fc,
		metrics: m,
		log:     l.With(logger.Component("engine")),
		workers: opts.Workers,
		timeout: opts.Timeout,
	}
}

func (e *Engine) AnalyzeHashRibbon(ctx context.Context, series models.Series, cfg models.AnalysisConfig) (*models.Analysis, error) {
	return e.Analyze(ctx, models.KindHashRibbon, series, cfg)
}

func (e *Engine) AnalyzeIssuanceMultiple(ctx context.Context, series models.Series, cfg models.AnalysisConfig) (*models.Analysis, error) {
	return e.Analyze(ctx, models.KindIssuanceMultiple, series, cfg)
}

func (e *Engine) AnalyzeHODLWaves(ctx context.Context, series models.Series, cfg models.AnalysisConfig) (*models.Analysis, error) {
	return e.Analyze(ctx, models.KindHODLWaves, series, cfg)
}

// Analyze validates, prepares and analyzes series. It returns either a
// complete Analysis or one error: a fatal InvalidInput/ConfigurationError,
// or the context error when the deadline passes. Partial results are
// discarded.
func (e *Engine) Analyze(ctx context.Context, kind models.IndicatorKind, series models.Series, cfg models.AnalysisConfig) (*models.Analysis, error) {
	start := time.Now()
	res, err := e.analyze(ctx, kind, series, cfg, start)

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		status = "timeout"
		e.metrics.RecordError("timeout")
	default:
		status = "rejected"
		if k := models.KindOf(err); k != "" {
			e.metrics.RecordError(string(k))
		} else {
			e.metrics.RecordError("internal")
		}
	}
	e.metrics.ObserveAnalysis(string(kind), status, time.Since(start).Seconds())
	return res, err
}

func (e *Engine) analyze(ctx context.Context, kind models.IndicatorKind, series models.Series, cfg models.AnalysisConfig, start time.Time) (*models.Analysis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ind, ok := e.an.Indicators[kind]
	if !ok {
		return nil, models.InvalidInput("kind", "unsupported indicator kind %q", kind)
	}
	prepared, err := features.Prepare(series, indicators.PrepareOptionsFor(kind, cfg.Imputation))
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := ind.Compute(ctx, prepared, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s front-end: %w", kind, err)
	}

	r := &run{
		cfg:         cfg,
		fingerprint: cfg.Fingerprint(),
		out:         out,
		meta:        make(map[string]*stageMeta),
	}
	stages := e.stages(r)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, st := range stages {
		if !st.enabled {
			continue
		}
		st := st
		m := r.slot(st.name)
		g.Go(func() error { return e.runStage(gctx, st, m) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := r.assemble(kind, prepared)
	if cfg.RiskEnabled() {
		st := stage{
			name:    models.StageRisk,
			enabled: true,
			run: func(_ context.Context, m *stageMeta) error {
				res.RiskAssessment = e.an.Risk.Assess(out.Risk)
				m.method = "composite"
				return nil
			},
			degrade: func() { res.RiskAssessment = nil },
		}
		if err := e.runStage(ctx, st, r.slot(models.StageRisk)); err != nil {
			return nil, err
		}
	}

	res.Recommendations = analytics.Recommend(analytics.RecommendInput{
		Indicator:  out,
		Regime:     res.RegimeAnalysis,
		Volatility: res.VolatilityAnalysis,
		Risk:       res.RiskAssessment,
		Anomaly:    res.AnomalyDetection,
		Cycle:      res.CycleAnalysis,
	})
	res.OverallConfidence = analytics.OverallConfidence(out.Confidence, res.Predictions, res.RiskAssessment)
	res.Metadata = r.metadata(prepared, out)
	res.Metadata.DurationMs = time.Since(start).Milliseconds()

	e.log.Debug("analysis complete",
		logger.String("kind", string(kind)),
		logger.Int("points", prepared.Len()),
		logger.Strings("cache_hits", res.Metadata.CacheHits),
		logger.Int64("duration_ms", res.Metadata.DurationMs),
	)
	return res, nil
}

// stage is one unit of the fan-out. run writes only to its own result slot
// and meta; degrade installs the neutral output after a panic.
type stage struct {
	name    string
	enabled bool
	run     func(ctx context.Context, m *stageMeta) error
	degrade func()
}

type stageMeta struct {
	method       string
	fallback     string
	insufficient bool
	cacheHit     bool
	err          string
	diagnostics  map[string]float64
}

func (m *stageMeta) diag(key string, v float64) {
	if m.diagnostics == nil {
		m.diagnostics = make(map[string]float64)
	}
	m.diagnostics[key] = v
}

// runStage isolates one stage. Panics and non-context errors become a
// degraded output plus an error note; only context errors propagate.
func (e *Engine) runStage(ctx context.Context, st stage, m *stageMeta) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			m.err = fmt.Sprintf("panic: %v", rec)
			st.degrade()
			e.metrics.RecordError("stage_panic")
			e.log.Error("stage panicked", logger.String("stage", st.name), logger.Any("panic", rec))
			err = nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	runErr := st.run(ctx, m)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.err = runErr.Error()
		st.degrade()
		e.log.Warn("stage failed", logger.String("stage", st.name), logger.Error(runErr))
	}
	if m.fallback != "" {
		e.metrics.RecordFallback(st.name, m.fallback)
		e.log.Warn("stage fell back",
			logger.String("stage", st.name),
			logger.String("method", m.method),
			logger.String("reason", m.fallback),
		)
	}
	elapsed := time.Since(start)
	e.metrics.ObserveStage(st.name, m.method, elapsed.Seconds())
	e.log.Debug("stage done",
		logger.String("stage", st.name),
		logger.String("method", m.method),
		logger.Bool("cache_hit", m.cacheHit),
		logger.Duration("duration", elapsed),
	)
	return nil
}

// run carries one call's result slots. Every slot is written by exactly
// one stage goroutine and read only after the barrier.
type run struct {
	cfg         models.AnalysisConfig
	fingerprint string
	out         *domsvc.IndicatorOutput
	meta        map[string]*stageMeta

	cycle       *models.CycleAnalysis
	regime      *models.RegimeAnalysis
	volatility  *models.VolatilityAnalysis
	monteCarlo  *models.MonteCarloResult
	kalman      *models.KalmanResult
	anomaly     *models.AnomalyDetection
	predictions []models.Prediction
}

// slot is called before any goroutine starts, so the map is never written
// concurrently.
func (r *run) slot(name string) *stageMeta {
	if m, ok := r.meta[name]; ok {
		return m
	}
	m := &stageMeta{}
	r.meta[name] = m
	return m
}

func (r *run) assemble(kind models.IndicatorKind, p *models.PreparedSeries) *models.Analysis {
	out := r.out
	res := &models.Analysis{
		Kind:               kind,
		Points:             p.Len(),
		HashRibbon:         out.HashRibbon,
		IssuanceMultiple:   out.IssuanceMultiple,
		HODLWaves:          out.HODLWaves,
		CycleAnalysis:      r.cycle,
		RegimeAnalysis:     r.regime,
		VolatilityAnalysis: r.volatility,
		MonteCarlo:         r.monteCarlo,
		Kalman:             r.kalman,
		AnomalyDetection:   r.anomaly,
		Predictions:        r.predictions,
	}
	if n := len(p.Timestamps); n > 0 {
		res.Timestamp = p.Timestamps[n-1]
	}
	if im := out.IssuanceMultiple; im != nil {
		indicators.AttachSpectralCycle(im.ProfitabilityCycles, r.cycle)
	}
	if r.cfg.AnomalyEnabled() {
		res.Anomalies = append([]models.AnomalyRecord{}, out.Anomalies...)
	}
	return res
}

func (r *run) metadata(p *models.PreparedSeries, out *domsvc.IndicatorOutput) models.Metadata {
	md := models.Metadata{
		Fallbacks:    map[string]string{},
		Methods:      map[string]string{},
		Diagnostics:  map[string]float64{},
		Errors:       map[string]string{},
		Imputed:      p.Imputed,
		ConfigDigest: r.fingerprint,
	}
	// out.Proxies already carries the preparation proxies.
	md.Proxies = append(md.Proxies, out.Proxies...)

	names := make([]string, 0, len(r.meta))
	for name := range r.meta {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := r.meta[name]
		if m.method != "" {
			md.Methods[name] = m.method
		}
		if m.fallback != "" {
			md.Fallbacks[name] = m.fallback
		}
		if m.insufficient {
			md.InsufficientData = append(md.InsufficientData, name)
		}
		if m.cacheHit {
			md.CacheHits = append(md.CacheHits, name)
		}
		if m.err != "" {
			md.Errors[name] = m.err
		}
		for k, v := range m.diagnostics {
			md.Diagnostics[name+"."+k] = v
		}
	}
	return md
}
