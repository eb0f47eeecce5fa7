package service

import (
	"context"
	"time"

	"ChainPulse/internal/domain/models"
)

// IndicatorOutput is what a front-end hands to the shared analytics.
type IndicatorOutput struct {
	HashRibbon       *models.HashRibbonResult
	IssuanceMultiple *models.IssuanceMultipleResult
	HODLWaves        *models.HODLWaveResult

	// Primary is the series the shared stages run on.
	Primary     []float64
	PrimaryName string
	// Secondary is simulated jointly with Primary when present.
	Secondary     []float64
	SecondaryName string
	Timestamps    []time.Time

	// Direction is bullish, bearish or neutral, for recommendations.
	Direction  string
	Signal     string
	Confidence float64
	Risk       RiskInputs
	Anomalies  []models.AnomalyRecord
	Proxies    []models.ProxyUse
	// Notes are indicator-specific recommendation lines, highest priority first.
	Notes []string
	// Scenarios names the indicator-specific Monte Carlo thresholds.
	Scenarios []Scenario
	// AnomalyTypes sets the type boundaries for the anomaly stage.
	AnomalyTypes AnomalyOptions
}

// Indicator is one of the three front-ends.
type Indicator interface {
	Kind() models.IndicatorKind
	Compute(ctx context.Context, s *models.PreparedSeries, cfg models.AnalysisConfig) (*IndicatorOutput, error)
}

// RiskInputs are raw factor values in [0,1] plus stress-test drivers.
type RiskInputs struct {
	Centralization float64
	Security       float64
	Economics      float64
	Regulatory     float64
	Technology     float64
	Environmental  float64

	HasPrice              bool
	EfficiencyTrend       float64
	StabilityIndex        float64
	RegionalExposure      float64
	AdaptationSpeed       float64
	ProfitabilityPressure float64
}

// Scenario counts simulated paths whose terminal ratio to the current value
// crosses Threshold. Above selects > Threshold, otherwise < Threshold.
type Scenario struct {
	Name      string
	Series    int
	Threshold float64
	Above     bool
}

// CycleAnalyzer finds the dominant cycle of a series.
type CycleAnalyzer interface {
	Analyze(ctx context.Context, values []float64, ts []time.Time) (*models.CycleAnalysis, error)
}

// RegimeModel classifies latent regimes over log-returns.
type RegimeModel interface {
	Method() string
	Fit(ctx context.Context, returns []float64, regimes int) (*models.RegimeAnalysis, error)
}

// VolatilityModel estimates conditional volatility over log-returns.
type VolatilityModel interface {
	Method() string
	Fit(ctx context.Context, returns []float64, horizon int) (*models.VolatilityAnalysis, error)
}

// SimInput is one series for joint simulation.
type SimInput struct {
	Name      string
	Values    []float64
	Reversion float64
}

// SimConfig controls a simulation run.
type SimConfig struct {
	Paths     int
	Horizon   int
	Seed      int64
	Scenarios []Scenario
}

// Simulator runs seeded forward path simulations.
type Simulator interface {
	Simulate(ctx context.Context, in []SimInput, cfg SimConfig) (*models.MonteCarloResult, error)
}

// Smoother separates trend from noise.
type Smoother interface {
	Method() string
	Smooth(ctx context.Context, name string, values []float64) (models.KalmanSeries, error)
}

// AnomalyOptions seeds the scorer and sets the type boundaries. Values
// above High are typed High and below Low are typed Low. With Relative the
// bounds apply to the deviation from the trailing mean instead of the value.
type AnomalyOptions struct {
	Seed     int64
	High     float64
	Low      float64
	Relative bool
}

// AnomalyScorer scores the latest observation against history.
type AnomalyScorer interface {
	Score(ctx context.Context, values []float64, opts AnomalyOptions) (*models.AnomalyDetection, error)
}

// RiskAssessor combines factor inputs into a composite assessment.
type RiskAssessor interface {
	Assess(in RiskInputs) *models.RiskAssessment
}

// Forecaster predicts horizon steps ahead.
type Forecaster interface {
	Forecast(ctx context.Context, values []float64, horizon int, confidence float64, seed int64) (models.Prediction, error)
}
