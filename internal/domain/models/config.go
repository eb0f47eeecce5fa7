package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Imputation policies for non-finite values.
const (
	ImputeReject      = "reject"
	ImputeForwardFill = "forward_fill"
	ImputeInterpolate = "interpolate"
)

// AnalysisConfig is the flat option set accepted by every entry point.
// Boolean flags gate the optional result sections independently.
type AnalysisConfig struct {
	ShortWindow    int `json:"short_window" yaml:"short_window" default:"30" validate:"gte=2"`
	LongWindow     int `json:"long_window" yaml:"long_window" default:"60" validate:"gte=3"`
	IssuanceWindow int `json:"issuance_window" yaml:"issuance_window" default:"365" validate:"gte=2"`

	EnableCycleAnalysis      *bool `json:"enable_cycle_analysis,omitempty" yaml:"enable_cycle_analysis" default:"true"`
	EnableRegimeAnalysis     *bool `json:"enable_regime_analysis,omitempty" yaml:"enable_regime_analysis" default:"true"`
	EnableVolatilityAnalysis *bool `json:"enable_volatility_analysis,omitempty" yaml:"enable_volatility_analysis" default:"true"`
	EnableMonteCarlo         *bool `json:"enable_monte_carlo,omitempty" yaml:"enable_monte_carlo" default:"true"`
	EnableKalmanFilter       *bool `json:"enable_kalman_filter,omitempty" yaml:"enable_kalman_filter" default:"true"`
	EnableAnomalyDetection   *bool `json:"enable_anomaly_detection,omitempty" yaml:"enable_anomaly_detection" default:"true"`
	EnableRiskAssessment     *bool `json:"enable_risk_assessment,omitempty" yaml:"enable_risk_assessment" default:"true"`
	EnablePredictions        *bool `json:"enable_predictions,omitempty" yaml:"enable_predictions" default:"true"`

	Regimes           int     `json:"regimes" yaml:"regimes" default:"2" validate:"gte=2,lte=3"`
	Simulations       int     `json:"simulations" yaml:"simulations" default:"1000" validate:"gte=1,lte=100000"`
	Horizon           int     `json:"horizon" yaml:"horizon" default:"30" validate:"gte=1,lte=365"`
	Seed              int64   `json:"seed" yaml:"seed" default:"42"`
	AnomalyThreshold  float64 `json:"anomaly_threshold" yaml:"anomaly_threshold" default:"2.0" validate:"gt=0"`
	ForecastHorizon   int     `json:"forecast_horizon" yaml:"forecast_horizon" default:"7" validate:"gte=1,lte=90"`
	ConfidenceLevel   float64 `json:"confidence_level" yaml:"confidence_level" default:"0.95" validate:"gt=0,lt=1"`
	VolatilityHorizon int     `json:"volatility_horizon" yaml:"volatility_horizon" default:"5" validate:"gte=1,lte=60"`
	Imputation        string  `json:"imputation" yaml:"imputation" default:"forward_fill" validate:"oneof=reject forward_fill interpolate"`
}

func flag(b *bool) bool { return b != nil && *b }

// Bool returns a pointer to v, for building configs in code.
func Bool(v bool) *bool { return &v }

func (c AnalysisConfig) CycleEnabled() bool      { return flag(c.EnableCycleAnalysis) }
func (c AnalysisConfig) RegimeEnabled() bool     { return flag(c.EnableRegimeAnalysis) }
func (c AnalysisConfig) VolatilityEnabled() bool { return flag(c.EnableVolatilityAnalysis) }
func (c AnalysisConfig) MonteCarloEnabled() bool { return flag(c.EnableMonteCarlo) }
func (c AnalysisConfig) KalmanEnabled() bool     { return flag(c.EnableKalmanFilter) }
func (c AnalysisConfig) AnomalyEnabled() bool    { return flag(c.EnableAnomalyDetection) }
func (c AnalysisConfig) RiskEnabled() bool       { return flag(c.EnableRiskAssessment) }
func (c AnalysisConfig) PredictionsEnabled() bool {
	return flag(c.EnablePredictions)
}

// Validate checks ranges and cross-field constraints. Struct tags are
// enforced separately by the validator at the edges; this method repeats
// the checks the engine depends on so that in-process callers are covered.
func (c AnalysisConfig) Validate() error {
	switch {
	case c.ShortWindow < 2:
		return ConfigError("short_window", "must be >= 2, got %d", c.ShortWindow)
	case c.LongWindow <= c.ShortWindow:
		return ConfigError("long_window", "must be greater than short_window (%d >= %d)", c.ShortWindow, c.LongWindow)
	case c.IssuanceWindow < 2:
		return ConfigError("issuance_window", "must be >= 2, got %d", c.IssuanceWindow)
	case c.Regimes < 2 || c.Regimes > 3:
		return ConfigError("regimes", "must be 2 or 3, got %d", c.Regimes)
	case c.Simulations < 1 || c.Simulations > 100000:
		return ConfigError("simulations", "must be in [1, 100000], got %d", c.Simulations)
	case c.Horizon < 1 || c.Horizon > 365:
		return ConfigError("horizon", "must be in [1, 365], got %d", c.Horizon)
	case !(c.AnomalyThreshold > 0) || math.IsInf(c.AnomalyThreshold, 0):
		return ConfigError("anomaly_threshold", "must be a positive finite number, got %v", c.AnomalyThreshold)
	case c.ForecastHorizon < 1 || c.ForecastHorizon > 90:
		return ConfigError("forecast_horizon", "must be in [1, 90], got %d", c.ForecastHorizon)
	case !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1):
		return ConfigError("confidence_level", "must be in (0, 1), got %v", c.ConfidenceLevel)
	case c.VolatilityHorizon < 1 || c.VolatilityHorizon > 60:
		return ConfigError("volatility_horizon", "must be in [1, 60], got %d", c.VolatilityHorizon)
	}
	switch c.Imputation {
	case ImputeReject, ImputeForwardFill, ImputeInterpolate:
	default:
		return ConfigError("imputation", "unknown policy %q", c.Imputation)
	}
	return nil
}

// DefaultAnalysisConfig mirrors the `default` struct tags.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		ShortWindow:              30,
		LongWindow:               60,
		IssuanceWindow:           365,
		EnableCycleAnalysis:      Bool(true),
		EnableRegimeAnalysis:     Bool(true),
		EnableVolatilityAnalysis: Bool(true),
		EnableMonteCarlo:         Bool(true),
		EnableKalmanFilter:       Bool(true),
		EnableAnomalyDetection:   Bool(true),
		EnableRiskAssessment:     Bool(true),
		EnablePredictions:        Bool(true),
		Regimes:                  2,
		Simulations:              1000,
		Horizon:                  30,
		Seed:                     42,
		AnomalyThreshold:         2.0,
		ForecastHorizon:          7,
		ConfidenceLevel:          0.95,
		VolatilityHorizon:        5,
		Imputation:               ImputeForwardFill,
	}
}

// Fingerprint is a stable digest of every option that influences results.
func (c AnalysisConfig) Fingerprint() string {
	s := fmt.Sprintf("%d|%d|%d|%t%t%t%t%t%t%t%t|%d|%d|%d|%d|%g|%d|%g|%d|%s",
		c.ShortWindow, c.LongWindow, c.IssuanceWindow,
		c.CycleEnabled(), c.RegimeEnabled(), c.VolatilityEnabled(), c.MonteCarloEnabled(),
		c.KalmanEnabled(), c.AnomalyEnabled(), c.RiskEnabled(), c.PredictionsEnabled(),
		c.Regimes, c.Simulations, c.Horizon, c.Seed, c.AnomalyThreshold,
		c.ForecastHorizon, c.ConfidenceLevel, c.VolatilityHorizon, c.Imputation)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Clone returns a copy with fresh flag pointers, so decoding a request on
// top of it never writes through to the original.
func (c AnalysisConfig) Clone() AnalysisConfig {
	for _, f := range []**bool{
		&c.EnableCycleAnalysis, &c.EnableRegimeAnalysis, &c.EnableVolatilityAnalysis,
		&c.EnableMonteCarlo, &c.EnableKalmanFilter, &c.EnableAnomalyDetection,
		&c.EnableRiskAssessment, &c.EnablePredictions,
	} {
		if *f != nil {
			*f = Bool(**f)
		}
	}
	return c
}
