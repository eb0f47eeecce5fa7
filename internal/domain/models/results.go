package models

import "time"

// Stage status values.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// Stage names, used for metadata, metrics and cache keys.
const (
	StageIndicator  = "indicator"
	StageCycle      = "cycle"
	StageRegime     = "regime"
	StageVolatility = "volatility"
	StageMonteCarlo = "monte_carlo"
	StageKalman     = "kalman"
	StageAnomaly    = "anomaly"
	StageRisk       = "risk"
	StageForecast   = "forecast"
)

// Ribbon signals.
const (
	SignalStrongBullish    = "strong_bullish"
	SignalBullish          = "bullish"
	SignalNeutral          = "neutral"
	SignalBearish          = "bearish"
	SignalStrongBearish    = "strong_bearish"
	SignalInsufficientData = "insufficient_data"
)

// Analysis is the single structured record returned by every entry point.
// Optional sections are nil when disabled; they serialize as null.
type Analysis struct {
	Kind      IndicatorKind `json:"kind"`
	Asset     string        `json:"asset,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Points    int           `json:"points"`

	HashRibbon       *HashRibbonResult       `json:"hash_ribbon,omitempty"`
	IssuanceMultiple *IssuanceMultipleResult `json:"issuance_multiple,omitempty"`
	HODLWaves        *HODLWaveResult         `json:"hodl_waves,omitempty"`

	CycleAnalysis      *CycleAnalysis      `json:"cycle_analysis"`
	RegimeAnalysis     *RegimeAnalysis     `json:"regime_analysis"`
	VolatilityAnalysis *VolatilityAnalysis `json:"volatility_analysis"`
	MonteCarlo         *MonteCarloResult   `json:"monte_carlo_analysis"`
	Kalman             *KalmanResult       `json:"kalman_analysis"`
	AnomalyDetection   *AnomalyDetection   `json:"anomaly_detection"`
	Anomalies          []AnomalyRecord     `json:"anomalies"`
	RiskAssessment     *RiskAssessment     `json:"risk_assessment"`
	Predictions        []Prediction        `json:"predictions"`
	Recommendations    []string            `json:"recommendations"`

	OverallConfidence float64  `json:"overall_confidence"`
	Metadata          Metadata `json:"metadata"`
}

// ProxyUse records a field synthesized from another field.
type ProxyUse struct {
	Field  string `json:"field"`
	Source string `json:"source"`
}

// Metadata records which code paths produced the result.
type Metadata struct {
	Fallbacks        map[string]string  `json:"fallbacks,omitempty"`
	Methods          map[string]string  `json:"methods,omitempty"`
	Proxies          []ProxyUse         `json:"proxies,omitempty"`
	InsufficientData []string           `json:"insufficient_data,omitempty"`
	Diagnostics      map[string]float64 `json:"diagnostics,omitempty"`
	CacheHits        []string           `json:"cache_hits,omitempty"`
	Errors           map[string]string  `json:"errors,omitempty"`
	Imputed          int                `json:"imputed"`
	ConfigDigest     string             `json:"config_digest"`
	DurationMs       int64              `json:"duration_ms"`
}

// HashRibbonResult is the hash-rate moving-average cross indicator.
type HashRibbonResult struct {
	ShortMA        []float64 `json:"short_ma"`
	LongMA         []float64 `json:"long_ma"`
	CurrentShortMA float64   `json:"current_short_ma"`
	CurrentLongMA  float64   `json:"current_long_ma"`
	CurrentValue   float64   `json:"current_hash_rate"`
	Signal         string    `json:"ribbon_signal"`
	Strength       float64   `json:"ribbon_strength"`
	BuySignal      string    `json:"buy_signal"`
	Capitulation   bool      `json:"capitulation"`
	HashRateTrend  string    `json:"hash_rate_trend"`
	MiningHealth   string    `json:"mining_health"`

	MinerBehavior        MinerBehavior        `json:"miner_behavior"`
	NetworkHealth        NetworkHealth        `json:"network_health"`
	MiningEconomics      HashMiningEconomics  `json:"mining_economics"`
	DifficultyRibbon     DifficultyRibbon     `json:"difficulty_ribbon"`
	DifficultyAdjustment DifficultyAdjustment `json:"difficulty_adjustment"`
}

// MinerBehavior summarizes miner reaction proxies derived from hash rate and price.
type MinerBehavior struct {
	CapitulationScore      float64            `json:"capitulation_score"`
	RecoveryStrength       float64            `json:"recovery_strength"`
	EfficiencyTrend        float64            `json:"efficiency_trend"`
	ProfitabilityPressure  float64            `json:"profitability_pressure"`
	StabilityIndex         float64            `json:"stability_index"`
	AdaptationSpeed        float64            `json:"adaptation_speed"`
	PoolConcentration      float64            `json:"pool_concentration"`
	GeographicDistribution map[string]float64 `json:"geographic_distribution"`
}

// NetworkHealth captures security and decentralization proxies.
type NetworkHealth struct {
	SecurityScore            float64 `json:"security_score"`
	DecentralizationIndex    float64 `json:"decentralization_index"`
	ResilienceFactor         float64 `json:"resilience_factor"`
	GeographicDiversity      float64 `json:"geographic_diversity"`
	RegulatoryRiskScore      float64 `json:"regulatory_risk_score"`
	EnergySustainability     float64 `json:"energy_sustainability"`
	TechnologicalAdvancement float64 `json:"technological_advancement"`
	InfrastructureQuality    float64 `json:"infrastructure_quality"`
}

// HashMiningEconomics is the profitability block of the hash ribbon result.
type HashMiningEconomics struct {
	BreakEvenPrice           float64 `json:"break_even_price"`
	ProfitMargin             float64 `json:"profit_margin"`
	CapexCycle               string  `json:"capital_expenditure_cycle"`
	CompetitiveLandscape     string  `json:"competitive_landscape"`
	RewardSustainability     float64 `json:"mining_reward_sustainability"`
	HardwareObsolescenceRate float64 `json:"hardware_obsolescence_rate"`
}

// DifficultyRibbon is the multi-MA view of difficulty.
type DifficultyRibbon struct {
	MovingAverages map[string]float64 `json:"moving_averages"`
	Compression    float64            `json:"compression"`
	Width          float64            `json:"width"`
	Signal         string             `json:"signal"`
	Trend          string             `json:"trend"`
}

// DifficultyAdjustment describes the latest adjustment window.
type DifficultyAdjustment struct {
	CurrentDifficulty float64 `json:"current_difficulty"`
	Change            float64 `json:"change"`
	ImpliedBlockTime  float64 `json:"implied_block_time_minutes"`
	MiningPressure    float64 `json:"mining_pressure"`
	FeeMarket         string  `json:"fee_market"`
}

// IssuanceMultipleResult is the Puell-style issuance multiple.
type IssuanceMultipleResult struct {
	Current          float64            `json:"puell_multiple"`
	Percentile       float64            `json:"puell_percentile"`
	Bands            *PercentileBands   `json:"puell_bands"`
	MarketCyclePhase string             `json:"market_cycle_phase"`
	Signal           string             `json:"signal"`
	Profitability    string             `json:"mining_profitability"`
	History          []float64          `json:"historical_puell"`
	Economics        IssuanceEconomics  `json:"mining_economics"`
	Statistics       IssuanceStatistics `json:"statistics"`
	Halving          HalvingEffects     `json:"halving_effects_analysis"`

	// Both need at least ten points of history; nil below that.
	ProfitabilityCycles *ProfitabilityCycles `json:"mining_profitability_cycles"`
	SupplyShock         *SupplyShock         `json:"supply_shock_analysis"`
}

// IssuanceStatistics describes the multiple history and how it moves with
// the other columns. Correlations are nil when the column was not supplied.
type IssuanceStatistics struct {
	Volatility            float64  `json:"puell_volatility"`
	MaxDrawdown           float64  `json:"max_drawdown"`
	TrendCorrelation      float64  `json:"trend_correlation"`
	PriceCorrelation      *float64 `json:"price_correlation"`
	DifficultyCorrelation *float64 `json:"difficulty_correlation"`
}

// HalvingEffects compares the multiple around block subsidy halvings.
type HalvingEffects struct {
	LastHalving        *time.Time `json:"last_halving,omitempty"`
	NextHalving        time.Time  `json:"next_halving"`
	DaysSinceHalving   int        `json:"days_since_halving"`
	DaysToNextHalving  int        `json:"days_to_next_halving"`
	CyclePosition      float64    `json:"cycle_position"`
	Phase              string     `json:"halving_cycle_phase"`
	HalvingsObserved   int        `json:"halvings_observed"`
	PreHalvingMean     float64    `json:"pre_halving_avg"`
	PostHalvingMean    float64    `json:"post_halving_avg"`
	ImpactMagnitude    float64    `json:"halving_impact_magnitude"`
	ExpectedNextImpact float64    `json:"expected_next_halving_impact"`
}

// ProfitabilityCycles segments the history into high/neutral/low runs split
// at the 80th and 20th percentiles. The spectral fields are filled from the
// cycle stage when it ran.
type ProfitabilityCycles struct {
	CurrentState       string               `json:"current_profitability_state"`
	Phases             []ProfitabilityPhase `json:"profitability_phases"`
	AvgPhaseDuration   float64              `json:"avg_cycle_duration"`
	Volatility         float64              `json:"cycle_volatility"`
	Strength           float64              `json:"profit_cycle_strength"`
	DominantPeriodDays float64              `json:"dominant_period_days,omitempty"`
	SpectralPhase      string               `json:"spectral_phase,omitempty"`
}

type ProfitabilityPhase struct {
	Phase    string `json:"phase"`
	Start    int    `json:"start_index"`
	End      int    `json:"end_index"`
	Duration int    `json:"duration"`
}

// SupplyShock grades how far the current multiple sits in the tails.
type SupplyShock struct {
	Intensity        string  `json:"supply_shock_intensity"`
	Magnitude        float64 `json:"shock_magnitude"`
	Ratio            float64 `json:"supply_shock_ratio"`
	MarketImpact     string  `json:"market_impact_assessment"`
	RecoveryDays     int     `json:"recovery_timeline_days"`
	HistoricalShocks int     `json:"historical_shock_frequency"`
	Persistence      float64 `json:"shock_persistence_score"`
}

// PercentileBands are strictly increasing: Bottom < Low < Fair < High < Top.
type PercentileBands struct {
	Bottom float64 `json:"bottom"`
	Low    float64 `json:"low"`
	Fair   float64 `json:"fair"`
	High   float64 `json:"high"`
	Top    float64 `json:"top"`
}

// IssuanceEconomics is derived from the multiple history.
type IssuanceEconomics struct {
	EfficiencyScore       float64 `json:"mining_efficiency_score"`
	CapitulationRisk      float64 `json:"miner_capitulation_risk"`
	HashRateCorrelation   float64 `json:"hash_rate_correlation"`
	NetworkSecurityScore  float64 `json:"network_security_score"`
	RevenueSustainability string  `json:"miner_revenue_sustainability"`
}

// HODL age buckets in display order.
var HODLBuckets = []string{"<1m", "1-3m", "3-6m", "6-12m", ">1y"}

// HODLWaveResult is the age-cohort distribution analysis.
type HODLWaveResult struct {
	Distribution        map[string]float64 `json:"age_distribution"`
	Strength            float64            `json:"hodl_strength"`
	LongTermHolderRatio float64            `json:"long_term_holder_ratio"`
	RecentActivityRatio float64            `json:"recent_activity_ratio"`
	SupplyMaturity      string             `json:"supply_maturity"`
	Trend               string             `json:"hodl_trend"`
	StrengthHistory     []float64          `json:"hodl_strength_history"`
	Snapshots           int                `json:"snapshots"`
	HolderBehavior      HolderBehavior     `json:"lth_behavior"`

	// Computed from the individual outputs of the latest snapshot; nil when
	// it holds no positive value.
	Cohorts *CohortAnalysis     `json:"age_cohorts"`
	Supply  *SupplyDistribution `json:"supply_distribution"`
}

// Granular cohort labels in display order.
var CohortLabels = []string{
	"1d_7d", "1w_1m", "1m_3m", "3m_6m", "6m_1y", "1y_2y",
	"2y_3y", "3y_5y", "5y_7y", "7y_10y", "10y_plus",
}

// CohortAnalysis is the value-weighted age profile of one snapshot.
// Ages are in days.
type CohortAnalysis struct {
	Shares             map[string]float64 `json:"cohorts"`
	AverageCoinAge     float64            `json:"average_coin_age"`
	MedianCoinAge      float64            `json:"median_coin_age"`
	CoinAgeVariance    float64            `json:"coin_age_variance"`
	Entropy            float64            `json:"age_distribution_entropy"`
	ConcentrationIndex float64            `json:"age_concentration_index"`
	EmergingStrength   float64            `json:"emerging_cohort_strength"`
	MatureDominance    float64            `json:"mature_cohort_dominance"`
}

// SupplyDistribution measures how value is spread across outputs.
type SupplyDistribution struct {
	Gini                float64            `json:"gini_coefficient"`
	Herfindahl          float64            `json:"herfindahl_index"`
	Entropy             float64            `json:"supply_entropy"`
	NakamotoCoefficient int                `json:"nakamoto_coefficient"`
	Velocity            float64            `json:"supply_velocity"`
	StagnationRatio     float64            `json:"supply_stagnation_ratio"`
	Dormancy            map[string]float64 `json:"supply_dormancy_periods"`
	HealthScore         float64            `json:"distribution_health_score"`
	CentralizationRisk  float64            `json:"centralization_risk_score"`
	ShockResistance     float64            `json:"supply_shock_resistance"`
}

// HolderBehavior summarizes long-term holder positioning.
type HolderBehavior struct {
	AccumulationPhase    string  `json:"accumulation_phase"`
	CyclePosition        string  `json:"cycle_position"`
	HodlingStrength      float64 `json:"hodling_strength"`
	SellingPressure      float64 `json:"selling_pressure"`
	SupplyShockPotential float64 `json:"supply_shock_potential"`
}

// CycleAnalysis is the spectral/wavelet cycle diagnosis.
type CycleAnalysis struct {
	Status             string              `json:"status"`
	DominantPeriod     float64             `json:"dominant_period"`
	DominantPeriodDays float64             `json:"dominant_period_days"`
	Strength           float64             `json:"strength"`
	Position           float64             `json:"position"`
	Phase              string              `json:"phase"`
	NextPeak           *time.Time          `json:"next_peak,omitempty"`
	NextTrough         *time.Time          `json:"next_trough,omitempty"`
	Components         []SpectralComponent `json:"spectral_components,omitempty"`
	HarmonicContent    float64             `json:"harmonic_content"`
	Wavelet            *WaveletEnergies    `json:"wavelet,omitempty"`
}

// SpectralComponent is one FFT bin.
type SpectralComponent struct {
	Period float64 `json:"period"`
	Power  float64 `json:"power"`
	Share  float64 `json:"share"`
}

// WaveletEnergies is a multi-level Haar decomposition summary.
type WaveletEnergies struct {
	Approximation float64   `json:"approximation_energy"`
	Details       []float64 `json:"detail_energies"`
	Total         float64   `json:"total_energy"`
}

// RegimeAnalysis is the hidden-state regime diagnosis.
type RegimeAnalysis struct {
	Status        string        `json:"status"`
	Method        string        `json:"method"`
	CurrentRegime int           `json:"current_regime"`
	CurrentLabel  string        `json:"current_label"`
	Probabilities []float64     `json:"probabilities"`
	Regimes       []RegimeStats `json:"regimes"`
	Transition    [][]float64   `json:"transition_matrix"`
	Persistence   float64       `json:"persistence"`
	LogLikelihood float64       `json:"log_likelihood,omitempty"`
}

// RegimeStats describes one latent regime.
type RegimeStats struct {
	ID               int     `json:"id"`
	Label            string  `json:"label"`
	Mean             float64 `json:"mean"`
	Volatility       float64 `json:"volatility"`
	ExpectedDuration float64 `json:"expected_duration"`
}

// VolatilityAnalysis is the conditional-volatility diagnosis.
type VolatilityAnalysis struct {
	Status             string    `json:"status"`
	Method             string    `json:"method"`
	Current            float64   `json:"current_volatility"`
	Forecast           []float64 `json:"forecast"`
	Omega              float64   `json:"omega"`
	Alpha              float64   `json:"alpha"`
	Beta               float64   `json:"beta"`
	Persistence        float64   `json:"persistence"`
	Regime             string    `json:"regime"`
	Clustering         float64   `json:"clustering"`
	ClusteringDetected bool      `json:"clustering_detected"`
}

// MonteCarloResult is the forward path simulation summary.
type MonteCarloResult struct {
	Status         string             `json:"status"`
	Simulations    int                `json:"simulations"`
	Horizon        int                `json:"horizon"`
	Seed           int64              `json:"seed"`
	Series         []SimulatedSeries  `json:"series"`
	Scenarios      map[string]float64 `json:"scenarios"`
	StressExtremes map[string]float64 `json:"stress_extremes"`
	RiskMetrics    map[string]float64 `json:"risk_metrics"`
}

// SimulatedSeries holds the per-step statistics of one simulated series.
type SimulatedSeries struct {
	Name     string          `json:"name"`
	Current  float64         `json:"current"`
	Drift    float64         `json:"drift"`
	Vol      float64         `json:"volatility"`
	MeanPath []float64       `json:"mean_path"`
	Bands    map[string]Band `json:"bands"`
	Terminal TerminalSummary `json:"terminal"`
}

// Band is a confidence band with Lower[t] <= mean[t] <= Upper[t].
type Band struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// TerminalSummary describes the distribution of terminal values.
type TerminalSummary struct {
	Mean        float64            `json:"mean"`
	Std         float64            `json:"std"`
	Median      float64            `json:"median"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// KalmanResult holds the denoised series.
type KalmanResult struct {
	Status string         `json:"status"`
	Method string         `json:"method"`
	Series []KalmanSeries `json:"series"`
}

// KalmanSeries is the state-space output for one input series.
type KalmanSeries struct {
	Name           string    `json:"name"`
	Filtered       []float64 `json:"filtered"`
	Smoothed       []float64 `json:"smoothed"`
	Trend          []float64 `json:"trend"`
	NoiseReduction float64   `json:"noise_reduction"`
	CurrentTrend   float64   `json:"current_trend"`
}

// AnomalyDetection is the isolation-forest summary of the latest point.
type AnomalyDetection struct {
	Status     string         `json:"status"`
	Score      float64        `json:"anomaly_score"`
	IsAnomaly  bool           `json:"is_anomaly"`
	Type       string         `json:"anomaly_type,omitempty"`
	Severity   string         `json:"severity"`
	Context    string         `json:"context"`
	Historical []FlaggedPoint `json:"historical_anomalies"`
}

// FlaggedPoint is one historically flagged observation.
type FlaggedPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Score float64 `json:"score"`
	Type  string  `json:"type"`
}

// AnomalyRecord is a rule-based anomaly with cause attribution.
type AnomalyRecord struct {
	Score           float64  `json:"anomaly_score"`
	IsAnomaly       bool     `json:"is_anomaly"`
	Type            string   `json:"anomaly_type"`
	Severity        string   `json:"severity"`
	AffectedMetrics []string `json:"affected_metrics,omitempty"`
	Causes          []string `json:"potential_causes"`
}

// RiskAssessment is the composite risk view.
type RiskAssessment struct {
	Overall     float64            `json:"overall_risk"`
	SubScores   map[string]float64 `json:"sub_scores"`
	Mitigation  []string           `json:"mitigation"`
	StressTests map[string]float64 `json:"stress_tests"`
}

// Prediction is one ensemble forecast.
type Prediction struct {
	Status              string                        `json:"status"`
	Horizon             int                           `json:"horizon"`
	Value               float64                       `json:"predicted_value"`
	Lower               float64                       `json:"lower"`
	Upper               float64                       `json:"upper"`
	Confidence          float64                       `json:"model_confidence"`
	ModelPredictions    map[string]float64            `json:"model_predictions,omitempty"`
	FeatureImportance   map[string]map[string]float64 `json:"feature_importance,omitempty"`
	R2                  float64                       `json:"r2"`
	ResidualStd         float64                       `json:"residual_std"`
	Trend               string                        `json:"trend"`
	TrendScore          float64                       `json:"trend_score"`
	MeanReversionScore  float64                       `json:"mean_reversion_score"`
	ReversalProbability float64                       `json:"reversal_probability"`
}
