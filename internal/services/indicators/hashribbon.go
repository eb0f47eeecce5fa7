package indicators

import (
	"context"
	"math"

	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	trendWindow       = 14
	neutralStrength   = 0.3
	capitulationDrop  = -0.15
	difficultyFloor   = -0.05
	divergenceAnomaly = 0.9
)

// HashRibbon compares short and long trailing means of hash rate.
type HashRibbon struct{}

var _ service.Indicator = HashRibbon{}

func (HashRibbon) Kind() models.IndicatorKind { return models.KindHashRibbon }

// HashRibbonProxies is the proxy chain applied before Compute.
var HashRibbonProxies = []features.ProxyRule{
	{Field: models.FieldHashRate, Source: models.FieldPrice, Scale: 1},
	{Field: models.FieldDifficulty, Source: models.FieldHashRate, Scale: 1e-6},
}

func (HashRibbon) Compute(_ context.Context, s *models.PreparedSeries, cfg models.AnalysisConfig) (*service.IndicatorOutput, error) {
	hr, ok := s.Column(models.FieldHashRate)
	if !ok {
		return nil, models.InvalidInput(models.FieldHashRate, "hash rate missing and no price to derive it from")
	}
	diff, _ := s.Column(models.FieldDifficulty)
	price, hasPrice := s.Column(models.FieldPrice)

	res := &models.HashRibbonResult{
		ShortMA: features.TrailingMean(hr, cfg.ShortWindow),
		LongMA:  features.TrailingMean(hr, cfg.LongWindow),
	}
	res.CurrentShortMA = features.Last(res.ShortMA)
	res.CurrentLongMA = features.Last(res.LongMA)
	res.CurrentValue = features.Last(hr)
	res.Signal, res.Strength = RibbonSignal(res.CurrentValue, res.CurrentShortMA, res.CurrentLongMA, len(hr), cfg.LongWindow)

	if res.CurrentShortMA > res.CurrentLongMA {
		res.BuySignal = "Buy Signal - Hash Rate Recovery"
	} else {
		res.BuySignal = "Sell Signal - Hash Rate Decline"
	}
	hrChange := windowChange(hr, trendWindow)
	diffChange := windowChange(diff, trendWindow)
	res.Capitulation = hrChange < capitulationDrop && diffChange > difficultyFloor
	res.HashRateTrend = HashRateTrend(hr)
	res.MiningHealth = miningHealth(res.CurrentShortMA > res.CurrentLongMA, res.Capitulation, res.HashRateTrend)

	out := &service.IndicatorOutput{
		HashRibbon:    res,
		Primary:       hr,
		PrimaryName:   models.FieldHashRate,
		Secondary:     diff,
		SecondaryName: models.FieldDifficulty,
		Timestamps:    s.Timestamps,
		Signal:        res.Signal,
		Direction:     direction(res.Signal),
		Proxies:       s.Proxies,
	}
	if !hasPrice {
		price = nil
		out.Proxies = append(out.Proxies, models.ProxyUse{Field: models.FieldPrice, Source: "neutral"})
	}

	res.MinerBehavior = analyzeMinerBehavior(hr, price)
	res.NetworkHealth = analyzeNetworkHealth(hr, res.MinerBehavior)
	res.MiningEconomics = analyzeMiningEconomics(price, res.MinerBehavior)
	res.DifficultyRibbon = analyzeDifficultyRibbon(diff)
	res.DifficultyAdjustment = analyzeDifficultyAdjustment(diff, diffChange)

	nh := res.NetworkHealth
	out.Confidence = features.Clamp01(nh.SecurityScore*0.3 + nh.ResilienceFactor*0.3 + nh.InfrastructureQuality*0.4)
	out.Risk = hashRibbonRisk(res, hasPrice)
	out.Anomalies = hashRibbonAnomalies(hr, res.Strength, cfg.AnomalyThreshold)
	out.Notes = hashRibbonNotes(res)
	out.AnomalyTypes = service.AnomalyOptions{High: 0.05, Low: -0.05, Relative: true}
	out.Scenarios = []service.Scenario{
		{Name: "hash_rate_surge", Series: 0, Threshold: 1.3, Above: true},
		{Name: "capitulation", Series: 0, Threshold: 0.7},
		{Name: "difficulty_spike", Series: 1, Threshold: 1.2, Above: true},
		{Name: "difficulty_drop", Series: 1, Threshold: 0.8},
		{Name: "mining_expansion", Series: 0, Threshold: 1.1, Above: true},
		{Name: "mining_contraction", Series: 0, Threshold: 0.9},
	}
	return out, nil
}

// RibbonSignal classifies the cross of the two averages. Below the minimum
// length the signal is insufficient_data with zero strength.
func RibbonSignal(current, shortMA, longMA float64, n, longWindow int) (string, float64) {
	if n < 2*longWindow || longMA <= 0 {
		return models.SignalInsufficientData, 0
	}
	strength := features.Clamp01(math.Abs(shortMA-longMA) / longMA * 10)
	switch {
	case strength < neutralStrength:
		return models.SignalNeutral, strength
	case shortMA > longMA && current > shortMA:
		return models.SignalStrongBullish, strength
	case shortMA > longMA:
		return models.SignalBullish, strength
	case current < shortMA:
		return models.SignalStrongBearish, strength
	default:
		return models.SignalBearish, strength
	}
}

// HashRateTrend classifies the last 14 points by their correlation with time.
func HashRateTrend(hr []float64) string {
	if len(hr) < 7 {
		return "Insufficient Data"
	}
	recent := features.Tail(hr, trendWindow)
	r := features.IndexCorrelation(recent)
	_, slope := features.LinearFit(recent)
	switch {
	case math.Abs(r) < 0.3:
		return "Stable"
	case slope > 0 && r > 0.5:
		return "Growing"
	case slope > 0:
		return "Slowly Growing"
	case r < -0.5:
		return "Declining"
	default:
		return "Slowly Declining"
	}
}

func miningHealth(buy, capitulation bool, trend string) string {
	switch {
	case capitulation:
		return "Poor - Miner Capitulation Event"
	case buy && (trend == "Growing" || trend == "Slowly Growing"):
		return "Excellent - Strong Network Growth"
	case buy:
		return "Good - Network Recovery"
	case trend == "Declining" || trend == "Slowly Declining":
		return "Concerning - Network Stress"
	}
	return "Fair - Stable Network"
}

// windowChange is the relative change across the last w points.
func windowChange(values []float64, w int) float64 {
	if len(values) < w {
		return 0
	}
	return features.Change(values, w-1)
}

func direction(signal string) string {
	switch signal {
	case models.SignalStrongBullish, models.SignalBullish, "buy", "extreme_buy":
		return "bullish"
	case models.SignalStrongBearish, models.SignalBearish, "sell", "extreme_sell":
		return "bearish"
	}
	return "neutral"
}

func hashRibbonAnomalies(hr []float64, strength, threshold float64) []models.AnomalyRecord {
	var out []models.AnomalyRecord
	if len(hr) >= 30 {
		window := features.Tail(hr, 30)
		mean, std := features.Mean(window), features.StdDev(window)
		cur := features.Last(hr)
		if std > 0 {
			z := (cur - mean) / std
			switch {
			case z < -threshold:
				sev := "high"
				if z < -3 {
					sev = "critical"
				}
				out = append(out, models.AnomalyRecord{
					Score: math.Abs(z), IsAnomaly: true, Type: "hash_rate_crash", Severity: sev,
					AffectedMetrics: []string{"hash_rate", "network_security"},
					Causes:          []string{"Miner capitulation", "Regulatory crackdown", "Energy crisis"},
				})
			case z > threshold:
				out = append(out, models.AnomalyRecord{
					Score: z, IsAnomaly: true, Type: "hash_rate_surge", Severity: "medium",
					AffectedMetrics: []string{"hash_rate", "mining_difficulty"},
					Causes:          []string{"New mining facilities", "Price rally", "Efficiency improvements"},
				})
			}
		}
	}
	if strength > divergenceAnomaly {
		out = append(out, models.AnomalyRecord{
			Score: strength, IsAnomaly: true, Type: "extreme_ribbon_divergence", Severity: "high",
			AffectedMetrics: []string{"ribbon_signal", "miner_behavior"},
			Causes:          []string{"Rapid mining changes", "Market regime shift"},
		})
	}
	return out
}

func hashRibbonNotes(r *models.HashRibbonResult) []string {
	var notes []string
	switch direction(r.Signal) {
	case "bullish":
		notes = append(notes,
			"Hash rate trend suggests network expansion - consider bullish positioning",
			"Monitor for potential mining difficulty increases")
	case "bearish":
		notes = append(notes,
			"Hash rate decline indicates miner stress - exercise caution",
			"Watch for potential capitulation opportunities")
	default:
		notes = append(notes, "Neutral hash rate trend - await clearer signals")
	}
	if r.MinerBehavior.CapitulationScore > 0.7 {
		notes = append(notes, "High capitulation risk - prepare for potential hash rate drops")
	}
	if r.MinerBehavior.EfficiencyTrend < 0.5 {
		notes = append(notes, "Poor mining efficiency - monitor for operational improvements")
	}
	if r.NetworkHealth.DecentralizationIndex < 0.3 {
		notes = append(notes, "High mining centralization - monitor pool distribution")
	}
	if r.NetworkHealth.SecurityScore < 0.6 {
		notes = append(notes, "Network security concerns - increase monitoring")
	}
	if r.MiningEconomics.ProfitMargin < 0.2 {
		notes = append(notes, "Low mining profitability - expect potential hash rate pressure")
	}
	if r.MiningEconomics.CapexCycle == "contraction" {
		notes = append(notes, "Mining capex contraction - bearish for hash rate growth")
	}
	return notes
}
