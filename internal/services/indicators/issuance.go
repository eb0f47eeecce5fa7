package indicators

import (
	"context"
	"math"

	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const minBandHistory = 10

// IssuanceMultiple divides daily issuance value by its trailing mean.
type IssuanceMultiple struct{}

var _ service.Indicator = IssuanceMultiple{}

func (IssuanceMultiple) Kind() models.IndicatorKind { return models.KindIssuanceMultiple }

func (IssuanceMultiple) Compute(_ context.Context, s *models.PreparedSeries, cfg models.AnalysisConfig) (*service.IndicatorOutput, error) {
	issuance, ok := s.Column(models.FieldDailyIssuance)
	if !ok {
		return nil, models.InvalidInput(models.FieldDailyIssuance, "daily issuance value is required")
	}

	hist := IssuanceMultiples(issuance, cfg.IssuanceWindow)
	cur := features.Last(hist)
	res := &models.IssuanceMultipleResult{
		Current:       cur,
		Percentile:    features.PercentileRank(hist, cur),
		History:       hist,
		Profitability: profitability(cur),
		Signal:        issuanceSignal(cur),
	}
	if len(hist) >= minBandHistory {
		res.Bands = PercentileBandsOf(hist)
		res.MarketCyclePhase = MarketCyclePhase(res.Percentile)
	} else {
		res.MarketCyclePhase = models.StatusInsufficientData
	}

	hr, hasHR := s.Column(models.FieldHashRate)
	res.Economics = issuanceEconomics(hist, hr)
	res.Statistics = issuanceStatistics(s, hist)
	res.Halving = HalvingEffectsOf(s.Timestamps, hist)
	res.ProfitabilityCycles = ProfitabilityCyclesOf(hist)
	res.SupplyShock = SupplyShockOf(hist)

	out := &service.IndicatorOutput{
		IssuanceMultiple: res,
		Primary:          hist,
		PrimaryName:      "issuance_multiple",
		Timestamps:       s.Timestamps,
		Signal:           res.Signal,
		Direction:        direction(res.Signal),
		Proxies:          s.Proxies,
	}
	if hasHR {
		out.Secondary, out.SecondaryName = hr, models.FieldHashRate
	}

	sufficiency := math.Min(float64(len(hist))/float64(cfg.IssuanceWindow), 1)
	out.Confidence = features.Clamp01(sufficiency*0.6 + res.Economics.EfficiencyScore*0.4)
	_, hasPrice := s.Column(models.FieldPrice)
	out.Risk = issuanceRisk(hist, res.Economics, hasPrice)
	out.Notes = issuanceNotes(res)
	out.AnomalyTypes = service.AnomalyOptions{High: 2.0, Low: 0.3}
	return out, nil
}

// IssuanceMultiples returns issuance / trailing mean for every index; a
// non-positive mean yields 1.
func IssuanceMultiples(issuance []float64, window int) []float64 {
	ma := features.TrailingMean(issuance, window)
	out := make([]float64, len(issuance))
	for i, v := range issuance {
		if ma[i] <= 0 {
			out[i] = 1
			continue
		}
		out[i] = v / ma[i]
	}
	return out
}

// PercentileBandsOf returns the 10/30/50/70/90th percentiles, nudged so each
// band is strictly greater than the one below.
func PercentileBandsOf(hist []float64) *models.PercentileBands {
	q := []float64{
		features.Percentile(hist, 10),
		features.Percentile(hist, 30),
		features.Percentile(hist, 50),
		features.Percentile(hist, 70),
		features.Percentile(hist, 90),
	}
	for i := 1; i < len(q); i++ {
		if q[i] <= q[i-1] {
			eps := math.Max(math.Abs(q[i-1])*1e-9, 1e-12)
			q[i] = q[i-1] + eps
		}
	}
	return &models.PercentileBands{Bottom: q[0], Low: q[1], Fair: q[2], High: q[3], Top: q[4]}
}

// MarketCyclePhase maps a percentile rank to a cycle label.
func MarketCyclePhase(pct float64) string {
	switch {
	case pct > 95:
		return "Cycle Top - Extreme Overheating"
	case pct > 80:
		return "Late Bull Market - Overheating"
	case pct > 60:
		return "Bull Market - Healthy Growth"
	case pct > 40:
		return "Neutral - Consolidation"
	case pct > 20:
		return "Bear Market - Cooling Down"
	}
	return "Cycle Bottom - Extreme Undervaluation"
}

func profitability(m float64) string {
	switch {
	case m > 4:
		return "Extremely High Profitability - Potential Top"
	case m > 2:
		return "High Profitability - Bull Market"
	case m > 0.5:
		return "Normal Profitability - Stable Market"
	case m > 0.3:
		return "Low Profitability - Bear Market"
	}
	return "Extremely Low Profitability - Potential Bottom"
}

func issuanceSignal(m float64) string {
	switch {
	case m > 4:
		return "extreme_sell"
	case m > 2:
		return "sell"
	case m > 0.5:
		return "neutral"
	case m > 0.3:
		return "buy"
	}
	return "extreme_buy"
}

func issuanceEconomics(hist, hr []float64) models.IssuanceEconomics {
	cur := features.Last(hist)
	ie := models.IssuanceEconomics{
		EfficiencyScore:      features.Clamp01(1 - features.PopStdDev(features.Tail(hist, 30))),
		NetworkSecurityScore: features.Clamp01(cur / 2),
	}
	low := 0
	for _, v := range hist {
		if v < 0.5 {
			low++
		}
	}
	if len(hist) > 0 {
		ie.CapitulationRisk = float64(low) / float64(len(hist))
	}
	if len(hr) == len(hist) {
		ie.HashRateCorrelation = features.Correlation(hist, hr)
	}
	switch {
	case cur > 2:
		ie.RevenueSustainability = "High - Sustainable mining operations"
	case cur > 1:
		ie.RevenueSustainability = "Medium - Stable mining conditions"
	case cur > 0.5:
		ie.RevenueSustainability = "Low - Challenging conditions"
	default:
		ie.RevenueSustainability = "Critical - Potential miner capitulation"
	}
	return ie
}

func regionalRegulatoryScore() float64 {
	s := 0.0
	for region, share := range geographicShares {
		s += share * regionalRegulatoryRisk[region]
	}
	return s
}

func issuanceRisk(hist []float64, ie models.IssuanceEconomics, hasPrice bool) service.RiskInputs {
	stability := features.Clamp01(1 - features.StdDev(features.PctChanges(hist))*10)
	return service.RiskInputs{
		Centralization:        poolConcentration,
		Security:              1 - ie.NetworkSecurityScore,
		Economics:             ie.CapitulationRisk*0.5 + (1-ie.EfficiencyScore)*0.5,
		Regulatory:            regionalRegulatoryScore(),
		Technology:            hardwareObsolescence*0.6 + 0.5*0.4,
		Environmental:         1 - energySustainability,
		HasPrice:              hasPrice,
		EfficiencyTrend:       ie.EfficiencyScore,
		StabilityIndex:        stability,
		RegionalExposure:      geographicShares["china"],
		AdaptationSpeed:       0.5,
		ProfitabilityPressure: ie.CapitulationRisk,
	}
}

func issuanceNotes(r *models.IssuanceMultipleResult) []string {
	var notes []string
	switch r.Signal {
	case "extreme_sell":
		notes = append(notes, "Issuance multiple at historic extremes - miner revenue suggests a cycle top")
	case "sell":
		notes = append(notes, "Elevated issuance multiple - miners are likely distributing, consider taking profit")
	case "buy":
		notes = append(notes, "Depressed issuance multiple - miner revenue is below trend, accumulation zone")
	case "extreme_buy":
		notes = append(notes, "Issuance multiple near capitulation levels - historically a cycle bottom")
	default:
		notes = append(notes, "Issuance multiple within its normal range - no valuation extreme")
	}
	if r.Economics.CapitulationRisk > 0.3 {
		notes = append(notes, "Frequent sub-0.5 multiples in history - watch for miner capitulation")
	}
	if r.Economics.EfficiencyScore < 0.5 {
		notes = append(notes, "Unstable miner revenue - treat valuation bands with caution")
	}
	if ss := r.SupplyShock; ss != nil && ss.RecoveryDays >= 90 {
		notes = append(notes, ss.Intensity+" supply shock - "+ss.MarketImpact)
	}
	return notes
}
