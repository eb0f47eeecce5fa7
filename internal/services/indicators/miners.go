package indicators

import (
	"math"
	"sort"

	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

// Structural mining constants. No public data source is wired for these, so
// they are fixed estimates.
var (
	geographicShares = map[string]float64{
		"china": 0.35, "usa": 0.25, "kazakhstan": 0.15, "russia": 0.10, "others": 0.15,
	}
	regionalRegulatoryRisk = map[string]float64{
		"china": 0.8, "usa": 0.3, "kazakhstan": 0.6, "russia": 0.7, "others": 0.4,
	}
)

const (
	poolConcentration    = 0.6
	energySustainability = 0.6
	hardwareObsolescence = 0.2
	defaultBreakEven     = 25000
	defaultProfitMargin  = 0.3
)

func analyzeMinerBehavior(hr, price []float64) models.MinerBehavior {
	changes := features.PctChanges(hr)
	var neg, pos []float64
	for _, c := range changes {
		switch {
		case c < 0:
			neg = append(neg, c)
		case c > 0:
			pos = append(pos, c)
		}
	}

	mb := models.MinerBehavior{
		RecoveryStrength:       0.5,
		EfficiencyTrend:        0.7,
		ProfitabilityPressure:  0.3,
		PoolConcentration:      poolConcentration,
		GeographicDistribution: copyShares(),
	}
	if len(neg) > 0 {
		mb.CapitulationScore = features.Clamp01(math.Abs(features.Mean(neg)) * 10)
	}
	if len(pos) > 0 {
		mb.RecoveryStrength = features.Clamp01(features.Mean(pos) * 10)
	}
	if price != nil {
		mb.EfficiencyTrend = features.Clamp01((features.Correlation(hr, price) + 1) / 2)
		mb.ProfitabilityPressure = features.Clamp01(features.StdDev(features.PctChanges(price)) * 5)
	}
	mb.StabilityIndex = features.Clamp01(1 - features.StdDev(changes)*10)
	mb.AdaptationSpeed = features.Clamp01(mb.RecoveryStrength * 2)
	return mb
}

func copyShares() map[string]float64 {
	out := make(map[string]float64, len(geographicShares))
	for k, v := range geographicShares {
		out[k] = v
	}
	return out
}

func analyzeNetworkHealth(hr []float64, mb models.MinerBehavior) models.NetworkHealth {
	nh := models.NetworkHealth{
		SecurityScore:            0.8,
		DecentralizationIndex:    1 - mb.PoolConcentration,
		EnergySustainability:     energySustainability,
		TechnologicalAdvancement: mb.AdaptationSpeed,
	}
	if _, hi := features.MinMax(hr); hi > 0 {
		nh.SecurityScore = features.Clamp01(features.Last(hr) / hi)
	}
	nh.ResilienceFactor = features.Clamp01(nh.SecurityScore*0.4 + nh.DecentralizationIndex*0.3 + mb.StabilityIndex*0.3)
	nh.InfrastructureQuality = features.Clamp01(mb.EfficiencyTrend*0.5 + (1-mb.ProfitabilityPressure)*0.5)
	nh.GeographicDiversity = shannonEvenness(mb.GeographicDistribution)
	for region, share := range mb.GeographicDistribution {
		nh.RegulatoryRiskScore += share * regionalRegulatoryRisk[region]
	}
	nh.RegulatoryRiskScore = features.Clamp01(nh.RegulatoryRiskScore)
	return nh
}

// shannonEvenness is entropy normalized by its maximum, in [0,1].
func shannonEvenness(dist map[string]float64) float64 {
	if len(dist) < 2 {
		return 0
	}
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := 0.0
	for _, k := range keys {
		if p := dist[k]; p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return features.Clamp01(h / math.Log2(float64(len(dist))))
}

func analyzeMiningEconomics(price []float64, mb models.MinerBehavior) models.HashMiningEconomics {
	me := models.HashMiningEconomics{
		BreakEvenPrice:           defaultBreakEven,
		ProfitMargin:             defaultProfitMargin,
		HardwareObsolescenceRate: hardwareObsolescence,
		RewardSustainability:     features.Clamp01(1 - mb.CapitulationScore),
	}
	if cur := features.Last(price); price != nil && cur > 0 {
		me.BreakEvenPrice = cur * (1 - mb.EfficiencyTrend) * 1.2
		me.ProfitMargin = features.Clamp01((cur - me.BreakEvenPrice) / cur)
	}
	switch {
	case mb.AdaptationSpeed > 0.7:
		me.CapexCycle = "expansion"
	case mb.CapitulationScore > 0.5:
		me.CapexCycle = "contraction"
	default:
		me.CapexCycle = "maintenance"
	}
	switch {
	case mb.PoolConcentration > 0.7:
		me.CompetitiveLandscape = "concentrated"
	case mb.PoolConcentration < 0.4:
		me.CompetitiveLandscape = "fragmented"
	default:
		me.CompetitiveLandscape = "balanced"
	}
	return me
}

func hashRibbonRisk(r *models.HashRibbonResult, hasPrice bool) service.RiskInputs {
	mb, nh, me := r.MinerBehavior, r.NetworkHealth, r.MiningEconomics
	return service.RiskInputs{
		Centralization:        mb.PoolConcentration,
		Security:              1 - nh.SecurityScore,
		Economics:             (1-me.ProfitMargin)*0.4 + mb.ProfitabilityPressure*0.3 + mb.CapitulationScore*0.3,
		Regulatory:            nh.RegulatoryRiskScore,
		Technology:            me.HardwareObsolescenceRate*0.6 + (1-nh.TechnologicalAdvancement)*0.4,
		Environmental:         1 - nh.EnergySustainability,
		HasPrice:              hasPrice,
		EfficiencyTrend:       mb.EfficiencyTrend,
		StabilityIndex:        mb.StabilityIndex,
		RegionalExposure:      mb.GeographicDistribution["china"],
		AdaptationSpeed:       mb.AdaptationSpeed,
		ProfitabilityPressure: mb.ProfitabilityPressure,
	}
}
