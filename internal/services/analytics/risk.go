package analytics

import (
	"math"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const mitigationCut = 0.7

type riskFactor struct {
	name       string
	weight     float64
	value      func(domsvc.RiskInputs) float64
	mitigation []string
}

var riskFactors = []riskFactor{
	{"centralization", 0.20, func(in domsvc.RiskInputs) float64 { return in.Centralization },
		[]string{"Monitor mining pool distribution", "Support decentralized mining initiatives"}},
	{"security", 0.25, func(in domsvc.RiskInputs) float64 { return in.Security },
		[]string{"Increase network monitoring", "Prepare for potential attacks"}},
	{"economics", 0.25, func(in domsvc.RiskInputs) float64 { return in.Economics },
		[]string{"Monitor miner profitability", "Track energy cost trends"}},
	{"regulatory", 0.15, func(in domsvc.RiskInputs) float64 { return in.Regulatory },
		[]string{"Monitor regulatory developments", "Diversify mining geography"}},
	{"technology", 0.10, func(in domsvc.RiskInputs) float64 { return in.Technology },
		[]string{"Track hardware innovation", "Monitor efficiency improvements"}},
	{"environmental", 0.05, func(in domsvc.RiskInputs) float64 { return in.Environmental },
		[]string{"Track energy mix of mining operations"}},
}

// CompositeRisk weights the six factor scores and runs the hash-rate stress
// scenarios.
type CompositeRisk struct{}

var _ domsvc.RiskAssessor = (*CompositeRisk)(nil)

func NewCompositeRisk() *CompositeRisk { return &CompositeRisk{} }

func (CompositeRisk) Assess(in domsvc.RiskInputs) *models.RiskAssessment {
	out := &models.RiskAssessment{
		SubScores:   make(map[string]float64, len(riskFactors)),
		Mitigation:  []string{},
		StressTests: map[string]float64{},
	}
	for _, f := range riskFactors {
		v := features.Clamp01(f.value(in))
		out.SubScores[f.name] = v
		out.Overall += f.weight * v
		if v > mitigationCut {
			out.Mitigation = append(out.Mitigation, f.mitigation...)
		}
	}
	out.Overall = features.Clamp01(out.Overall)

	eff := features.Clamp01(in.EfficiencyTrend)
	stab := features.Clamp01(in.StabilityIndex)
	if in.HasPrice {
		out.StressTests["price_drop_50pct"] = priceShock(-0.5, eff, stab)
		out.StressTests["price_drop_80pct"] = priceShock(-0.8, eff, stab)
	}
	adapt := features.Clamp01(in.AdaptationSpeed)
	out.StressTests["regulatory_ban"] = math.Min(features.Clamp01(in.RegionalExposure)*0.8*(1-adapt*0.3), 0.6)
	out.StressTests["energy_crisis"] = math.Min(features.Clamp01(in.ProfitabilityPressure)*0.6*(2-eff), 0.5)
	return out
}

// priceShock is the hash-rate response magnitude to a relative price change.
func priceShock(change, efficiency, stability float64) float64 {
	resp := change * 0.5 * (2 - efficiency) * (2 - stability)
	return math.Abs(features.Clamp(resp, -0.8, 0.5))
}
