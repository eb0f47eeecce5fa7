package analytics

import (
	"fmt"
	"strings"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const maxRecommendations = 8

// RecommendInput collects what the rule table looks at. Nil sections are skipped.
type RecommendInput struct {
	Indicator  *domsvc.IndicatorOutput
	Regime     *models.RegimeAnalysis
	Volatility *models.VolatilityAnalysis
	Risk       *models.RiskAssessment
	Anomaly    *models.AnomalyDetection
	Cycle      *models.CycleAnalysis
}

// Recommend applies the rule table in a fixed order and keeps the first
// eight distinct lines.
func Recommend(in RecommendInput) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s == "" || seen[s] || len(out) >= maxRecommendations {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	if in.Indicator != nil {
		for _, n := range in.Indicator.Notes {
			add(n)
		}
		for _, a := range in.Indicator.Anomalies {
			if a.Severity == "critical" || a.Severity == "high" {
				add(fmt.Sprintf("%s anomaly (%s) - review %s", strings.ReplaceAll(a.Type, "_", " "), a.Severity, joinOr(a.AffectedMetrics, "the series")))
			}
		}
	}

	if r := in.Regime; r != nil && r.Status == models.StatusOK {
		switch r.CurrentLabel {
		case "contraction":
			add("Regime model places the series in a contraction regime - reduce exposure")
		case "expansion":
			add("Regime model places the series in an expansion regime - trend following favored")
		}
		if r.Persistence > 0.95 {
			add("Regimes are highly persistent - expect the current regime to continue")
		}
	}

	if v := in.Volatility; v != nil && v.Status == models.StatusOK {
		if v.Regime == "high" {
			add("High volatility regime - size positions conservatively")
		}
		if v.ClusteringDetected {
			add("Volatility clustering detected - expect turbulent periods to persist")
		}
	}

	if c := in.Cycle; c != nil && c.Status == models.StatusOK && c.Strength > 0.3 {
		add(fmt.Sprintf("Strong cycle of about %.0f days, currently in %s", c.DominantPeriodDays, c.Phase))
	}

	if r := in.Risk; r != nil {
		if r.Overall > 0.7 {
			add("High overall risk - implement risk management strategies")
		}
		if r.SubScores["regulatory"] > 0.6 {
			add("Elevated regulatory risk - monitor policy developments")
		}
	}

	if a := in.Anomaly; a != nil && a.IsAnomaly {
		add(fmt.Sprintf("%s severity anomaly in the latest observation - %s", a.Severity, a.Context))
	}

	if out == nil {
		out = []string{}
	}
	return out
}

func joinOr(s []string, fallback string) string {
	if len(s) == 0 {
		return fallback
	}
	return strings.Join(s, ", ")
}

// OverallConfidence blends indicator confidence, mean model confidence and
// the complement of overall risk. Missing predictions count as 0.5 and a
// missing risk assessment as 0.5 risk.
func OverallConfidence(indicator float64, preds []models.Prediction, risk *models.RiskAssessment) float64 {
	predConf := 0.5
	if len(preds) > 0 {
		s := 0.0
		for _, p := range preds {
			s += p.Confidence
		}
		predConf = s / float64(len(preds))
	}
	overallRisk := 0.5
	if risk != nil {
		overallRisk = risk.Overall
	}
	return features.Clamp01(0.4*features.Clamp01(indicator) + 0.4*predConf + 0.2*(1-overallRisk))
}
