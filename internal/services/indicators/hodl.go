package indicators

import (
	"context"
	"strings"
	"time"

	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

var (
	bucketLimits  = []float64{30, 90, 180, 365}
	bucketWeights = []float64{0.1, 0.2, 0.3, 0.4, 1.0}
	defaultShares = []float64{0.10, 0.15, 0.20, 0.25, 0.30}
)

const hodlTrendSnapshots = 30

// HODLWaves groups UTXO cohorts by age and tracks how long value stays put.
type HODLWaves struct{}

var _ service.Indicator = HODLWaves{}

func (HODLWaves) Kind() models.IndicatorKind { return models.KindHODLWaves }

type snapshot struct {
	at     time.Time
	shares []float64
	proxy  bool
}

func (HODLWaves) Compute(_ context.Context, s *models.PreparedSeries, _ models.AnalysisConfig) (*service.IndicatorOutput, error) {
	ages, ok := s.Column(models.FieldUTXOAgeDays)
	if !ok {
		return nil, models.InvalidInput(models.FieldUTXOAgeDays, "utxo age is required")
	}
	values, ok := s.Column(models.FieldUTXOValue)
	if !ok {
		return nil, models.InvalidInput(models.FieldUTXOValue, "utxo value is required")
	}

	snaps := groupSnapshots(s.Timestamps, ages, values)
	strength := make([]float64, len(snaps))
	ts := make([]time.Time, len(snaps))
	for i, sn := range snaps {
		strength[i] = HODLStrength(sn.shares)
		ts[i] = sn.at
	}
	latest := snaps[len(snaps)-1]

	dist := make(map[string]float64, len(models.HODLBuckets))
	for i, b := range models.HODLBuckets {
		dist[b] = latest.shares[i]
	}
	lth := latest.shares[3] + latest.shares[4]
	res := &models.HODLWaveResult{
		Distribution:        dist,
		Strength:            strength[len(strength)-1],
		LongTermHolderRatio: lth,
		RecentActivityRatio: latest.shares[0] + latest.shares[1],
		SupplyMaturity:      SupplyMaturity(lth),
		Trend:               HODLTrend(features.Tail(strength, hodlTrendSnapshots)),
		StrengthHistory:     strength,
		Snapshots:           len(snaps),
		HolderBehavior:      holderBehavior(lth),
	}
	if latestOut := latestOutputs(s.Timestamps, ages, values); latestOut.total > 0 {
		res.Cohorts = cohortAnalysisOf(latestOut)
		res.Supply = supplyDistributionOf(latestOut)
	}

	out := &service.IndicatorOutput{
		HODLWaves:   res,
		Primary:     strength,
		PrimaryName: "hodl_strength",
		Timestamps:  ts,
		Signal:      strings.ToLower(strings.ReplaceAll(res.Trend, " ", "_")),
		Proxies:     s.Proxies,
	}
	switch res.Trend {
	case "Strengthening":
		out.Direction = "bullish"
	case "Weakening":
		out.Direction = "bearish"
	default:
		out.Direction = "neutral"
	}
	for _, sn := range snaps {
		if sn.proxy {
			out.Proxies = append(out.Proxies, models.ProxyUse{Field: "age_distribution", Source: "default"})
			break
		}
	}

	sufficiency := float64(len(snaps)) / hodlTrendSnapshots
	if sufficiency > 1 {
		sufficiency = 1
	}
	out.Confidence = features.Clamp01(sufficiency*0.5 + res.Strength*0.5)
	_, hasPrice := s.Column(models.FieldPrice)
	out.Risk = hodlRisk(res, latest.shares, hasPrice)
	out.Notes = hodlNotes(res)
	out.AnomalyTypes = service.AnomalyOptions{High: 0.02, Low: -0.02, Relative: true}
	return out, nil
}

// groupSnapshots folds records sharing a timestamp into one distribution.
func groupSnapshots(ts []time.Time, ages, values []float64) []snapshot {
	var out []snapshot
	var sums []float64
	flush := func(at time.Time) {
		total := 0.0
		for _, v := range sums {
			total += v
		}
		sn := snapshot{at: at, shares: make([]float64, len(bucketWeights))}
		if total <= 0 {
			copy(sn.shares, defaultShares)
			sn.proxy = true
		} else {
			for i, v := range sums {
				sn.shares[i] = v / total
			}
		}
		out = append(out, sn)
	}
	for i := range ts {
		if i == 0 || !ts[i].Equal(ts[i-1]) {
			if i > 0 {
				flush(ts[i-1])
			}
			sums = make([]float64, len(bucketWeights))
		}
		if values[i] > 0 {
			sums[bucketOf(ages[i])] += values[i]
		}
	}
	flush(ts[len(ts)-1])
	return out
}

func bucketOf(age float64) int { return bucketIndex(bucketLimits, age) }

func bucketIndex(limits []float64, age float64) int {
	for i, lim := range limits {
		if age < lim {
			return i
		}
	}
	return len(limits)
}

// HODLStrength weights older buckets more heavily, capped at 1.
func HODLStrength(shares []float64) float64 {
	s := 0.0
	for i, p := range shares {
		s += p * bucketWeights[i]
	}
	return features.Clamp01(s)
}

// SupplyMaturity classifies the long-term holder ratio.
func SupplyMaturity(lth float64) string {
	switch {
	case lth > 0.7:
		return "Very Mature - Strong HODLing"
	case lth > 0.5:
		return "Mature - Moderate HODLing"
	case lth > 0.3:
		return "Developing - Mixed Behavior"
	}
	return "Young - High Activity"
}

// HODLTrend compares the last 7 strengths with the 7 before them.
func HODLTrend(hist []float64) string {
	if len(hist) < 7 {
		return "Insufficient Data"
	}
	recent := features.Mean(hist[len(hist)-7:])
	older := recent
	if len(hist) >= 14 {
		older = features.Mean(hist[len(hist)-14 : len(hist)-7])
	}
	change := 0.0
	if older > 0 {
		change = (recent - older) / older
	}
	switch {
	case change > 0.05:
		return "Strengthening"
	case change < -0.05:
		return "Weakening"
	}
	return "Stable"
}

func holderBehavior(lth float64) models.HolderBehavior {
	hb := models.HolderBehavior{
		HodlingStrength:      features.Clamp01(lth * 1.2),
		SellingPressure:      features.Clamp01((0.7 - lth) * 2),
		SupplyShockPotential: features.Clamp01(lth * 0.8),
	}
	switch {
	case lth > 0.75:
		hb.AccumulationPhase, hb.CyclePosition = "Strong Accumulation", "Late Bear Market / Early Bull"
	case lth > 0.65:
		hb.AccumulationPhase, hb.CyclePosition = "Moderate Accumulation", "Mid Bull Market"
	case lth > 0.55:
		hb.AccumulationPhase, hb.CyclePosition = "Weak Accumulation", "Late Bull Market"
	default:
		hb.AccumulationPhase, hb.CyclePosition = "No Accumulation", "Bear Market / Distribution"
	}
	return hb
}

func hodlRisk(r *models.HODLWaveResult, shares []float64, hasPrice bool) service.RiskInputs {
	centralization := herfindahl(shares)
	if r.Supply != nil {
		centralization = r.Supply.CentralizationRisk
	}
	return service.RiskInputs{
		Centralization:        centralization,
		Security:              1 - r.Strength,
		Economics:             r.HolderBehavior.SellingPressure,
		Regulatory:            regionalRegulatoryScore(),
		Technology:            hardwareObsolescence*0.6 + 0.5*0.4,
		Environmental:         1 - energySustainability,
		HasPrice:              hasPrice,
		EfficiencyTrend:       r.Strength,
		StabilityIndex:        features.Clamp01(1 - features.StdDev(r.StrengthHistory)*10),
		RegionalExposure:      geographicShares["china"],
		AdaptationSpeed:       0.5,
		ProfitabilityPressure: r.RecentActivityRatio,
	}
}

func hodlNotes(r *models.HODLWaveResult) []string {
	var notes []string
	switch r.Trend {
	case "Strengthening":
		notes = append(notes, "Long-term holding is strengthening - supply is moving into cold storage")
	case "Weakening":
		notes = append(notes, "HODL strength is weakening - older coins are being spent, expect distribution")
	case "Stable":
		notes = append(notes, "Holder behavior is stable - no change in supply dynamics")
	default:
		notes = append(notes, "Not enough cohort snapshots to judge holder behavior")
	}
	if r.LongTermHolderRatio > 0.7 {
		notes = append(notes, "Very mature supply - potential supply shock if demand rises")
	}
	if r.RecentActivityRatio > 0.4 {
		notes = append(notes, "High recent coin activity - elevated short-term volatility likely")
	}
	return notes
}
