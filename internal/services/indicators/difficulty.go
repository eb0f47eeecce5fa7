package indicators

import (
	"fmt"

	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/services/features"
)

var difficultyPeriods = []int{9, 14, 25, 40, 60, 90, 128, 200}

const targetBlockMinutes = 10.0

// analyzeDifficultyRibbon computes the multi-period difficulty averages.
// Periods longer than the series are skipped.
func analyzeDifficultyRibbon(diff []float64) models.DifficultyRibbon {
	dr := models.DifficultyRibbon{
		MovingAverages: make(map[string]float64),
		Signal:         "neutral",
		Trend:          "neutral",
	}
	ma := make(map[int]float64)
	var vals []float64
	for _, p := range difficultyPeriods {
		if len(diff) < p {
			continue
		}
		v := features.Last(features.TrailingMean(diff, p))
		ma[p] = v
		vals = append(vals, v)
		dr.MovingAverages[fmt.Sprintf("ma_%d", p)] = v
	}
	if len(vals) < 4 {
		return dr
	}

	mean := features.Mean(vals)
	if mean > 0 {
		dr.Compression = features.PopStdDev(vals) / mean
		lo, hi := features.MinMax(vals)
		dr.Width = (hi - lo) / mean
	}

	// Missing long periods read as 0 and never satisfy a strict ordering.
	m9, m25, m60, m200 := ma[9], ma[25], ma[60], ma[200]
	switch {
	case m200 > 0 && m9 < m25 && m25 < m60 && m60 < m200:
		dr.Signal, dr.Trend = "capitulation", "bearish"
	case m200 > 0 && m9 > m25 && m25 > m60 && m60 > m200:
		dr.Signal, dr.Trend = "recovery", "bullish"
	case dr.Compression < 0.05:
		dr.Signal, dr.Trend = "trending", "stable"
	case dr.Compression > 0.15:
		dr.Signal, dr.Trend = "compressed", "volatile"
	}
	return dr
}

func analyzeDifficultyAdjustment(diff []float64, change float64) models.DifficultyAdjustment {
	da := models.DifficultyAdjustment{
		CurrentDifficulty: features.Last(diff),
		Change:            change,
	}
	if change > 0 {
		da.ImpliedBlockTime = targetBlockMinutes / (1 + change)
	} else {
		da.ImpliedBlockTime = targetBlockMinutes * (1 - change)
	}
	da.MiningPressure = features.Clamp01(change * 5)
	switch {
	case da.ImpliedBlockTime > targetBlockMinutes*1.1:
		da.FeeMarket = "high_demand"
	case da.ImpliedBlockTime < targetBlockMinutes*0.9:
		da.FeeMarket = "low_demand"
	default:
		da.FeeMarket = "balanced"
	}
	return da
}
