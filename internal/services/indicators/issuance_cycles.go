package indicators

import (
	"math"
	"sort"
	"time"

	"ChainPulse/internal/domain/models"
	"ChainPulse/internal/services/features"
)

// Block subsidy halvings. The last entry is projected; later ones are
// extrapolated one cycle at a time.
var halvingSchedule = []time.Time{
	time.Date(2012, 11, 28, 0, 0, 0, 0, time.UTC),
	time.Date(2016, 7, 9, 0, 0, 0, 0, time.UTC),
	time.Date(2020, 5, 11, 0, 0, 0, 0, time.UTC),
	time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
	time.Date(2028, 4, 20, 0, 0, 0, 0, time.UTC),
}

const (
	halvingCycleDays  = 4 * 365
	halvingWindowDays = 180
	shockMA           = 90
	shockPersistence  = 30
	nextImpactDecay   = 0.8
)

// HalvingEffectsOf locates the last timestamp in the halving cycle and
// compares the mean multiple in the 180 days before each halving with the
// 180 days after it.
func HalvingEffectsOf(ts []time.Time, hist []float64) models.HalvingEffects {
	he := models.HalvingEffects{Phase: "Unknown"}
	if len(ts) == 0 || len(ts) != len(hist) {
		return he
	}
	last := ts[len(ts)-1]

	for _, h := range halvingSchedule {
		if !h.After(last) {
			h := h
			he.LastHalving = &h
			continue
		}
		if he.NextHalving.IsZero() {
			he.NextHalving = h
		}
	}
	if he.NextHalving.IsZero() {
		next := halvingSchedule[len(halvingSchedule)-1]
		for !next.After(last) {
			next = next.AddDate(0, 0, halvingCycleDays)
		}
		he.NextHalving = next
	}
	he.DaysToNextHalving = int(math.Ceil(he.NextHalving.Sub(last).Hours() / 24))

	if he.LastHalving != nil {
		he.DaysSinceHalving = int(last.Sub(*he.LastHalving).Hours() / 24)
		he.CyclePosition = float64(he.DaysSinceHalving%halvingCycleDays) / halvingCycleDays
		he.Phase = halvingPhase(he.CyclePosition)
	}

	var pre, post []float64
	for _, h := range halvingSchedule {
		from, to := h.AddDate(0, 0, -halvingWindowDays), h.AddDate(0, 0, halvingWindowDays)
		var before, after []float64
		for i, t := range ts {
			switch {
			case !t.Before(from) && t.Before(h):
				before = append(before, hist[i])
			case !t.Before(h) && t.Before(to):
				after = append(after, hist[i])
			}
		}
		if len(before) > 0 {
			pre = append(pre, features.Mean(before))
		}
		if len(after) > 0 {
			post = append(post, features.Mean(after))
		}
		if len(before) > 0 || len(after) > 0 {
			he.HalvingsObserved++
		}
	}
	if len(pre) > 0 && len(post) > 0 {
		he.PreHalvingMean = features.Mean(pre)
		he.PostHalvingMean = features.Mean(post)
		if he.PreHalvingMean != 0 {
			he.ImpactMagnitude = (he.PostHalvingMean - he.PreHalvingMean) / he.PreHalvingMean
		}
	}
	he.ExpectedNextImpact = math.Abs(he.ImpactMagnitude) * nextImpactDecay
	return he
}

func halvingPhase(pos float64) string {
	switch {
	case pos < 0.25:
		return "Post-Halving Accumulation"
	case pos < 0.5:
		return "Mid-Cycle Growth"
	case pos < 0.75:
		return "Late-Cycle Euphoria"
	}
	return "Pre-Halving Correction"
}

// ProfitabilityCyclesOf splits the history into maximal runs above the 80th
// percentile, below the 20th, or in between.
func ProfitabilityCyclesOf(hist []float64) *models.ProfitabilityCycles {
	n := len(hist)
	if n < minBandHistory {
		return nil
	}
	hi, lo := features.Percentile(hist, 80), features.Percentile(hist, 20)
	state := func(v float64) string {
		switch {
		case v > hi:
			return "high"
		case v < lo:
			return "low"
		}
		return "neutral"
	}

	pc := &models.ProfitabilityCycles{}
	cur, start := state(hist[0]), 0
	for i := 1; i <= n; i++ {
		if i < n && state(hist[i]) == cur {
			continue
		}
		pc.Phases = append(pc.Phases, models.ProfitabilityPhase{Phase: cur, Start: start, End: i - 1, Duration: i - start})
		if i < n {
			cur, start = state(hist[i]), i
		}
	}
	pc.AvgPhaseDuration = float64(n) / float64(len(pc.Phases))

	switch cur {
	case "high":
		pc.CurrentState = "High Profitability"
	case "low":
		pc.CurrentState = "Low Profitability"
	default:
		pc.CurrentState = "Normal Profitability"
	}
	pc.Volatility = features.PopStdDev(hist)
	if pc.Volatility > 0 {
		pc.Strength = math.Abs(hist[n-1]-features.Mean(hist)) / pc.Volatility
	}
	return pc
}

// AttachSpectralCycle copies the dominant cycle found by the cycle stage.
func AttachSpectralCycle(pc *models.ProfitabilityCycles, c *models.CycleAnalysis) {
	if pc == nil || c == nil || c.Status != models.StatusOK {
		return
	}
	pc.DominantPeriodDays = c.DominantPeriodDays
	pc.SpectralPhase = c.Phase
}

// SupplyShockOf grades the current multiple against the 5/20/80/95th
// percentiles of its own history.
func SupplyShockOf(hist []float64) *models.SupplyShock {
	n := len(hist)
	if n < minBandHistory {
		return nil
	}
	sorted := append([]float64(nil), hist...)
	sort.Float64s(sorted)
	p5, p20 := features.PercentileSorted(sorted, 5), features.PercentileSorted(sorted, 20)
	p80, p95 := features.PercentileSorted(sorted, 80), features.PercentileSorted(sorted, 95)
	cur := hist[n-1]

	ss := &models.SupplyShock{
		Intensity:    "Normal",
		MarketImpact: "Normal market conditions with balanced miner economics",
		Ratio:        1,
	}
	switch {
	case cur > p95:
		ss.Intensity, ss.Magnitude, ss.RecoveryDays = "Extreme Positive", relativeGap(cur, p95), 90
	case cur < p5:
		ss.Intensity, ss.Magnitude, ss.RecoveryDays = "Extreme Negative", relativeGap(cur, p5), 90
	case cur > p80:
		ss.Intensity, ss.Magnitude, ss.RecoveryDays = "Moderate Positive", relativeGap(cur, p80), 30
	case cur < p20:
		ss.Intensity, ss.Magnitude, ss.RecoveryDays = "Moderate Negative", relativeGap(cur, p20), 30
	}
	switch {
	case cur > p80:
		ss.MarketImpact = "Potential selling pressure from miners due to high profitability"
	case cur < p20:
		ss.MarketImpact = "Potential miner capitulation and reduced selling pressure"
	}

	for _, v := range hist {
		if v > p95 || v < p5 {
			ss.HistoricalShocks++
		}
	}
	if n >= shockMA {
		if ma := features.Mean(hist[n-shockMA:]); ma != 0 {
			ss.Ratio = cur / ma
		}
	}
	if n >= shockPersistence {
		tail := hist[n-shockPersistence:]
		if sd := features.PopStdDev(tail); sd > 0 {
			ss.Persistence = math.Abs(cur-features.Mean(tail)) / sd
		}
	}
	return ss
}

func relativeGap(v, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return math.Abs(v-ref) / math.Abs(ref)
}

func issuanceStatistics(s *models.PreparedSeries, hist []float64) models.IssuanceStatistics {
	st := models.IssuanceStatistics{
		Volatility:       features.PopStdDev(hist),
		TrendCorrelation: features.IndexCorrelation(hist),
	}
	if lo, hi := features.MinMax(hist); hi > 0 {
		st.MaxDrawdown = 1 - lo/hi
	}
	st.PriceCorrelation = columnCorrelation(s, models.FieldPrice, hist)
	st.DifficultyCorrelation = columnCorrelation(s, models.FieldDifficulty, hist)
	return st
}

func columnCorrelation(s *models.PreparedSeries, field string, hist []float64) *float64 {
	col, ok := s.Column(field)
	if !ok || len(col) != len(hist) {
		return nil
	}
	r := features.Correlation(hist, col)
	return &r
}
