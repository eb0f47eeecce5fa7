package indicators

import "ChainPulse/internal/domain/models"

// ReferenceIssuance is the output of the direct-loop calculator.
type ReferenceIssuance struct {
	Current    float64
	Percentile float64
	Phase      string
	History    []float64
}

// ReferenceIssuanceMultiple is an independent implementation used to
// cross-check IssuanceMultiple. It shares no helpers with the main path.
func ReferenceIssuanceMultiple(issuance []float64, window int) ReferenceIssuance {
	n := len(issuance)
	hist := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += issuance[j]
		}
		mean := sum / float64(i-start+1)
		if mean > 0 {
			hist[i] = issuance[i] / mean
		} else {
			hist[i] = 1
		}
	}
	if n == 0 {
		return ReferenceIssuance{Phase: models.StatusInsufficientData}
	}

	cur := hist[n-1]
	atOrBelow := 0
	for _, v := range hist {
		if v <= cur {
			atOrBelow++
		}
	}
	pct := float64(atOrBelow) / float64(n) * 100

	phases := []struct {
		above float64
		label string
	}{
		{95, "Cycle Top - Extreme Overheating"},
		{80, "Late Bull Market - Overheating"},
		{60, "Bull Market - Healthy Growth"},
		{40, "Neutral - Consolidation"},
		{20, "Bear Market - Cooling Down"},
	}
	phase := "Cycle Bottom - Extreme Undervaluation"
	if n < 10 {
		phase = models.StatusInsufficientData
		phases = nil
	}
	for _, p := range phases {
		if pct > p.above {
			phase = p.label
			break
		}
	}
	return ReferenceIssuance{Current: cur, Percentile: pct, Phase: phase, History: hist}
}
