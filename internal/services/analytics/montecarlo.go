package analytics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	// shocks on secondary series load 0.8 on the primary shock
	shockLoading = 0.8
	shockIdio    = 0.6

	// walk states are capped so path sums and squares stay finite
	maxLogState = 300
)

var maxLevel = math.Exp(maxLogState)

var bandLevels = []struct {
	name   string
	lo, hi float64
}{
	{"68", 16, 84},
	{"95", 2.5, 97.5},
}

var terminalPercentiles = []float64{5, 25, 75, 95}

// RandomWalkSimulator runs seeded, optionally mean-reverting random walks in
// log space. Secondary series share a correlated component of the primary shock.
type RandomWalkSimulator struct{}

var _ domsvc.Simulator = (*RandomWalkSimulator)(nil)

func NewRandomWalkSimulator() *RandomWalkSimulator { return &RandomWalkSimulator{} }

type walk struct {
	name     string
	current  float64
	logSpace bool
	x0       float64
	drift    float64
	vol      float64
	anchor   float64
	revert   float64
}

func newWalk(in domsvc.SimInput) walk {
	w := walk{name: in.Name, current: features.Last(in.Values), revert: features.Clamp01(in.Reversion), logSpace: true}
	for _, v := range in.Values {
		if v <= 0 {
			w.logSpace = false
			break
		}
	}
	xs := in.Values
	if w.logSpace {
		xs = make([]float64, len(in.Values))
		for i, v := range in.Values {
			xs[i] = math.Log(v)
		}
	}
	diffs := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		diffs = append(diffs, xs[i]-xs[i-1])
	}
	w.x0 = xs[len(xs)-1]
	w.drift = features.Safe(features.Mean(diffs), 0)
	w.vol = features.StdDev(diffs)
	w.anchor = features.Safe(features.Mean(xs), w.x0)
	return w
}

func (w walk) step(x, shock float64) float64 {
	next := x + w.drift - w.revert*(x-w.anchor) + w.vol*shock
	if w.logSpace {
		return features.Clamp(next, -maxLogState, maxLogState)
	}
	return features.Clamp(next, -maxLevel, maxLevel)
}

func (w walk) level(x float64) float64 {
	if w.logSpace {
		return math.Exp(x)
	}
	return x
}

func (s *RandomWalkSimulator) Simulate(ctx context.Context, in []domsvc.SimInput, cfg domsvc.SimConfig) (*models.MonteCarloResult, error) {
	out := &models.MonteCarloResult{
		Simulations: cfg.Paths,
		Horizon:     cfg.Horizon,
		Seed:        cfg.Seed,
	}
	if len(in) == 0 || len(in[0].Values) < 2 || cfg.Paths < 1 || cfg.Horizon < 1 {
		out.Status = models.StatusInsufficientData
		return out, nil
	}

	walks := []walk{newWalk(in[0])}
	for _, extra := range in[1:] {
		if len(extra.Values) >= 2 {
			walks = append(walks, newWalk(extra))
		}
	}

	// paths[s][h][p] is series s at step h+1 on path p
	paths := make([][][]float64, len(walks))
	for si := range walks {
		paths[si] = make([][]float64, cfg.Horizon)
		for h := range paths[si] {
			paths[si][h] = make([]float64, cfg.Paths)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	state := make([]float64, len(walks))
	for p := 0; p < cfg.Paths; p++ {
		if p%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for si, w := range walks {
			state[si] = w.x0
		}
		for h := 0; h < cfg.Horizon; h++ {
			z := rng.NormFloat64()
			for si, w := range walks {
				shock := z
				if si > 0 {
					shock = shockLoading*z + shockIdio*rng.NormFloat64()
				}
				state[si] = w.step(state[si], shock)
				paths[si][h][p] = w.level(state[si])
			}
		}
	}

	for si, w := range walks {
		out.Series = append(out.Series, summarizeWalk(w, paths[si]))
	}

	primary := walks[0]
	terminal := append([]float64(nil), paths[0][cfg.Horizon-1]...)
	sort.Float64s(terminal)

	out.Scenarios = map[string]float64{
		"up_20pct":   terminalShare(paths[0][cfg.Horizon-1], primary.current, 1.2, true),
		"down_20pct": terminalShare(paths[0][cfg.Horizon-1], primary.current, 0.8, false),
	}
	for _, sc := range cfg.Scenarios {
		if sc.Series < 0 || sc.Series >= len(walks) {
			continue
		}
		out.Scenarios[sc.Name] = terminalShare(paths[sc.Series][cfg.Horizon-1], walks[sc.Series].current, sc.Threshold, sc.Above)
	}

	worst := features.PercentileSorted(terminal, 1)
	best := features.PercentileSorted(terminal, 99)
	out.StressExtremes = map[string]float64{
		"worst_case":        worst,
		"best_case":         best,
		"worst_case_return": ratioChange(worst, primary.current),
		"best_case_return":  ratioChange(best, primary.current),
	}

	p5 := features.PercentileSorted(terminal, 5)
	out.RiskMetrics = map[string]float64{
		"decline_probability": terminalShare(terminal, primary.current, 1, false),
		"expected_return":     ratioChange(features.Mean(terminal), primary.current),
		"value_at_risk_5pct":  math.Max(0, -ratioChange(p5, primary.current)),
	}
	out.Status = models.StatusOK
	return out, nil
}

func summarizeWalk(w walk, steps [][]float64) models.SimulatedSeries {
	horizon := len(steps)
	ss := models.SimulatedSeries{
		Name:     w.name,
		Current:  w.current,
		Drift:    w.drift,
		Vol:      w.vol,
		MeanPath: make([]float64, horizon),
		Bands:    make(map[string]models.Band, len(bandLevels)),
	}
	for _, b := range bandLevels {
		ss.Bands[b.name] = models.Band{Lower: make([]float64, horizon), Upper: make([]float64, horizon)}
	}
	sorted := make([]float64, 0)
	for h, vals := range steps {
		mean := features.Mean(vals)
		ss.MeanPath[h] = mean
		sorted = append(sorted[:0], vals...)
		sort.Float64s(sorted)
		for _, b := range bandLevels {
			band := ss.Bands[b.name]
			band.Lower[h] = math.Min(features.PercentileSorted(sorted, b.lo), mean)
			band.Upper[h] = math.Max(features.PercentileSorted(sorted, b.hi), mean)
		}
	}
	// sorted holds the terminal step after the loop
	ss.Terminal = models.TerminalSummary{
		Mean:        ss.MeanPath[horizon-1],
		Std:         features.StdDev(sorted),
		Median:      features.PercentileSorted(sorted, 50),
		Percentiles: make(map[string]float64, len(terminalPercentiles)),
	}
	for _, p := range terminalPercentiles {
		ss.Terminal.Percentiles[percentileKey(p)] = features.PercentileSorted(sorted, p)
	}
	return ss
}

func percentileKey(p float64) string { return fmt.Sprintf("p%g", p) }

// terminalShare is the fraction of terminal values whose ratio to current
// is above (or below) threshold.
func terminalShare(terminal []float64, current, threshold float64, above bool) float64 {
	if len(terminal) == 0 || current == 0 {
		return 0
	}
	hits := 0
	for _, v := range terminal {
		r := v / current
		if (above && r > threshold) || (!above && r < threshold) {
			hits++
		}
	}
	return float64(hits) / float64(len(terminal))
}

func ratioChange(v, current float64) float64 {
	if current == 0 {
		return 0
	}
	return features.Safe(v/current-1, 0)
}
