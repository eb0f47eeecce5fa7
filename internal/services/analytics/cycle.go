package analytics

import (
	"context"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	cycleMinPoints  = 50
	cycleComponents = 5
	waveletLevels   = 4
)

// SpectralCycles finds the dominant period with a real FFT of the detrended
// series and summarizes a Haar wavelet decomposition alongside it.
type SpectralCycles struct{}

var _ domsvc.CycleAnalyzer = (*SpectralCycles)(nil)

func NewSpectralCycles() *SpectralCycles { return &SpectralCycles{} }

func (c *SpectralCycles) Analyze(ctx context.Context, values []float64, ts []time.Time) (*models.CycleAnalysis, error) {
	if len(values) < cycleMinPoints {
		return &models.CycleAnalysis{Status: models.StatusInsufficientData, Phase: "Unknown"}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := len(values)
	detrended := features.Detrend(values)
	coeff := fourier.NewFFT(n).Coefficients(nil, detrended)

	power := make([]float64, len(coeff))
	total := 0.0
	dominant := 0
	for k := 1; k < len(coeff); k++ {
		p := cmplx.Abs(coeff[k])
		power[k] = p * p
		total += power[k]
		if dominant == 0 || power[k] > power[dominant] {
			dominant = k
		}
	}

	out := &models.CycleAnalysis{Status: models.StatusOK}
	out.Position = rangePosition(values)
	out.Phase = cyclePhase(out.Position)
	out.Wavelet = haarEnergies(values, waveletLevels)

	if total == 0 || dominant == 0 {
		// flat after detrending: no cycle
		return out, nil
	}

	spacing := features.MedianSpacingDays(unixSeconds(ts))
	period := float64(n) / float64(dominant)
	out.DominantPeriod = period
	out.DominantPeriodDays = period * spacing
	out.Strength = features.Clamp01(power[dominant] / total)
	out.Components = topComponents(power, n, total, cycleComponents)
	out.HarmonicContent = harmonicShare(power, dominant, total)

	if len(ts) > 0 {
		peak, trough := nextTurns(out.Position, out.DominantPeriodDays)
		last := ts[len(ts)-1]
		p := last.Add(time.Duration(peak * float64(24*time.Hour)))
		t := last.Add(time.Duration(trough * float64(24*time.Hour)))
		out.NextPeak, out.NextTrough = &p, &t
	}
	return out, nil
}

// rangePosition is where the latest value sits in the observed range.
// Phase labels come from this position, not from the phase angle of the
// dominant FFT component: that angle is taken on the detrended series and
// says nothing about level, so a rising series near its high would read as
// a trough.
func rangePosition(values []float64) float64 {
	lo, hi := features.MinMax(values)
	if hi == lo {
		return 0.5
	}
	return features.Clamp01((values[len(values)-1] - lo) / (hi - lo))
}

func cyclePhase(pos float64) string {
	switch {
	case pos < 0.2:
		return "Trough - Accumulation"
	case pos < 0.4:
		return "Early Bull - Recovery"
	case pos < 0.6:
		return "Mid Bull - Growth"
	case pos < 0.8:
		return "Late Bull - Euphoria"
	default:
		return "Peak - Distribution"
	}
}

// nextTurns returns days until the next peak and trough given the position
// within the current cycle.
func nextTurns(pos, periodDays float64) (peak, trough float64) {
	half := periodDays / 2
	if pos > 0.5 {
		trough = periodDays * (1 - pos)
		peak = trough + half
		return peak, trough
	}
	peak = periodDays * (0.5 - pos)
	trough = peak + half
	return peak, trough
}

func topComponents(power []float64, n int, total float64, limit int) []models.SpectralComponent {
	ks := make([]int, 0, len(power))
	for k := 1; k < len(power); k++ {
		ks = append(ks, k)
	}
	sort.SliceStable(ks, func(i, j int) bool { return power[ks[i]] > power[ks[j]] })
	if len(ks) > limit {
		ks = ks[:limit]
	}
	out := make([]models.SpectralComponent, 0, len(ks))
	for _, k := range ks {
		out = append(out, models.SpectralComponent{
			Period: float64(n) / float64(k),
			Power:  power[k],
			Share:  power[k] / total,
		})
	}
	return out
}

// harmonicShare is the fraction of power at integer multiples of the
// dominant frequency, the fundamental included.
func harmonicShare(power []float64, dominant int, total float64) float64 {
	sum := 0.0
	for k := dominant; k < len(power); k += dominant {
		sum += power[k]
	}
	return features.Clamp01(sum / total)
}

// haarEnergies runs an orthonormal Haar transform for up to levels levels.
// Odd-length tails are padded by repeating the last sample.
func haarEnergies(values []float64, levels int) *models.WaveletEnergies {
	approx := append([]float64(nil), values...)
	out := &models.WaveletEnergies{}
	for l := 0; l < levels && len(approx) >= 2; l++ {
		if len(approx)%2 == 1 {
			approx = append(approx, approx[len(approx)-1])
		}
		next := make([]float64, len(approx)/2)
		energy := 0.0
		for i := range next {
			a, b := approx[2*i], approx[2*i+1]
			next[i] = (a + b) / math.Sqrt2
			d := (a - b) / math.Sqrt2
			energy += d * d
		}
		out.Details = append(out.Details, energy)
		approx = next
	}
	for _, a := range approx {
		out.Approximation += a * a
	}
	out.Total = out.Approximation
	for _, d := range out.Details {
		out.Total += d
	}
	return out
}

func unixSeconds(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = float64(t.Unix())
	}
	return out
}
