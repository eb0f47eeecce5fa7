package analytics

import (
	"context"
	"errors"
	"math"
	"sort"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	MethodHMM       = "gaussian_hmm"
	MethodThreshold = "threshold"

	hmmMinReturns  = 30
	hmmMaxIter     = 100
	hmmTolerance   = 1e-6
	hmmVarFloor    = 1e-10
	hmmStickyInit  = 0.9
	fallbackStay   = 0.9
	fallbackSwitch = 0.1
	fallbackWeight = 0.7
	fallbackOther  = 0.3
)

var errDegenerateHMM = errors.New("degenerate likelihood")

// GaussianHMM fits a hidden Markov model with Gaussian emissions by
// Baum-Welch with per-step scaling. States are reported in ascending order
// of their mean so that labels are stable across runs.
type GaussianHMM struct {
	MaxIter   int
	Tolerance float64
}

var _ domsvc.RegimeModel = (*GaussianHMM)(nil)

func NewGaussianHMM() *GaussianHMM {
	return &GaussianHMM{MaxIter: hmmMaxIter, Tolerance: hmmTolerance}
}

func (h *GaussianHMM) Method() string { return MethodHMM }

func (h *GaussianHMM) Fit(ctx context.Context, returns []float64, k int) (*models.RegimeAnalysis, error) {
	if len(returns) < hmmMinReturns {
		return nil, models.InsufficientData(models.StageRegime, len(returns), hmmMinReturns)
	}
	if k < 2 {
		k = 2
	}

	T := len(returns)
	means, vars := quantileInit(returns, k)
	pi := make([]float64, k)
	A := make([][]float64, k)
	for i := range A {
		pi[i] = 1 / float64(k)
		A[i] = make([]float64, k)
		for j := range A[i] {
			if i == j {
				A[i][j] = hmmStickyInit
			} else {
				A[i][j] = (1 - hmmStickyInit) / float64(k-1)
			}
		}
	}

	var (
		gamma [][]float64
		ll    float64
		prev  = math.Inf(-1)
	)
	for iter := 0; iter < h.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var xiSum [][]float64
		var err error
		gamma, xiSum, ll, err = hmmEStep(returns, pi, A, means, vars)
		if err != nil {
			return nil, models.FitFailure(models.StageRegime, err)
		}

		// M-step
		for i := 0; i < k; i++ {
			pi[i] = gamma[0][i]
			occ := 0.0
			for t := 0; t < T-1; t++ {
				occ += gamma[t][i]
			}
			for j := 0; j < k; j++ {
				if occ > 0 {
					A[i][j] = xiSum[i][j] / occ
				}
			}
			normalizeRow(A[i])

			w, mu := 0.0, 0.0
			for t := 0; t < T; t++ {
				w += gamma[t][i]
				mu += gamma[t][i] * returns[t]
			}
			if w <= 0 {
				return nil, models.FitFailure(models.StageRegime, errDegenerateHMM)
			}
			mu /= w
			v := 0.0
			for t := 0; t < T; t++ {
				d := returns[t] - mu
				v += gamma[t][i] * d * d
			}
			means[i] = mu
			vars[i] = math.Max(v/w, hmmVarFloor)
		}

		if math.Abs(ll-prev) < h.Tolerance {
			break
		}
		prev = ll
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return means[order[a]] < means[order[b]] })

	labels := regimeLabels(k)
	out := &models.RegimeAnalysis{
		Status:        models.StatusOK,
		Method:        MethodHMM,
		Probabilities: make([]float64, k),
		Transition:    make([][]float64, k),
		LogLikelihood: ll,
	}
	last := gamma[T-1]
	best := 0
	for newIdx, old := range order {
		out.Probabilities[newIdx] = last[old]
		if last[old] > out.Probabilities[best] {
			best = newIdx
		}
		row := make([]float64, k)
		for j, oldJ := range order {
			row[j] = A[old][oldJ]
		}
		out.Transition[newIdx] = row
		stay := A[old][old]
		out.Regimes = append(out.Regimes, models.RegimeStats{
			ID:               newIdx,
			Label:            labels[newIdx],
			Mean:             means[old],
			Volatility:       math.Sqrt(vars[old]),
			ExpectedDuration: expectedDuration(stay),
		})
		out.Persistence += stay / float64(k)
	}
	normalizeRow(out.Probabilities)
	out.CurrentRegime = best
	out.CurrentLabel = labels[best]
	return out, nil
}

// hmmEStep runs the scaled forward-backward pass and returns the state
// posteriors, the summed pairwise posteriors and the log-likelihood.
func hmmEStep(x, pi []float64, A [][]float64, means, vars []float64) ([][]float64, [][]float64, float64, error) {
	T, k := len(x), len(pi)
	b := make([][]float64, T)
	for t := range b {
		b[t] = make([]float64, k)
		for i := 0; i < k; i++ {
			b[t][i] = gaussPDF(x[t], means[i], vars[i])
		}
	}

	alpha := make([][]float64, T)
	scale := make([]float64, T)
	ll := 0.0
	for t := 0; t < T; t++ {
		alpha[t] = make([]float64, k)
		for j := 0; j < k; j++ {
			if t == 0 {
				alpha[t][j] = pi[j] * b[t][j]
				continue
			}
			s := 0.0
			for i := 0; i < k; i++ {
				s += alpha[t-1][i] * A[i][j]
			}
			alpha[t][j] = s * b[t][j]
		}
		c := 0.0
		for _, a := range alpha[t] {
			c += a
		}
		if !(c > 0) || math.IsInf(c, 0) {
			return nil, nil, 0, errDegenerateHMM
		}
		for j := range alpha[t] {
			alpha[t][j] /= c
		}
		scale[t] = c
		ll += math.Log(c)
	}

	beta := make([][]float64, T)
	beta[T-1] = make([]float64, k)
	for i := range beta[T-1] {
		beta[T-1][i] = 1
	}
	for t := T - 2; t >= 0; t-- {
		beta[t] = make([]float64, k)
		for i := 0; i < k; i++ {
			s := 0.0
			for j := 0; j < k; j++ {
				s += A[i][j] * b[t+1][j] * beta[t+1][j]
			}
			beta[t][i] = s / scale[t+1]
		}
	}

	gamma := make([][]float64, T)
	for t := 0; t < T; t++ {
		gamma[t] = make([]float64, k)
		for i := 0; i < k; i++ {
			gamma[t][i] = alpha[t][i] * beta[t][i]
		}
		normalizeRow(gamma[t])
	}

	xi := make([][]float64, k)
	for i := range xi {
		xi[i] = make([]float64, k)
	}
	for t := 0; t < T-1; t++ {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				xi[i][j] += alpha[t][i] * A[i][j] * b[t+1][j] * beta[t+1][j] / scale[t+1]
			}
		}
	}
	return gamma, xi, ll, nil
}

func gaussPDF(x, mean, variance float64) float64 {
	d := x - mean
	p := math.Exp(-d*d/(2*variance)) / math.Sqrt(2*math.Pi*variance)
	// keep every state reachable under extreme outliers
	return math.Max(p, 1e-300)
}

// quantileInit seeds means from equal-count chunks of the sorted returns.
func quantileInit(x []float64, k int) (means, vars []float64) {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	v := math.Max(features.Variance(x), hmmVarFloor)
	means = make([]float64, k)
	vars = make([]float64, k)
	for i := 0; i < k; i++ {
		lo := i * len(sorted) / k
		hi := (i + 1) * len(sorted) / k
		means[i] = features.Mean(sorted[lo:hi])
		vars[i] = v
	}
	return means, vars
}

func normalizeRow(row []float64) {
	s := 0.0
	for _, v := range row {
		s += v
	}
	if !(s > 0) {
		for i := range row {
			row[i] = 1 / float64(len(row))
		}
		return
	}
	for i := range row {
		row[i] /= s
	}
}

// expectedDuration is 1/(1-p_ii), capped so absorbing states stay finite.
func expectedDuration(stay float64) float64 {
	return 1 / math.Max(1-stay, 1e-6)
}

func regimeLabels(k int) []string {
	if k == 3 {
		return []string{"contraction", "stable", "expansion"}
	}
	labels := []string{"contraction", "expansion"}
	for len(labels) < k {
		labels = append(labels, "expansion")
	}
	return labels
}

// ThresholdRegimes splits returns around their mean. It is the fallback when
// the HMM cannot be fit.
type ThresholdRegimes struct{}

var _ domsvc.RegimeModel = (*ThresholdRegimes)(nil)

func NewThresholdRegimes() *ThresholdRegimes { return &ThresholdRegimes{} }

func (ThresholdRegimes) Method() string { return MethodThreshold }

func (ThresholdRegimes) Fit(_ context.Context, returns []float64, _ int) (*models.RegimeAnalysis, error) {
	if len(returns) < 2 {
		return &models.RegimeAnalysis{Status: models.StatusInsufficientData, Method: MethodThreshold}, nil
	}
	mean := features.Mean(returns)
	var below, above []float64
	for _, r := range returns {
		if r > mean {
			above = append(above, r)
		} else {
			below = append(below, r)
		}
	}
	current := 0
	probs := []float64{fallbackWeight, fallbackOther}
	if returns[len(returns)-1] > mean {
		current = 1
		probs = []float64{fallbackOther, fallbackWeight}
	}
	duration := expectedDuration(fallbackStay)
	return &models.RegimeAnalysis{
		Status:        models.StatusOK,
		Method:        MethodThreshold,
		CurrentRegime: current,
		CurrentLabel:  regimeLabels(2)[current],
		Probabilities: probs,
		Regimes: []models.RegimeStats{
			{ID: 0, Label: "contraction", Mean: features.Mean(below), Volatility: features.StdDev(below), ExpectedDuration: duration},
			{ID: 1, Label: "expansion", Mean: features.Mean(above), Volatility: features.StdDev(above), ExpectedDuration: duration},
		},
		Transition: [][]float64{
			{fallbackStay, fallbackSwitch},
			{fallbackSwitch, fallbackStay},
		},
		Persistence: fallbackStay,
	}, nil
}
