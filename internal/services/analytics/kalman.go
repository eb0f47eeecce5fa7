package analytics

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	MethodLocalTrend = "local_linear_trend"
	MethodFixedGain  = "fixed_gain"

	// measurement noise adapts to squared innovations at this rate
	kalmanAdapt    = 0.05
	kalmanMinNoise = 1e-12
)

// LocalTrendKalman is a two-state (level, trend) Kalman filter with an
// adaptive measurement variance and a Rauch-Tung-Striebel smoothing pass.
type LocalTrendKalman struct{}

var _ domsvc.Smoother = (*LocalTrendKalman)(nil)

var errSingular = errors.New("singular state covariance")

func NewLocalTrendKalman() *LocalTrendKalman { return &LocalTrendKalman{} }

func (LocalTrendKalman) Method() string { return MethodLocalTrend }

func (LocalTrendKalman) Smooth(ctx context.Context, name string, values []float64) (models.KalmanSeries, error) {
	out := models.KalmanSeries{Name: name}
	n := len(values)
	if n < 2 {
		return fixedGain(name, values), nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	r := diffVariance(values)
	if r <= kalmanMinNoise {
		r = math.Max(features.Variance(values)*0.01, kalmanMinNoise)
	}
	F := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	Q := mat.NewDense(2, 2, []float64{r * 0.01, 0, 0, r * 0.001})

	x := mat.NewVecDense(2, []float64{values[0], values[1] - values[0]})
	P := mat.NewDense(2, 2, []float64{r, 0, 0, r})

	xs := make([]*mat.VecDense, n)
	ps := make([]*mat.Dense, n)
	xp := make([]*mat.VecDense, n)
	pp := make([]*mat.Dense, n)

	for t, y := range values {
		var xPred mat.VecDense
		var pPred mat.Dense
		if t == 0 {
			xPred.CloneFromVec(x)
			pPred.CloneFrom(P)
		} else {
			xPred.MulVec(F, x)
			pPred.Product(F, P, F.T())
			pPred.Add(&pPred, Q)
		}
		xp[t], pp[t] = &xPred, &pPred

		innov := y - xPred.AtVec(0)
		s := pPred.At(0, 0) + r
		if !(s > 0) {
			return out, models.FitFailure(models.StageKalman, errSingular)
		}
		k0, k1 := pPred.At(0, 0)/s, pPred.At(1, 0)/s

		xNew := mat.NewVecDense(2, []float64{xPred.AtVec(0) + k0*innov, xPred.AtVec(1) + k1*innov})
		ikh := mat.NewDense(2, 2, []float64{1 - k0, 0, -k1, 1})
		var pNew mat.Dense
		pNew.Mul(ikh, &pPred)

		xs[t], ps[t] = xNew, &pNew
		x, P = xNew, &pNew
		r = math.Max((1-kalmanAdapt)*r+kalmanAdapt*innov*innov, kalmanMinNoise)
	}

	smoothX := make([]*mat.VecDense, n)
	smoothP := make([]*mat.Dense, n)
	smoothX[n-1], smoothP[n-1] = xs[n-1], ps[n-1]
	for t := n - 2; t >= 0; t-- {
		var inv mat.Dense
		if err := inv.Inverse(pp[t+1]); err != nil {
			return out, models.FitFailure(models.StageKalman, err)
		}
		var c mat.Dense
		c.Product(ps[t], F.T(), &inv)

		var dx mat.VecDense
		dx.SubVec(smoothX[t+1], xp[t+1])
		var adj mat.VecDense
		adj.MulVec(&c, &dx)
		var sx mat.VecDense
		sx.AddVec(xs[t], &adj)

		var dp mat.Dense
		dp.Sub(smoothP[t+1], pp[t+1])
		var sp mat.Dense
		sp.Product(&c, &dp, c.T())
		sp.Add(&sp, ps[t])

		smoothX[t], smoothP[t] = &sx, &sp
	}

	out.Filtered = make([]float64, n)
	out.Smoothed = make([]float64, n)
	out.Trend = make([]float64, n)
	for t := 0; t < n; t++ {
		out.Filtered[t] = xs[t].AtVec(0)
		out.Smoothed[t] = smoothX[t].AtVec(0)
		out.Trend[t] = smoothX[t].AtVec(1)
		if math.IsNaN(out.Smoothed[t]) || math.IsInf(out.Smoothed[t], 0) {
			return models.KalmanSeries{Name: name}, models.FitFailure(models.StageKalman, errSingular)
		}
	}
	out.CurrentTrend = out.Trend[n-1]
	out.NoiseReduction = noiseReduction(values, out.Filtered)
	return out, nil
}

func diffVariance(values []float64) float64 {
	d := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		d = append(d, values[i]-values[i-1])
	}
	return features.Variance(d)
}

func noiseReduction(raw, filtered []float64) float64 {
	v := features.Variance(raw)
	if v == 0 {
		return 0
	}
	return features.Safe(1-features.Variance(filtered)/v, 0)
}

// FixedGainFilter is the scalar recursive fallback: P grows by 0.1 each
// step and the gain is P/(P+0.5).
type FixedGainFilter struct{}

var _ domsvc.Smoother = (*FixedGainFilter)(nil)

func NewFixedGainFilter() *FixedGainFilter { return &FixedGainFilter{} }

func (FixedGainFilter) Method() string { return MethodFixedGain }

func (FixedGainFilter) Smooth(_ context.Context, name string, values []float64) (models.KalmanSeries, error) {
	return fixedGain(name, values), nil
}

func fixedGain(name string, values []float64) models.KalmanSeries {
	out := models.KalmanSeries{
		Name:     name,
		Filtered: make([]float64, len(values)),
		Trend:    make([]float64, len(values)),
	}
	if len(values) == 0 {
		return out
	}
	state, p := values[0], 1.0
	for i, y := range values {
		if i > 0 {
			p += 0.1
			k := p / (p + 0.5)
			state += k * (y - state)
			p *= 1 - k
		}
		out.Filtered[i] = state
		if i > 0 {
			out.Trend[i] = out.Filtered[i] - out.Filtered[i-1]
		}
	}
	out.Smoothed = append([]float64(nil), out.Filtered...)
	out.CurrentTrend = out.Trend[len(out.Trend)-1]
	out.NoiseReduction = noiseReduction(values, out.Filtered)
	return out
}
