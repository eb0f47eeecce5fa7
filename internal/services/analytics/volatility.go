package analytics

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	MethodGARCH      = "garch_1_1"
	MethodRollingStd = "rolling_std"

	garchMinReturns  = 30
	garchScale       = 100.0
	garchPenalty     = 1e10
	garchMaxPersist  = 0.999
	rollingVolWindow = 20
	clusteringCut    = 0.1
)

var errGARCHInvalid = errors.New("garch parameters outside the stationary region")

// GARCH fits a GARCH(1,1) with variance targeting by minimizing the
// Gaussian negative log-likelihood over (alpha, beta) with Nelder-Mead.
// Returns are scaled by 100 for numerical stability and scaled back on output.
type GARCH struct {
	MaxEvaluations int
}

var _ domsvc.VolatilityModel = (*GARCH)(nil)

func NewGARCH() *GARCH { return &GARCH{MaxEvaluations: 2000} }

func (g *GARCH) Method() string { return MethodGARCH }

func (g *GARCH) Fit(ctx context.Context, returns []float64, horizon int) (*models.VolatilityAnalysis, error) {
	if len(returns) < garchMinReturns {
		return nil, models.InsufficientData(models.StageVolatility, len(returns), garchMinReturns)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mean := features.Mean(returns)
	y := make([]float64, len(returns))
	for i, r := range returns {
		y[i] = (r - mean) * garchScale
	}
	target := features.Variance(y)
	if !(target > 0) {
		return nil, models.FitFailure(models.StageVolatility, errors.New("zero variance"))
	}

	nll := func(x []float64) float64 {
		alpha, beta := x[0], x[1]
		if alpha < 0 || beta < 0 || alpha+beta >= garchMaxPersist {
			return garchPenalty
		}
		_, ll := garchFilter(y, target*(1-alpha-beta), alpha, beta, target)
		return ll
	}

	res, err := optimize.Minimize(
		optimize.Problem{Func: nll},
		[]float64{0.1, 0.8},
		&optimize.Settings{FuncEvaluations: g.MaxEvaluations},
		&optimize.NelderMead{},
	)
	if res == nil {
		return nil, models.FitFailure(models.StageVolatility, err)
	}
	alpha, beta := res.X[0], res.X[1]
	if alpha < 0 || beta < 0 || alpha+beta >= garchMaxPersist || res.F >= garchPenalty {
		return nil, models.FitFailure(models.StageVolatility, errGARCHInvalid)
	}
	omega := target * (1 - alpha - beta)
	sigma2, _ := garchFilter(y, omega, alpha, beta, target)

	last := sigma2[len(sigma2)-1]
	next := omega + alpha*y[len(y)-1]*y[len(y)-1] + beta*last
	persistence := alpha + beta
	forecast := make([]float64, horizon)
	for h := range forecast {
		v := target + math.Pow(persistence, float64(h))*(next-target)
		forecast[h] = math.Sqrt(math.Max(v, 0)) / garchScale
	}

	out := &models.VolatilityAnalysis{
		Status:      models.StatusOK,
		Method:      MethodGARCH,
		Current:     math.Sqrt(last) / garchScale,
		Forecast:    forecast,
		Omega:       omega / (garchScale * garchScale),
		Alpha:       alpha,
		Beta:        beta,
		Persistence: persistence,
	}
	describeClustering(out, returns)
	return out, nil
}

// garchFilter returns the conditional variances and the negative
// log-likelihood up to a constant.
func garchFilter(y []float64, omega, alpha, beta, init float64) ([]float64, float64) {
	sigma2 := make([]float64, len(y))
	prev := init
	prevY := 0.0
	nll := 0.0
	for t, v := range y {
		s := init
		if t > 0 {
			s = omega + alpha*prevY*prevY + beta*prev
		}
		if s <= 0 {
			return sigma2, garchPenalty
		}
		sigma2[t] = s
		nll += 0.5 * (math.Log(s) + v*v/s)
		prev, prevY = s, v
	}
	return sigma2, nll
}

// describeClustering fills the regime and clustering fields shared by all
// volatility models.
func describeClustering(out *models.VolatilityAnalysis, returns []float64) {
	abs := features.Abs(returns)
	rank := features.PercentileRank(abs, abs[len(abs)-1])
	switch {
	case rank > 80:
		out.Regime = "high"
	case rank > 40:
		out.Regime = "normal"
	default:
		out.Regime = "low"
	}
	out.Clustering = features.Autocorrelation(abs, 1)
	out.ClusteringDetected = out.Clustering > clusteringCut
}

// RollingVolatility is the fallback when GARCH cannot be fit: a trailing
// standard deviation carried flat over the horizon.
type RollingVolatility struct {
	Window int
}

var _ domsvc.VolatilityModel = (*RollingVolatility)(nil)

func NewRollingVolatility() *RollingVolatility { return &RollingVolatility{Window: rollingVolWindow} }

func (r *RollingVolatility) Method() string { return MethodRollingStd }

func (r *RollingVolatility) Fit(_ context.Context, returns []float64, horizon int) (*models.VolatilityAnalysis, error) {
	if len(returns) < 2 {
		return &models.VolatilityAnalysis{Status: models.StatusInsufficientData, Method: MethodRollingStd}, nil
	}
	current := features.RealizedVolatility(returns, r.Window)
	forecast := make([]float64, horizon)
	for i := range forecast {
		forecast[i] = current
	}
	out := &models.VolatilityAnalysis{
		Status:      models.StatusOK,
		Method:      MethodRollingStd,
		Current:     current,
		Forecast:    forecast,
		Alpha:       0.1,
		Beta:        0.8,
		Persistence: 0.9,
	}
	describeClustering(out, returns)
	return out, nil
}
