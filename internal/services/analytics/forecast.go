package analytics

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	ModelRandomForest     = "random_forest"
	ModelGradientBoosting = "gradient_boosting"

	forecastMinPoints = 50
	forecastMinRows   = 20
	forecastTrainFrac = 0.8
	trendLookback     = 10
	trendScoreWindow  = 30
)

// TreeEnsemble averages a random forest and a gradient-boosted model fit on
// lagged features. Accuracy is measured on a chronological holdout.
type TreeEnsemble struct {
	ForestTrees int
	BoostStages int
	LearnRate   float64
}

var _ domsvc.Forecaster = (*TreeEnsemble)(nil)

func NewTreeEnsemble() *TreeEnsemble {
	return &TreeEnsemble{ForestTrees: 50, BoostStages: 100, LearnRate: 0.1}
}

func (e *TreeEnsemble) Forecast(ctx context.Context, values []float64, horizon int, confidence float64, seed int64) (models.Prediction, error) {
	pred := naivePrediction(values, horizon)
	if len(values) < forecastMinPoints {
		describeTrend(&pred, values)
		return pred, nil
	}

	rows, idx := features.LaggedMatrix(values)
	var X [][]float64
	var y []float64
	for i, row := range rows {
		if idx[i]+horizon < len(values) {
			X = append(X, row)
			y = append(y, values[idx[i]+horizon])
		}
	}
	if len(X) < forecastMinRows {
		describeTrend(&pred, values)
		return pred, nil
	}
	latest := rows[len(rows)-1]

	split := int(forecastTrainFrac * float64(len(X)))
	trainX, trainY := X[:split], y[:split]
	testX, testY := X[split:], y[split:]

	rng := rand.New(rand.NewSource(seed))
	nFeat := len(features.LagFeatureNames)
	rf := fitRandomForest(trainX, trainY, e.ForestTrees,
		treeParams{maxDepth: 8, minLeaf: 2, maxFeatures: max(1, nFeat/3)}, rng)
	if err := ctx.Err(); err != nil {
		return pred, err
	}
	gb := fitGradientBoosting(trainX, trainY, e.BoostStages, e.LearnRate,
		treeParams{maxDepth: 3, minLeaf: 3}, rng)
	if err := ctx.Err(); err != nil {
		return pred, err
	}

	learners := map[string]regressor{ModelRandomForest: rf, ModelGradientBoosting: gb}
	ensemble := func(x []float64) float64 { return (rf.predict(x) + gb.predict(x)) / 2 }

	resid := make([]float64, len(testY))
	fitted := make([]float64, len(testY))
	for i, x := range testX {
		fitted[i] = ensemble(x)
		resid[i] = testY[i] - fitted[i]
	}

	pred.Status = models.StatusOK
	pred.R2 = rSquared(testY, fitted)
	pred.ResidualStd = features.PopStdDev(resid)
	pred.Confidence = features.Clamp01(pred.R2)
	pred.Value = ensemble(latest)
	z := distuv.UnitNormal.Quantile((1 + confidence) / 2)
	pred.Lower = pred.Value - z*pred.ResidualStd
	pred.Upper = pred.Value + z*pred.ResidualStd

	pred.ModelPredictions = make(map[string]float64, len(learners))
	pred.FeatureImportance = make(map[string]map[string]float64, len(learners))
	for name, m := range learners {
		pred.ModelPredictions[name] = m.predict(latest)
		imp := m.importance()
		byName := make(map[string]float64, len(imp))
		for i, v := range imp {
			byName[features.LagFeatureNames[i]] = v
		}
		pred.FeatureImportance[name] = byName
	}
	describeTrend(&pred, values)
	return pred, nil
}

// naivePrediction carries the last value forward with zero confidence.
func naivePrediction(values []float64, horizon int) models.Prediction {
	last := features.Last(values)
	return models.Prediction{
		Status:  models.StatusInsufficientData,
		Horizon: horizon,
		Value:   last,
		Lower:   last,
		Upper:   last,
	}
}

// describeTrend fills the trend label and the reversal heuristics.
func describeTrend(p *models.Prediction, values []float64) {
	p.Trend = "Sideways"
	if len(values) < 2 {
		return
	}
	recent := features.Tail(values, trendLookback)
	diffs := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		diffs = append(diffs, recent[i]-recent[i-1])
	}
	scale := math.Abs(features.Mean(recent))
	step := features.Mean(diffs)
	if scale > 0 {
		step /= scale
	}
	switch {
	case step > 0.01:
		p.Trend = "Upward"
	case step < -0.01:
		p.Trend = "Downward"
	}

	p.TrendScore = features.Clamp(features.IndexCorrelation(features.Tail(values, trendScoreWindow)), -1, 1)

	mean := features.Mean(values)
	cur := features.Last(values)
	if mean != 0 {
		p.MeanReversionScore = math.Min(math.Abs(cur-mean)/math.Abs(mean)*2, 1)
	}

	p.ReversalProbability = 0.3
	if cur > features.Percentile(values, 80) || cur < features.Percentile(values, 20) {
		p.ReversalProbability = 0.7
	}
}

func rSquared(actual, fitted []float64) float64 {
	if len(actual) < 2 {
		return 0
	}
	mean := features.Mean(actual)
	ssRes, ssTot := 0.0, 0.0
	for i, a := range actual {
		ssRes += (a - fitted[i]) * (a - fitted[i])
		ssTot += (a - mean) * (a - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
