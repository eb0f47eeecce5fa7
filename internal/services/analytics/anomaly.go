package analytics

import (
	"context"
	"math"
	"math/rand"

	"ChainPulse/internal/domain/models"
	domsvc "ChainPulse/internal/domain/service"
	"ChainPulse/internal/services/features"
)

const (
	anomalyMinPoints = 20
	anomalyLookback  = 5
	forestTrees      = 100
	forestSample     = 256
	contamination    = 0.10
	eulerGamma       = 0.5772156649015329
)

// IsolationForest scores each observation by how quickly random axis
// splits isolate it. Scores are 2^(-E[h]/c(psi)) and lie in (0, 1].
type IsolationForest struct {
	Trees int
}

var _ domsvc.AnomalyScorer = (*IsolationForest)(nil)

func NewIsolationForest() *IsolationForest { return &IsolationForest{Trees: forestTrees} }

func (f *IsolationForest) Score(ctx context.Context, values []float64, opts domsvc.AnomalyOptions) (*models.AnomalyDetection, error) {
	if len(values) < anomalyMinPoints {
		return &models.AnomalyDetection{
			Status:     models.StatusInsufficientData,
			Severity:   "Low",
			Context:    "Insufficient data for anomaly detection",
			Historical: []models.FlaggedPoint{},
		}, nil
	}

	rows, devs := anomalyFeatures(values)
	rng := rand.New(rand.NewSource(opts.Seed))
	psi := len(rows)
	if psi > forestSample {
		psi = forestSample
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))

	trees := make([]*isoNode, f.Trees)
	for i := range trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		perm := rng.Perm(len(rows))[:psi]
		sample := make([][]float64, psi)
		for j, idx := range perm {
			sample[j] = rows[idx]
		}
		trees[i] = buildIsoTree(rng, sample, 0, limit)
	}

	norm := avgPathLength(psi)
	scores := make([]float64, len(rows))
	for i, row := range rows {
		h := 0.0
		for _, t := range trees {
			h += t.pathLength(row, 0)
		}
		h /= float64(len(trees))
		scores[i] = math.Pow(2, -h/norm)
	}

	cut := features.Percentile(scores, 100*(1-contamination))
	lo, _ := features.MinMax(scores)
	flagged := func(s float64) bool { return s >= cut && cut > lo }

	out := &models.AnomalyDetection{Status: models.StatusOK, Historical: []models.FlaggedPoint{}}
	for i, s := range scores {
		if !flagged(s) {
			continue
		}
		src := i + anomalyLookback
		out.Historical = append(out.Historical, models.FlaggedPoint{
			Index: src,
			Value: values[src],
			Score: s,
			Type:  anomalyType(values[src], devs[i], opts),
		})
	}

	last := len(scores) - 1
	out.Score = scores[last]
	out.IsAnomaly = flagged(scores[last])
	out.Severity = anomalySeverity(scores[last])
	if out.IsAnomaly {
		out.Type = anomalyType(values[len(values)-1], devs[last], opts)
	}
	out.Context = anomalyContext(out.Type)
	return out, nil
}

// anomalyFeatures builds [value, ma5, std5, deviation, range position]
// from the five observations preceding each index.
func anomalyFeatures(values []float64) (rows [][]float64, devs []float64) {
	for i := anomalyLookback; i < len(values); i++ {
		window := values[i-anomalyLookback : i]
		ma := features.Mean(window)
		lo, hi := features.MinMax(window)
		dev := 0.0
		if ma != 0 {
			dev = values[i]/ma - 1
		}
		rows = append(rows, []float64{
			values[i],
			ma,
			features.PopStdDev(window),
			dev,
			(values[i] - lo) / (hi - lo + 1e-8),
		})
		devs = append(devs, dev)
	}
	return rows, devs
}

func anomalyType(value, dev float64, opts domsvc.AnomalyOptions) string {
	x := value
	if opts.Relative {
		x = dev
	}
	switch {
	case opts.High != opts.Low && x > opts.High:
		return "High"
	case opts.High != opts.Low && x < opts.Low:
		return "Low"
	default:
		return "Statistical"
	}
}

func anomalySeverity(score float64) string {
	switch {
	case score > 0.7:
		return "High"
	case score > 0.6:
		return "Medium"
	default:
		return "Low"
	}
}

func anomalyContext(kind string) string {
	switch kind {
	case "High":
		return "Value is extremely high relative to its history, potentially indicating a market top"
	case "Low":
		return "Value is extremely low relative to its history, potentially indicating a market bottom"
	case "Statistical":
		return "Statistical anomaly detected in recent patterns"
	default:
		return "No significant anomaly detected in current conditions"
	}
}

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int
}

func buildIsoTree(rng *rand.Rand, rows [][]float64, depth, limit int) *isoNode {
	if depth >= limit || len(rows) <= 1 {
		return &isoNode{size: len(rows)}
	}
	feature := rng.Intn(len(rows[0]))
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows[1:] {
		lo = math.Min(lo, r[feature])
		hi = math.Max(hi, r[feature])
	}
	if lo == hi {
		return &isoNode{size: len(rows)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildIsoTree(rng, left, depth+1, limit),
		right:   buildIsoTree(rng, right, depth+1, limit),
	}
}

func (n *isoNode) pathLength(x []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if x[n.feature] < n.split {
		return n.left.pathLength(x, depth+1)
	}
	return n.right.pathLength(x, depth+1)
}

// avgPathLength is c(n), the mean unsuccessful-search depth of a BST.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}
