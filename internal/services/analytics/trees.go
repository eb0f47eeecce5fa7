package analytics

import (
	"math/rand"
	"sort"
)

// treeParams bounds a single regression tree.
type treeParams struct {
	maxDepth    int
	minLeaf     int
	maxFeatures int // 0 means all
}

type cartNode struct {
	feature     int
	threshold   float64
	value       float64
	left, right *cartNode
}

func (n *cartNode) predict(x []float64) float64 {
	for n.left != nil {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// growTree fits a CART regression tree on the rows in idx by greedy
// variance reduction. Impurity decrease per feature is added to imp.
func growTree(X [][]float64, y []float64, idx []int, depth int, p treeParams, rng *rand.Rand, imp []float64) *cartNode {
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	node := &cartNode{value: sum / float64(len(idx))}
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return node
	}

	nFeat := len(X[0])
	cands := make([]int, nFeat)
	for i := range cands {
		cands[i] = i
	}
	if p.maxFeatures > 0 && p.maxFeatures < nFeat {
		cands = rng.Perm(nFeat)[:p.maxFeatures]
	}

	var (
		bestGain  = 1e-12
		bestFeat  = -1
		bestThr   float64
		bestOrder []int
		bestPos   int
	)
	parent := sum * sum / float64(len(idx))
	order := make([]int, len(idx))
	for _, f := range cands {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })
		left := 0.0
		for k := 0; k < len(order)-1; k++ {
			left += y[order[k]]
			nl := k + 1
			nr := len(order) - nl
			if nl < p.minLeaf || nr < p.minLeaf {
				continue
			}
			if X[order[k]][f] == X[order[k+1]][f] {
				continue
			}
			right := sum - left
			gain := left*left/float64(nl) + right*right/float64(nr) - parent
			if gain > bestGain {
				bestGain, bestFeat, bestPos = gain, f, nl
				bestThr = (X[order[k]][f] + X[order[k+1]][f]) / 2
				bestOrder = append(bestOrder[:0], order...)
			}
		}
	}
	if bestFeat < 0 {
		return node
	}
	imp[bestFeat] += bestGain
	leftIdx := append([]int(nil), bestOrder[:bestPos]...)
	rightIdx := append([]int(nil), bestOrder[bestPos:]...)
	node.feature = bestFeat
	node.threshold = bestThr
	node.left = growTree(X, y, leftIdx, depth+1, p, rng, imp)
	node.right = growTree(X, y, rightIdx, depth+1, p, rng, imp)
	return node
}

type regressor interface {
	predict(x []float64) float64
	importance() []float64
}

// randomForest averages bootstrap-sampled trees with feature subsampling.
type randomForest struct {
	trees []*cartNode
	imp   []float64
}

func fitRandomForest(X [][]float64, y []float64, trees int, p treeParams, rng *rand.Rand) *randomForest {
	rf := &randomForest{imp: make([]float64, len(X[0]))}
	for t := 0; t < trees; t++ {
		sample := make([]int, len(X))
		for i := range sample {
			sample[i] = rng.Intn(len(X))
		}
		rf.trees = append(rf.trees, growTree(X, y, sample, 0, p, rng, rf.imp))
	}
	return rf
}

func (rf *randomForest) predict(x []float64) float64 {
	s := 0.0
	for _, t := range rf.trees {
		s += t.predict(x)
	}
	return s / float64(len(rf.trees))
}

func (rf *randomForest) importance() []float64 { return normalized(rf.imp) }

// gradientBoosting fits shallow trees to squared-error residuals.
type gradientBoosting struct {
	base  float64
	rate  float64
	trees []*cartNode
	imp   []float64
}

func fitGradientBoosting(X [][]float64, y []float64, stages int, rate float64, p treeParams, rng *rand.Rand) *gradientBoosting {
	gb := &gradientBoosting{rate: rate, imp: make([]float64, len(X[0]))}
	for _, v := range y {
		gb.base += v
	}
	gb.base /= float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = gb.base
	}
	resid := make([]float64, len(y))
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}
	for s := 0; s < stages; s++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		t := growTree(X, resid, all, 0, p, rng, gb.imp)
		gb.trees = append(gb.trees, t)
		for i := range pred {
			pred[i] += rate * t.predict(X[i])
		}
	}
	return gb
}

func (gb *gradientBoosting) predict(x []float64) float64 {
	v := gb.base
	for _, t := range gb.trees {
		v += gb.rate * t.predict(x)
	}
	return v
}

func (gb *gradientBoosting) importance() []float64 { return normalized(gb.imp) }

func normalized(v []float64) []float64 {
	out := make([]float64, len(v))
	s := 0.0
	for _, x := range v {
		s += x
	}
	if s == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / s
	}
	return out
}
