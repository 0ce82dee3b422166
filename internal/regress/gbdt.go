// Package regress implements a small gradient-boosted regression-tree
// learner: squared-error boosting over depth-limited CART trees. It is the
// trainable capability behind the model adapter; training is a single
// batched fit and the resulting model is immutable and safe for concurrent
// Predict calls.
//
// The learner is fully deterministic: no row or column subsampling, exact
// greedy splits, ties broken by the lowest feature index.
package regress

import (
	"fmt"
	"math"
	"sort"
)

// Params are the boosting hyperparameters.
type Params struct {
	NumTrees       int     `json:"num_trees"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// DefaultParams returns the production hyperparameters.
func DefaultParams() Params {
	return Params{
		NumTrees:       300,
		LearningRate:   0.05,
		MaxDepth:       5,
		MinSamplesLeaf: 2,
	}
}

// Model is a fitted boosted ensemble. Read-only after Fit.
type Model struct {
	base  float64
	rate  float64
	trees []*node
	width int
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
	leaf      bool
}

// Fit trains the ensemble on the given matrix. Every row must have the same
// width. y is the regression target.
func Fit(x [][]float64, y []float64, p Params) (*Model, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("empty training matrix")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("feature/target length mismatch: %d vs %d", len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has width %d, want %d", i, len(row), width)
		}
	}
	if p.NumTrees <= 0 || p.LearningRate <= 0 || p.MaxDepth <= 0 {
		return nil, fmt.Errorf("invalid boosting params: %+v", p)
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}

	m := &Model{base: mean(y), rate: p.LearningRate, width: width}

	// Boost on residuals of the running prediction.
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}
	residual := make([]float64, len(y))
	indices := make([]int, len(y))

	for t := 0; t < p.NumTrees; t++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		for i := range indices {
			indices[i] = i
		}

		tree := growTree(x, residual, indices, p.MaxDepth, p.MinSamplesLeaf)
		m.trees = append(m.trees, tree)

		for i, row := range x {
			pred[i] += m.rate * tree.eval(row)
		}
	}

	return m, nil
}

// Predict returns the ensemble output for one feature vector.
func (m *Model) Predict(x []float64) (float64, error) {
	if len(x) != m.width {
		return 0, fmt.Errorf("feature vector width %d, model expects %d", len(x), m.width)
	}
	out := m.base
	for _, t := range m.trees {
		out += m.rate * t.eval(x)
	}
	return out, nil
}

// NumTrees reports the ensemble size.
func (m *Model) NumTrees() int {
	return len(m.trees)
}

func (n *node) eval(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func growTree(x [][]float64, target []float64, indices []int, depth, minLeaf int) *node {
	if depth == 0 || len(indices) < 2*minLeaf {
		return leafNode(target, indices)
	}

	feature, threshold, gain := bestSplit(x, target, indices, minLeaf)
	if gain <= 0 {
		return leafNode(target, indices)
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < minLeaf || len(right) < minLeaf {
		return leafNode(target, indices)
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      growTree(x, target, left, depth-1, minLeaf),
		right:     growTree(x, target, right, depth-1, minLeaf),
	}
}

func leafNode(target []float64, indices []int) *node {
	sum := 0.0
	for _, i := range indices {
		sum += target[i]
	}
	return &node{leaf: true, value: sum / float64(len(indices))}
}

// bestSplit scans every feature for the threshold that maximizes variance
// reduction. Candidate thresholds sit between consecutive distinct sorted
// values.
func bestSplit(x [][]float64, target []float64, indices []int, minLeaf int) (int, float64, float64) {
	n := len(indices)
	width := len(x[indices[0]])

	var totalSum, totalSq float64
	for _, i := range indices {
		totalSum += target[i]
		totalSq += target[i] * target[i]
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	order := make([]int, n)
	for f := 0; f < width; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool {
			return x[order[a]][f] < x[order[b]][f]
		})

		var leftSum, leftSq float64
		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			leftSum += target[i]
			leftSq += target[i] * target[i]

			cur, next := x[i][f], x[order[pos+1]][f]
			if cur == next {
				continue
			}
			leftN := pos + 1
			rightN := n - leftN
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			leftSSE := leftSq - leftSum*leftSum/float64(leftN)
			rightSSE := rightSq - rightSum*rightSum/float64(rightN)
			gain := parentSSE - leftSSE - rightSSE

			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 || math.IsNaN(bestThreshold) {
		return -1, 0, 0
	}
	return bestFeature, bestThreshold, bestGain
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}
