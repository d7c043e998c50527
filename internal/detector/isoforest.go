package detector

import (
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
)

// IsolationForest is an unsupervised outlier model: points that are easy to
// separate from the bulk of the distribution receive short average path
// lengths and therefore high anomaly scores. The fit is deterministic for a
// fixed seed.
type IsolationForest struct {
	NumTrees   int
	SampleSize int
	Seed       int64

	trees       []*isoNode
	heightLimit int
	cNorm       float64
}

// isoNode is one node of an isolation tree. Leaves carry the size of the
// sample that reached them.
type isoNode struct {
	splitFeature int
	splitValue   float64
	left, right  *isoNode
	size         int
}

// NewIsolationForest applies the standard defaults (100 trees, 256-point
// subsamples) for zero-valued parameters.
func NewIsolationForest(numTrees, sampleSize int, seed int64) *IsolationForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if sampleSize <= 0 {
		sampleSize = 256
	}
	return &IsolationForest{NumTrees: numTrees, SampleSize: sampleSize, Seed: seed}
}

// Fit builds the forest over the pixel population in m.
func (f *IsolationForest) Fit(m *FeatureMatrix) error {
	n := m.NumPixels()
	if n == 0 {
		return eris.New("detector: cannot fit isolation forest on empty population")
	}

	sample := f.SampleSize
	if sample > n {
		sample = n
	}
	f.heightLimit = int(math.Ceil(math.Log2(float64(sample))))
	if f.heightLimit < 1 {
		f.heightLimit = 1
	}
	f.cNorm = avgPathLength(sample)

	rng := rand.New(rand.NewSource(f.Seed))
	f.trees = make([]*isoNode, f.NumTrees)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for t := 0; t < f.NumTrees; t++ {
		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		subset := make([]int, sample)
		copy(subset, idx[:sample])
		f.trees[t] = buildTree(m, subset, 0, f.heightLimit, rng)
	}
	return nil
}

// Scores returns one anomaly score per pixel in [0,1]; higher means more
// isolated.
func (f *IsolationForest) Scores(m *FeatureMatrix) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, eris.New("detector: isolation forest is not fitted")
	}

	n := m.NumPixels()
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		row := m.Row(i)
		var sum float64
		for _, tree := range f.trees {
			sum += pathLength(tree, row, 0)
		}
		mean := sum / float64(len(f.trees))
		scores[i] = math.Pow(2, -mean/f.cNorm)
	}
	return scores, nil
}

func buildTree(m *FeatureMatrix, idx []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}

	nf := m.NumFeatures()
	// Pick a feature with spread; give up after a few tries on constant data.
	for attempt := 0; attempt < nf; attempt++ {
		feat := rng.Intn(nf)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := m.Row(i)[feat]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi <= lo {
			continue
		}

		split := lo + rng.Float64()*(hi-lo)
		var left, right []int
		for _, i := range idx {
			if m.Row(i)[feat] < split {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		return &isoNode{
			splitFeature: feat,
			splitValue:   split,
			left:         buildTree(m, left, depth+1, limit, rng),
			right:        buildTree(m, right, depth+1, limit, rng),
		}
	}
	return &isoNode{size: len(idx)}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.splitFeature] < node.splitValue {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points, used to normalize isolation depths.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}
