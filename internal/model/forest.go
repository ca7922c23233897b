package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Forest is a random-forest classifier: bootstrap-sampled CART trees
// whose class probabilities are averaged at prediction time.
type Forest struct {
	// Hyperparameters
	NEstimators     int
	MaxDepth        int // 0 => grow until leaves are pure
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => floor(sqrt(n_features))
	Bootstrap       bool
	RandomState     int64

	// Fitted state
	Classes   []int
	NFeatures int
	Trees     []Tree
}

// ForestOption is a functional option for NewForest.
type ForestOption func(*Forest)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption { return func(f *Forest) { f.NEstimators = n } }

// WithRandomState seeds bootstrap sampling and feature selection.
func WithRandomState(s int64) ForestOption { return func(f *Forest) { f.RandomState = s } }

// WithMaxDepth caps tree depth; 0 grows each tree until its leaves are pure.
func WithMaxDepth(d int) ForestOption { return func(f *Forest) { f.MaxDepth = d } }

// WithMaxFeatures sets how many features each split considers; 0 means
// floor(sqrt(n_features)).
func WithMaxFeatures(k int) ForestOption { return func(f *Forest) { f.MaxFeatures = k } }

// WithMinSamplesLeaf sets the fewest rows a split may leave on either side.
func WithMinSamplesLeaf(n int) ForestOption { return func(f *Forest) { f.MinSamplesLeaf = n } }

// Defaults mirror the reference training configuration.
const (
	DefaultNEstimators       = 100
	DefaultRandomState int64 = 42
)

// NewForest returns an unfitted forest with the default configuration.
func NewForest(opts ...ForestOption) *Forest {
	f := &Forest{
		NEstimators:     DefaultNEstimators,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     DefaultRandomState,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fit trains the forest. Trees are fitted one after another from a single
// seeded source, so identical inputs give identical forests.
func (f *Forest) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return errors.New("forest: empty X")
	}
	if len(y) != n {
		return fmt.Errorf("forest: %d rows but %d labels", n, len(y))
	}
	if f.NEstimators <= 0 {
		return fmt.Errorf("forest: n_estimators must be positive, got %d", f.NEstimators)
	}
	p := len(X[0])
	if p == 0 {
		return errors.New("forest: no features")
	}
	for i := range X {
		if len(X[i]) != p {
			return fmt.Errorf("forest: row %d has %d features, expected %d", i, len(X[i]), p)
		}
	}

	f.Classes = uniqueSorted(y)
	classIdx := make(map[int]int, len(f.Classes))
	for i, c := range f.Classes {
		classIdx[c] = i
	}
	yi := make([]int, n)
	for i, lab := range y {
		yi[i] = classIdx[lab]
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(p)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > p {
		maxFeatures = p
	}

	rnd := rand.New(rand.NewSource(f.RandomState))
	f.NFeatures = p
	f.Trees = make([]Tree, f.NEstimators)
	for t := 0; t < f.NEstimators; t++ {
		treeRnd := rand.New(rand.NewSource(rnd.Int63()))

		sample := make([]int, n)
		for j := range sample {
			if f.Bootstrap {
				sample[j] = treeRnd.Intn(n)
			} else {
				sample[j] = j
			}
		}

		b := &treeBuilder{
			x:           X,
			y:           yi,
			nClasses:    len(f.Classes),
			maxDepth:    f.MaxDepth,
			minSplit:    f.MinSamplesSplit,
			minLeaf:     f.MinSamplesLeaf,
			maxFeatures: maxFeatures,
			rnd:         treeRnd,
		}
		f.Trees[t] = b.fitTree(sample)
	}
	return nil
}

// PredictProba returns the averaged class distribution for each row,
// aligned with f.Classes.
func (f *Forest) PredictProba(X [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != f.NFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrSchemaMismatch, i, len(row), f.NFeatures)
		}
		acc := make([]float64, len(f.Classes))
		for t := range f.Trees {
			for k, v := range f.Trees[t].proba(row) {
				acc[k] += v
			}
		}
		for k := range acc {
			acc[k] /= float64(len(f.Trees))
		}
		out[i] = acc
	}
	return out, nil
}

// Predict returns the most probable class label for each row. Ties go to
// the smaller label.
func (f *Forest) Predict(X [][]float64) ([]int, error) {
	probas, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probas))
	for i, p := range probas {
		best := 0
		for k := 1; k < len(p); k++ {
			if p[k] > p[best] {
				best = k
			}
		}
		out[i] = f.Classes[best]
	}
	return out, nil
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0, 2)
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
