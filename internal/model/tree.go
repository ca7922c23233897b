package model

import (
	"math/rand"
	"sort"
)

// Node is one node of a fitted tree. Nodes are stored in a flat slice and
// reference their children by index, which keeps the tree trivially
// serialisable.
type Node struct {
	Feature   int
	Threshold float64 // x[Feature] <= Threshold goes left
	Left      int
	Right     int
	Leaf      bool
	Value     []float64 // class probabilities at a leaf, aligned with Forest.Classes
}

// Tree is a fitted CART classification tree (Gini impurity).
type Tree struct {
	Nodes []Node
}

// proba walks the tree for one row and returns the leaf distribution.
func (t *Tree) proba(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x           [][]float64
	y           []int // class indices, not labels
	nClasses    int
	maxDepth    int // 0 => unlimited
	minSplit    int
	minLeaf     int
	maxFeatures int
	rnd         *rand.Rand
	nodes       []Node
}

// fitTree grows a tree on the rows listed in sample. Rows may repeat
// (bootstrap); each occurrence counts once.
func (b *treeBuilder) fitTree(sample []int) Tree {
	b.nodes = make([]Node, 0, 64)
	b.build(sample, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Left: -1, Right: -1})

	counts := b.counts(idx)
	if len(idx) < b.minSplit || isPure(counts) || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[self] = leaf(counts)
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[self] = leaf(counts)
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, r := range idx {
		if b.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit draws features in random order and evaluates up to
// maxFeatures non-constant ones. Constant features do not count towards
// the budget.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	p := len(b.x[0])
	n := len(idx)

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := 2.0 // gini never exceeds 1
	visited := 0

	sorted := make([]int, n)
	leftCounts := make([]int, b.nClasses)
	total := b.counts(idx)

	for _, f := range b.rnd.Perm(p) {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })
		if b.x[sorted[0]][f] == b.x[sorted[n-1]][f] {
			continue
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		for s := 1; s < n; s++ {
			leftCounts[b.y[sorted[s-1]]]++
			lo, hi := b.x[sorted[s-1]][f], b.x[sorted[s]][f]
			if lo == hi {
				continue
			}
			if s < b.minLeaf || n-s < b.minLeaf {
				continue
			}
			imp := b.weightedGini(leftCounts, total, s, n)
			if imp < bestImpurity {
				bestImpurity = imp
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold == hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *treeBuilder) weightedGini(left, total []int, nLeft, n int) float64 {
	nRight := n - nLeft
	gl, gr := 1.0, 1.0
	for k := 0; k < b.nClasses; k++ {
		pl := float64(left[k]) / float64(nLeft)
		pr := float64(total[k]-left[k]) / float64(nRight)
		gl -= pl * pl
		gr -= pr * pr
	}
	return (float64(nLeft)*gl + float64(nRight)*gr) / float64(n)
}

func (b *treeBuilder) counts(idx []int) []int {
	c := make([]int, b.nClasses)
	for _, r := range idx {
		c[b.y[r]]++
	}
	return c
}

func leaf(counts []int) Node {
	total := 0
	for _, c := range counts {
		total += c
	}
	value := make([]float64, len(counts))
	for k, c := range counts {
		if total > 0 {
			value[k] = float64(c) / float64(total)
		}
	}
	return Node{Feature: -1, Left: -1, Right: -1, Leaf: true, Value: value}
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
