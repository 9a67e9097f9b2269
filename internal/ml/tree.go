package ml

import (
	"math/rand/v2"
	"sort"
)

// Node is one decision tree node. Leaves carry class probabilities in Value.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	Value     []float64
}

// Tree is a CART classification tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node
}

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

// treeBuilder grows a tree with weighted gini impurity and no depth limit.
type treeBuilder struct {
	x           [][]float64
	y           []int
	w           []float64
	nClasses    int
	maxFeatures int
	rng         *rand.Rand
	nodes       []Node
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	ok        bool
}

func (b *treeBuilder) build(idx []int) int {
	dist := b.classWeights(idx)
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	if len(idx) < 2 || isPure(dist) {
		b.nodes[self] = leafNode(dist)
		return self
	}
	s := b.bestSplit(idx)
	if !s.ok {
		b.nodes[self] = leafNode(dist)
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.build(left)
	r := b.build(right)
	b.nodes[self] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r}
	return self
}

// bestSplit scans features in random order until maxFeatures non-constant
// features have been evaluated.
func (b *treeBuilder) bestSplit(idx []int) split {
	nFeatures := len(b.x[idx[0]])
	order := b.rng.Perm(nFeatures)
	best := split{}
	visited := 0

	sorted := make([]int, len(idx))
	for _, f := range order {
		if visited >= b.maxFeatures && best.ok {
			break
		}
		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		left := make([]float64, b.nClasses)
		right := b.classWeights(sorted)
		var wl, wr float64
		for _, v := range right {
			wr += v
		}
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			left[b.y[i]] += b.w[i]
			right[b.y[i]] -= b.w[i]
			wl += b.w[i]
			wr -= b.w[i]

			lo, hi := b.x[i][f], b.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			imp := (wl*gini(left, wl) + wr*gini(right, wr)) / (wl + wr)
			if !best.ok || imp < best.impurity {
				thr := lo + (hi-lo)/2
				if thr == hi {
					thr = lo
				}
				best = split{feature: f, threshold: thr, impurity: imp, ok: true}
			}
		}
	}
	return best
}

func (b *treeBuilder) classWeights(idx []int) []float64 {
	out := make([]float64, b.nClasses)
	for _, i := range idx {
		out[b.y[i]] += b.w[i]
	}
	return out
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range dist {
		p := v / total
		sum += p * p
	}
	return 1 - sum
}

func isPure(dist []float64) bool {
	nonZero := 0
	for _, v := range dist {
		if v > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func leafNode(dist []float64) Node {
	total := 0.0
	for _, v := range dist {
		total += v
	}
	value := make([]float64, len(dist))
	if total > 0 {
		for i, v := range dist {
			value[i] = v / total
		}
	}
	return Node{Leaf: true, Value: value}
}
