package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ForestConfig controls random forest fitting.
type ForestConfig struct {
	Trees       int    `mapstructure:"trees"`
	Seed        uint64 `mapstructure:"seed"`
	MaxFeatures int    `mapstructure:"max_features"` // 0 means sqrt(n_features)
}

// DefaultForestConfig returns 120 trees with seed 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 120, Seed: 42}
}

var errLabelMismatch = errors.New("feature rows and labels differ in length")

// Forest is a bagged ensemble of CART trees with balanced-subsample class
// weights. Its exported fields are the persisted model artifact.
type Forest struct {
	Classes   []string
	NFeatures int
	Trees     []Tree
}

// FitForest grows cfg.Trees trees, each on a bootstrap sample whose class
// weights are rebalanced inversely to the class frequencies in that sample.
func FitForest(x [][]float64, labels []string, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 {
		return nil, errEmptyMatrix
	}
	if len(x) != len(labels) {
		return nil, errLabelMismatch
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("invalid tree count %d", cfg.Trees)
	}

	classes := uniqueSorted(labels)
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	y := make([]int, len(labels))
	for i, l := range labels {
		y[i] = classIdx[l]
	}

	nFeatures := len(x[0])
	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures)))))
	}
	if maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	f := &Forest{Classes: classes, NFeatures: nFeatures, Trees: make([]Tree, 0, cfg.Trees)}
	n := len(x)
	counts := make([]int, n)
	for t := 0; t < cfg.Trees; t++ {
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			counts[rng.IntN(n)]++
		}

		w, idx := balancedSubsampleWeights(counts, y, len(classes))
		b := &treeBuilder{
			x:           x,
			y:           y,
			w:           w,
			nClasses:    len(classes),
			maxFeatures: maxFeatures,
			rng:         rng,
		}
		b.build(idx)
		f.Trees = append(f.Trees, Tree{Nodes: b.nodes})
	}
	return f, nil
}

// balancedSubsampleWeights turns bootstrap multiplicities into sample weights
// of n_drawn / (n_present_classes * class_count_in_sample).
func balancedSubsampleWeights(counts, y []int, nClasses int) ([]float64, []int) {
	perClass := make([]int, nClasses)
	drawn := 0
	for i, c := range counts {
		perClass[y[i]] += c
		drawn += c
	}
	present := 0
	for _, c := range perClass {
		if c > 0 {
			present++
		}
	}

	w := make([]float64, len(counts))
	idx := make([]int, 0, len(counts))
	for i, c := range counts {
		if c == 0 {
			continue
		}
		classWeight := float64(drawn) / (float64(present) * float64(perClass[y[i]]))
		w[i] = float64(c) * classWeight
		idx = append(idx, i)
	}
	return w, idx
}

// PredictProba averages the leaf class probabilities of every tree, in Classes order.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NFeatures {
		return nil, fmt.Errorf("forest expects %d features, got %d", f.NFeatures, len(x))
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	out := make([]float64, len(f.Classes))
	for i := range f.Trees {
		floats.Add(out, f.Trees[i].proba(x))
	}
	floats.Scale(1/float64(len(f.Trees)), out)
	return out, nil
}

// Predict returns the most probable class and its probability.
func (f *Forest) Predict(x []float64) (string, float64, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return "", 0, err
	}
	i := floats.MaxIdx(p)
	return f.Classes[i], p[i], nil
}

// PredictAll returns the predicted class for each row.
func (f *Forest) PredictAll(x [][]float64) ([]string, error) {
	out := make([]string, len(x))
	for i, row := range x {
		label, _, err := f.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
