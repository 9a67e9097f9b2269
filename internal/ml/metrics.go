package ml

func accuracy(yTrue, yPred []string) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// confusionMatrix counts rows=true, cols=predicted over labels; pairs with
// labels outside the set are ignored.
func confusionMatrix(labels, yTrue, yPred []string) [][]int {
	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	cm := make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		r, okR := pos[yTrue[i]]
		c, okC := pos[yPred[i]]
		if okR && okC {
			cm[r][c]++
		}
	}
	return cm
}

type classTally struct {
	tp, fp, fn int
}

func tally(yTrue, yPred []string) map[string]*classTally {
	out := make(map[string]*classTally)
	get := func(l string) *classTally {
		t, ok := out[l]
		if !ok {
			t = &classTally{}
			out[l] = t
		}
		return t
	}
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			get(yTrue[i]).tp++
			continue
		}
		get(yTrue[i]).fn++
		get(yPred[i]).fp++
	}
	return out
}

// macroF1 averages per-class F1 over every label seen in yTrue or yPred;
// undefined precision or recall counts as 0.
func macroF1(yTrue, yPred []string) float64 {
	t := tally(yTrue, yPred)
	if len(t) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range t {
		denom := 2*c.tp + c.fp + c.fn
		if denom > 0 {
			sum += float64(2*c.tp) / float64(denom)
		}
	}
	return sum / float64(len(t))
}

// balancedAccuracy is the mean recall over the classes present in yTrue.
func balancedAccuracy(yTrue, yPred []string) float64 {
	t := tally(yTrue, yPred)
	sum, n := 0.0, 0
	for _, c := range t {
		support := c.tp + c.fn
		if support == 0 {
			continue
		}
		sum += float64(c.tp) / float64(support)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// majorityLabel returns the most common label; ties go to the label seen first.
func majorityLabel(labels []string) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, l := range labels {
		counts[l]++
	}
	for _, l := range labels {
		if c := counts[l]; c > bestCount {
			best, bestCount = l, c
		}
	}
	return best
}

// majorityBaseline is the share of test samples carrying the most common
// training label, capped at 1.
func majorityBaseline(trainLabels, testLabels []string) float64 {
	if len(testLabels) == 0 || len(trainLabels) == 0 {
		return 0
	}
	major := majorityLabel(trainLabels)
	hit := 0
	for _, l := range testLabels {
		if l == major {
			hit++
		}
	}
	v := float64(hit) / float64(len(testLabels))
	if v > 1 {
		v = 1
	}
	return v
}
