package ml

import (
	"math/rand/v2"
	"sort"

	"weather_station/internal/models"
)

// jitterStdDev is the per-feature gaussian noise: temperature, humidity,
// air quality, light, battery.
var jitterStdDev = [models.NumFeatures]float64{0.5, 1.0, 5.0, 50.0, 0.02}

// archetypes seed synthetic generation: cold, hot-dry, humid, normal.
var archetypes = [][models.NumFeatures]float64{
	{10, 50, 50, 100, 3.8},
	{38, 35, 80, 1200, 3.9},
	{26, 85, 90, 800, 4.0},
	{24, 60, 80, 500, 3.8},
}

// Augmentor generates synthetic samples and oversamples minority classes.
// All randomness comes from the seed passed to NewAugmentor.
type Augmentor struct {
	rng *rand.Rand
}

func NewAugmentor(seed uint64) *Augmentor {
	return &Augmentor{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (a *Augmentor) jitter(v [models.NumFeatures]float64) [models.NumFeatures]float64 {
	for i := range v {
		v[i] += a.rng.NormFloat64() * jitterStdDev[i]
	}
	return v
}

// Synthetic returns nEach jittered copies of every archetype, labeled by
// LabelFromFeatures.
func (a *Augmentor) Synthetic(nEach int) []Sample {
	if nEach <= 0 {
		return nil
	}
	out := make([]Sample, 0, nEach*len(archetypes))
	for _, base := range archetypes {
		for i := 0; i < nEach; i++ {
			f := a.jitter(base)
			out = append(out, Sample{Features: f, Label: LabelFromFeatures(f[0], f[1], f[2])})
		}
	}
	return out
}

// Oversample returns samples plus jittered duplicates so every class reaches
// minPerClass. Duplicates cycle through the existing samples of the class and
// keep its label. The input slice is not modified.
func (a *Augmentor) Oversample(samples []Sample, minPerClass int) []Sample {
	out := make([]Sample, len(samples), len(samples)+minPerClass)
	copy(out, samples)
	if minPerClass <= 0 {
		return out
	}

	byClass := make(map[string][]int)
	for i, s := range samples {
		byClass[s.Label] = append(byClass[s.Label], i)
	}
	labels := make([]string, 0, len(byClass))
	for l := range byClass {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, l := range labels {
		idx := byClass[l]
		for i := 0; len(idx)+i < minPerClass; i++ {
			src := samples[idx[i%len(idx)]]
			out = append(out, Sample{
				Features: a.jitter(src.Features),
				Label:    src.Label,
				At:       src.At,
			})
		}
	}
	return out
}
