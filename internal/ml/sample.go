package ml

import (
	"sort"
	"time"

	"weather_station/internal/models"
)

// Sample is a labeled feature vector; At is used only for ordering.
type Sample struct {
	Features [models.NumFeatures]float64
	Label    string
	At       time.Time
}

// labelSamples converts readings into samples. A reading without a resolved
// timestamp takes its insertion index as a synthetic epoch.
func labelSamples(readings []models.SensorReading) []Sample {
	out := make([]Sample, len(readings))
	for i, r := range readings {
		at := r.Timestamp
		if at.IsZero() {
			at = time.Unix(int64(i), 0).UTC()
		}
		out[i] = Sample{
			Features: r.Features(),
			Label:    LabelForReading(r),
			At:       at,
		}
	}
	return out
}

// SplitIndex returns clamp(round(0.8n), 1, n-1). For n < 2 every sample goes to train.
func SplitIndex(n int) int {
	if n < 2 {
		return n
	}
	idx := int(float64(n)*0.8 + 0.5)
	if idx < 1 {
		idx = 1
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// ChronologicalSplit orders samples by time (stable on ties) and cuts them at
// SplitIndex. It never shuffles.
func ChronologicalSplit(samples []Sample) (train, test []Sample) {
	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})
	idx := SplitIndex(len(ordered))
	return ordered[:idx], ordered[idx:]
}

func featureMatrix(samples []Sample) ([][]float64, []string) {
	x := make([][]float64, len(samples))
	y := make([]string, len(samples))
	for i, s := range samples {
		row := make([]float64, models.NumFeatures)
		copy(row, s.Features[:])
		x[i] = row
		y[i] = s.Label
	}
	return x, y
}

func countLabels(labels []string) map[string]int {
	out := make(map[string]int)
	for _, l := range labels {
		out[l]++
	}
	return out
}
