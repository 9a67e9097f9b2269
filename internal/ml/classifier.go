package ml

import (
	"errors"
	"fmt"
	"sync/atomic"

	"weather_station/internal/advice"
	"weather_station/internal/models"
)

// Sentinel prediction conditions.
const (
	ConditionNotTrained = "Model not trained"
	ConditionError      = "Prediction Error"
)

// ErrNoModel is returned by an ArtifactStore that holds no persisted model.
var ErrNoModel = errors.New("no persisted model")

// ModelState is the immutable snapshot published to the Classifier.
type ModelState struct {
	Scaler *Scaler
	Forest *Forest
	Meta   models.ModelMeta
}

// ArtifactStore persists and restores model state. Save must replace every
// artifact atomically and return the metadata as written.
type ArtifactStore interface {
	Save(state *ModelState) (models.ModelMeta, error)
	Load() (*ModelState, error)
}

// Classifier serves predictions from the most recently published ModelState.
type Classifier struct {
	state atomic.Pointer[ModelState]
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Publish swaps in a new snapshot. Readers see either the old or the new pair.
func (c *Classifier) Publish(s *ModelState) {
	c.state.Store(s)
}

// Snapshot returns the current state or nil when no model was ever published.
func (c *Classifier) Snapshot() *ModelState {
	return c.state.Load()
}

// Trained reports whether a model is available.
func (c *Classifier) Trained() bool {
	return c.state.Load() != nil
}

// Restore loads a persisted model into the classifier. ErrNoModel means a
// fresh deployment and leaves the classifier untrained.
func (c *Classifier) Restore(store ArtifactStore) error {
	s, err := store.Load()
	if err != nil {
		return err
	}
	if s == nil || s.Scaler == nil || s.Forest == nil {
		return fmt.Errorf("restore model: %w", ErrNoModel)
	}
	c.Publish(s)
	return nil
}

// Predict classifies a reading. It never fails: without a model it returns
// the "Model not trained" sentinel and any internal error becomes the
// "Prediction Error" sentinel.
func (c *Classifier) Predict(r models.SensorReading) (p models.Prediction) {
	s := c.state.Load()
	if s == nil {
		return models.Prediction{
			Condition:       ConditionNotTrained,
			Confidence:      0,
			Recommendations: []string{"Train the AI model first"},
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			p = errorPrediction()
		}
	}()

	f := r.Features()
	scaled, err := s.Scaler.Transform(f[:])
	if err != nil {
		return errorPrediction()
	}
	proba, err := s.Forest.PredictProba(scaled)
	if err != nil {
		return errorPrediction()
	}

	label, confidence := "", 0.0
	probs := make(map[string]float64, len(proba))
	for i, v := range proba {
		probs[s.Forest.Classes[i]] = v
		if label == "" || v > confidence {
			label, confidence = s.Forest.Classes[i], v
		}
	}
	if label == "" {
		return errorPrediction()
	}

	return models.Prediction{
		Condition:       label,
		Confidence:      confidence,
		Recommendations: advice.ForCondition(label, r.Temperature, r.AirQuality),
		Probabilities:   probs,
	}
}

func errorPrediction() models.Prediction {
	return models.Prediction{
		Condition:       ConditionError,
		Confidence:      0,
		Recommendations: []string{"AI model error occurred"},
	}
}
