package models

import "time"

// Prediction is the classifier opinion for one reading.
type Prediction struct {
	Condition       string             `json:"condition"`
	Confidence      float64            `json:"confidence"`
	Recommendations []string           `json:"recommendations"`
	Probabilities   map[string]float64 `json:"probabilities,omitempty"`
}

// PredictionRecord is what gets stored, broadcast and mirrored per reading.
type PredictionRecord struct {
	ID           string          `json:"id"`
	DeviceID     string          `json:"device_id"`
	CreatedAt    time.Time       `json:"created_at"`
	Reading      SensorReading   `json:"reading"`
	AIPrediction Prediction      `json:"ai_prediction"`
	Forecast     *ForecastResult `json:"forecast,omitempty"`
}
