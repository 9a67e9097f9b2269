package models

import "time"

// DeviceState reports whether a station has been heard from recently.
type DeviceState struct {
	DeviceID   string     `json:"device_id"`
	Online     bool       `json:"online"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	SecondsAgo *int64     `json:"seconds_ago,omitempty"`
}

// StationStatus is the dashboard snapshot of the whole server.
type StationStatus struct {
	TotalReadings  int               `json:"total_readings"`
	ModelTrained   bool              `json:"model_trained"`
	ModelTrainedAt *time.Time        `json:"model_trained_at,omitempty"`
	TrainingActive bool              `json:"training_active"`
	LastReading    *SensorReading    `json:"last_reading,omitempty"`
	LastPrediction *PredictionRecord `json:"last_prediction,omitempty"`
	Devices        []DeviceState     `json:"devices"`
	Readiness      Readiness         `json:"readiness"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
