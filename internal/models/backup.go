package models

import "time"

// Backup is the JSON snapshot written by the backup service.
type Backup struct {
	CreatedAt   time.Time          `json:"created_at"`
	Readings    []SensorReading    `json:"readings"`
	Predictions []PredictionRecord `json:"predictions"`
	ModelMeta   *ModelMeta         `json:"model_meta,omitempty"`
}

// BackupFile describes one backup on disk.
type BackupFile struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
