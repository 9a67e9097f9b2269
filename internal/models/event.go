package models

import "time"

// Event types recorded in the system event log.
const (
	EventTrainingStarted  = "TRAINING_STARTED"
	EventTrainingDone     = "TRAINING_DONE"
	EventTrainingFailed   = "TRAINING_FAILED"
	EventTrainingRejected = "TRAINING_REJECTED"
	EventBackup           = "BACKUP"
	EventRestore          = "RESTORE"
	EventDeviceRegistered = "DEVICE_REGISTERED"
)

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
