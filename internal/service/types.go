package service

import (
	"errors"
	"time"

	"weather_station/internal/models"
)

var (
	ErrInvalidPayload   = errors.New("invalid sensor payload")
	ErrDeviceMismatch   = errors.New("payload device_id does not match authenticated device")
	ErrNotReady         = errors.New("not enough labelled data to train")
	ErrNoReadings       = errors.New("no readings yet")
	ErrInvalidDevice    = errors.New("unknown device")
	ErrInvalidSession   = errors.New("invalid or expired session")
	ErrInvalidSignature = errors.New("invalid device signature")
	ErrClockDrift       = errors.New("timestamp outside allowed drift")
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "TRAINING_STARTED", "TRAINING_DONE", "BACKUP", ...
}

// IngestInput is one raw payload from a transport.
type IngestInput struct {
	Source   string // http | mqtt
	DeviceID string // authenticated device, empty when device auth is off
	Payload  map[string]any
}

// IngestResult is what the caller gets back for an accepted reading.
type IngestResult struct {
	Reading          models.SensorReading    `json:"reading"`
	Prediction       models.PredictionRecord `json:"ai_prediction"`
	Warnings         []string                `json:"warnings,omitempty"`
	AIReady          bool                    `json:"ai_ready"`
	AutoTrainStarted bool                    `json:"auto_train_started,omitempty"`
}

// Training trigger outcomes.
const (
	TriggerStarted    = "training_started"
	TriggerInProgress = "training_in_progress"
	TriggerNotReady   = "not_ready"
)

// TriggerResult answers a training request.
type TriggerResult struct {
	Status         string           `json:"status"`
	Force          bool             `json:"force"`
	EffectiveForce bool             `json:"effective_force"`
	ModelTrained   bool             `json:"model_trained"`
	Readiness      models.Readiness `json:"readiness"`
}

// AIStatus is the classifier and training summary.
type AIStatus struct {
	ModelTrained   bool                     `json:"model_trained"`
	TrainingActive bool                     `json:"training_active"`
	ModelMeta      *models.ModelMeta        `json:"model_meta,omitempty"`
	LastReport     *models.EvaluationReport `json:"last_metrics,omitempty"`
	LastOutcome    *models.TrainingOutcome  `json:"last_outcome,omitempty"`
	Checksums      map[string]string        `json:"checksums,omitempty"`
	Readiness      models.Readiness         `json:"readiness"`
}

// RestoreResult reports what a restore replaced.
type RestoreResult struct {
	File        string    `json:"file"`
	CreatedAt   time.Time `json:"created_at"`
	Readings    int       `json:"readings"`
	Predictions int       `json:"predictions"`
}

// HandshakeRequest is a signed device login.
type HandshakeRequest struct {
	DeviceID  string `json:"device_id" binding:"required"`
	Timestamp string `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// DeviceCredentials are the per-request device auth headers. A session
// token takes precedence over a signature.
type DeviceCredentials struct {
	DeviceID     string
	SessionToken string
	Timestamp    string
	Signature    string
}
