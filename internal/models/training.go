package models

import "time"

// EvaluationMode states whether test metrics are statistically meaningful.
type EvaluationMode string

const (
	EvaluationValid    EvaluationMode = "VALID"
	EvaluationNonValid EvaluationMode = "NON_VALID"
	EvaluationUnknown  EvaluationMode = "UNKNOWN"
)

// TrainingStatus is the terminal (or current) state of a training run.
type TrainingStatus string

const (
	TrainingDataTooSmall            TrainingStatus = "DATA_TOO_SMALL"
	TrainingDataInsufficientVariety TrainingStatus = "DATA_INSUFFICIENT_VARIETY"
	TrainingRunning                 TrainingStatus = "TRAINING"
	TrainingSaveFailed              TrainingStatus = "SAVE_FAILED"
	TrainingFailed                  TrainingStatus = "FAILED"
	TrainingDone                    TrainingStatus = "DONE"
)

// EvaluationReport is produced by every completed training run.
// TestAccuracy, MacroF1 and BalancedAccuracy are nil whenever MetricsTrusted is false.
type EvaluationReport struct {
	Status                   TrainingStatus `json:"status"`
	EvaluationMode           EvaluationMode `json:"evaluation_mode"`
	MetricsTrusted           bool           `json:"metrics_trusted"`
	SyntheticUsed            bool           `json:"synthetic_used"`
	Warnings                 []string       `json:"warnings"`
	TrainAccuracy            float64        `json:"train_accuracy"`
	TestAccuracy             *float64       `json:"test_accuracy"`
	MacroF1                  *float64       `json:"macro_f1"`
	BalancedAccuracy         *float64       `json:"balanced_accuracy"`
	BaselineMajorityAccuracy float64        `json:"baseline_majority_accuracy"`
	ConfusionMatrix          [][]int        `json:"confusion_matrix"`
	Labels                   []string       `json:"labels"`
	AllCounts                map[string]int `json:"all_counts"`
	TrainCounts              map[string]int `json:"train_counts"`
	TestCounts               map[string]int `json:"test_counts"`
}

// ModelMeta is the JSON sidecar persisted next to the model and scaler artifacts.
type ModelMeta struct {
	Version              string         `json:"version"`
	TrainingSeed         uint64         `json:"training_seed"`
	TrainingSamples      int            `json:"training_samples"`
	TrainingSamplesTrain int            `json:"training_samples_train"`
	TrainingSamplesTest  int            `json:"training_samples_test"`
	SyntheticUsed        bool           `json:"synthetic_used"`
	EvaluationMode       EvaluationMode `json:"evaluation_mode"`
	MetricsTrusted       bool           `json:"metrics_trusted"`
	TrainedAt            time.Time      `json:"trained_at"`
	SavedAt              time.Time      `json:"saved_at,omitempty"`
	ModelPath            string         `json:"model_path,omitempty"`
	ScalerPath           string         `json:"scaler_path,omitempty"`
}

// TrainingOutcome is the result of one orchestrator run.
type TrainingOutcome struct {
	Status     TrainingStatus    `json:"status"`
	Message    string            `json:"message,omitempty"`
	Report     *EvaluationReport `json:"report,omitempty"`
	Meta       *ModelMeta        `json:"meta,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Readiness describes whether the buffered readings are enough to train.
type Readiness struct {
	Ready        bool           `json:"ready"`
	Reason       string         `json:"reason"` // ready | data_below_min | single_class | single_class_auto_allowed | class_too_small
	AutoForce    bool           `json:"auto_force,omitempty"`
	Count        int            `json:"count"`
	MinRequired  int            `json:"min_required"`
	Distribution map[string]int `json:"distribution"`
}
