package service

import (
	"context"
	"time"

	"weather_station/internal/forecast"
	"weather_station/internal/logger"
	"weather_station/internal/ml"
	"weather_station/internal/models"
	"weather_station/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Readings exposes the buffered and persisted sensor history.
type Readings interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]models.SensorReading, error)
	Latest() *models.SensorReading
	Count() int
}

// Ingestion accepts raw device payloads from any transport.
type Ingestion interface {
	Ingest(ctx context.Context, in IngestInput) (IngestResult, error)
}

// Predictions exposes classifier output history and the rule-based forecast.
type Predictions interface {
	History(limit int) []models.PredictionRecord
	Last() *models.PredictionRecord
	Forecast(deviceID string) (models.ForecastResult, error)
}

// Training triggers and reports on classifier training runs.
type Training interface {
	Trigger(ctx context.Context, force bool) (TriggerResult, error)
	Status(ctx context.Context) (AIStatus, error)
	Readiness() models.Readiness
}

// Monitoring exposes the dashboard snapshot.
type Monitoring interface {
	StationStatus(ctx context.Context) (models.StationStatus, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Backup snapshots and restores the reading and prediction buffers.
type Backup interface {
	Create(ctx context.Context) (models.BackupFile, error)
	Restore(ctx context.Context, name string) (RestoreResult, error)
	Backups() ([]models.BackupFile, error)
}

// Devices manages station registration and device authentication.
type Devices interface {
	Register(ctx context.Context, name string) (models.Device, error)
	Handshake(ctx context.Context, req HandshakeRequest) (models.Session, error)
	Authenticate(ctx context.Context, cred DeviceCredentials) error
	List(ctx context.Context) ([]models.Device, error)
	RequireAuth() bool
}

// Notifier pushes typed messages to realtime subscribers.
type Notifier interface {
	Broadcast(msgType string, data any)
}

// Mirror is an external sink for readings and predictions. A mirror
// implements ReadingPublisher, PredictionPublisher or both.
type Mirror interface {
	Name() string
}

type ReadingPublisher interface {
	PublishReading(ctx context.Context, r models.SensorReading) error
}

type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, p models.PredictionRecord) error
}

// ModelArtifacts is the persisted model store.
type ModelArtifacts interface {
	ml.ArtifactStore
	Checksums() (map[string]string, error)
}

// BackupStore reads and writes backup snapshots.
type BackupStore interface {
	Write(b models.Backup) (models.BackupFile, error)
	List() ([]models.BackupFile, error)
	Read(name string) (models.Backup, error)
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	Readings
	Ingestion
	Predictions
	Training
	Monitoring
	EventLog
	Backup
	Devices

	warmers []func(context.Context) error
}

// Dependencies are the collaborators built by main.
type Dependencies struct {
	Repos        *repository.Repository
	Artifacts    ModelArtifacts
	Backups      BackupStore
	Classifier   *ml.Classifier
	Orchestrator *ml.Orchestrator
	Forecast     *forecast.Engine
	Notifier     Notifier
	Mirrors      []Mirror
	Log          *logger.Logger
}

// Options are the service-level settings from config.
type Options struct {
	Auth      AuthConfig
	Buffer    BufferConfig
	Devices   DeviceConfig
	AutoTrain bool
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type BufferConfig struct {
	MaxReadings    int `mapstructure:"max_readings"`
	MaxPredictions int `mapstructure:"max_predictions"`
}

type DeviceConfig struct {
	RequireAuth  bool          `mapstructure:"require_auth"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	AllowedDrift time.Duration `mapstructure:"allowed_drift"`
	OfflineAfter time.Duration `mapstructure:"offline_after"`
}

// NewService wires repositories and the inference core into concrete services.
func NewService(deps Dependencies, opts Options) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	mirrors := newMirrorSet(deps.Mirrors, log)

	events := NewEventLogService(deps.Repos.EventRepo)
	devices := NewDeviceService(deps.Repos.Devices, opts.Devices, events, log)
	readings := NewReadingService(deps.Repos.Readings, opts.Buffer.MaxReadings)
	predictions := NewPredictionService(deps.Repos.Predictions, deps.Classifier, deps.Forecast, readings, opts.Buffer.MaxPredictions)
	training := NewTrainingService(deps.Orchestrator, deps.Classifier, deps.Artifacts, readings, predictions, events, notifier, mirrors, log)
	monitoring := NewMonitoringService(readings, predictions, training, devices)
	training.status = monitoring.StationStatus

	return &Service{
		Authorization: NewAuthService(deps.Repos.Auth, opts.Auth),
		Readings:      readings,
		Ingestion:     NewIngestionService(readings, predictions, training, devices, notifier, mirrors, opts.AutoTrain, log),
		Predictions:   predictions,
		Training:      training,
		Monitoring:    monitoring,
		EventLog:      events,
		Backup:        NewBackupService(deps.Backups, readings, predictions, deps.Classifier, events, log),
		Devices:       devices,
		warmers:       []func(context.Context) error{readings.Warm, predictions.Warm},
	}
}

// Warm loads buffered readings and predictions from the database.
func (s *Service) Warm(ctx context.Context) error {
	for _, warm := range s.warmers {
		if err := warm(ctx); err != nil {
			return err
		}
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, any) {}
