package repository

import (
	"context"
	"database/sql"
	"time"

	"weather_station/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type ReadingRepo interface {
	Append(ctx context.Context, r models.SensorReading) error
	Recent(ctx context.Context, deviceID string, limit int) ([]models.SensorReading, error)
	Count(ctx context.Context) (int, error)
	Trim(ctx context.Context, keep int) (int64, error)
	ReplaceAll(ctx context.Context, readings []models.SensorReading) error
}

type PredictionRepo interface {
	Append(ctx context.Context, p models.PredictionRecord) error
	Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	Trim(ctx context.Context, keep int) (int64, error)
	ReplaceAll(ctx context.Context, records []models.PredictionRecord) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type DeviceRepo interface {
	Create(ctx context.Context, d models.Device) error
	Get(ctx context.Context, id string) (*models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type Repository struct {
	Readings    ReadingRepo
	Predictions PredictionRepo
	EventRepo   EventRepo
	Devices     DeviceRepo
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Readings:    NewReadingSQLite(db),
		Predictions: NewPredictionSQLite(db),
		EventRepo:   NewEventSQLite(db),
		Devices:     NewDeviceSQLite(db),
		Auth:        NewUserRepository(db),
	}
}
