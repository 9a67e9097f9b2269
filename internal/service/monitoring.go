package service

import (
	"context"
	"time"

	"weather_station/internal/models"
)

type MonitoringService struct {
	readings    *ReadingService
	predictions *PredictionService
	training    *TrainingService
	devices     *DeviceService
	now         func() time.Time
}

func NewMonitoringService(readings *ReadingService, predictions *PredictionService, training *TrainingService, devices *DeviceService) *MonitoringService {
	return &MonitoringService{
		readings:    readings,
		predictions: predictions,
		training:    training,
		devices:     devices,
		now:         time.Now,
	}
}

// StationStatus returns the dashboard snapshot. Devices is never nil.
func (s *MonitoringService) StationStatus(ctx context.Context) (models.StationStatus, error) {
	devices, err := s.devices.States(ctx)
	if err != nil {
		return models.StationStatus{}, err
	}
	if devices == nil {
		devices = []models.DeviceState{}
	}

	st := models.StationStatus{
		TotalReadings:  s.readings.Count(),
		ModelTrained:   s.training.classifier.Trained(),
		TrainingActive: s.training.orch.Running(),
		LastReading:    s.readings.Latest(),
		LastPrediction: s.predictions.Last(),
		Devices:        devices,
		Readiness:      s.training.Readiness(),
		UpdatedAt:      toUTC(s.now()),
	}
	if snap := s.training.classifier.Snapshot(); snap != nil {
		at := toUTC(snap.Meta.TrainedAt)
		st.ModelTrainedAt = &at
	}
	return st, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
