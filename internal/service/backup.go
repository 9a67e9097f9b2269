package service

import (
	"context"
	"fmt"
	"time"

	"weather_station/internal/logger"
	"weather_station/internal/ml"
	"weather_station/internal/models"
)

type BackupService struct {
	store       BackupStore
	readings    *ReadingService
	predictions *PredictionService
	classifier  *ml.Classifier
	events      *EventLogService
	log         *logger.Logger
	now         func() time.Time
}

func NewBackupService(store BackupStore, readings *ReadingService, predictions *PredictionService, c *ml.Classifier, events *EventLogService, log *logger.Logger) *BackupService {
	return &BackupService{
		store:       store,
		readings:    readings,
		predictions: predictions,
		classifier:  c,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// Create writes the current buffers to a new backup file.
func (s *BackupService) Create(ctx context.Context) (models.BackupFile, error) {
	b := models.Backup{
		CreatedAt:   s.now().UTC(),
		Readings:    s.readings.Snapshot(),
		Predictions: s.predictions.History(0),
	}
	if snap := s.classifier.Snapshot(); snap != nil {
		meta := snap.Meta
		b.ModelMeta = &meta
	}
	f, err := s.store.Write(b)
	if err != nil {
		return models.BackupFile{}, fmt.Errorf("write backup: %w", err)
	}
	s.record(ctx, models.EventBackup, "backup written", map[string]any{
		"file":        f.Name,
		"readings":    len(b.Readings),
		"predictions": len(b.Predictions),
	})
	return f, nil
}

// Restore replaces both buffers with the named backup, or the newest one
// when name is empty. The model is left untouched.
func (s *BackupService) Restore(ctx context.Context, name string) (RestoreResult, error) {
	b, err := s.store.Read(name)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := s.readings.Replace(ctx, b.Readings); err != nil {
		return RestoreResult{}, err
	}
	if err := s.predictions.Replace(ctx, b.Predictions); err != nil {
		return RestoreResult{}, err
	}
	if name == "" {
		name = "latest"
	}
	res := RestoreResult{
		File:        name,
		CreatedAt:   b.CreatedAt,
		Readings:    len(b.Readings),
		Predictions: len(b.Predictions),
	}
	s.record(ctx, models.EventRestore, "backup restored", res)
	return res, nil
}

func (s *BackupService) Backups() ([]models.BackupFile, error) {
	return s.store.List()
}

func (s *BackupService) record(ctx context.Context, typ, desc string, meta any) {
	if err := s.events.Record(ctx, typ, desc, meta); err != nil {
		s.log.Warnw("event_record_failed", "type", typ, "err", err)
	}
}
