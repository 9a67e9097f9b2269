package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"weather_station/internal/forecast"
	"weather_station/internal/metrics"
	"weather_station/internal/ml"
	"weather_station/internal/models"
	"weather_station/internal/repository"
)

const defaultMaxPredictions = 50

// PredictionService builds prediction records and keeps the newest max of them.
type PredictionService struct {
	repo       repository.PredictionRepo
	classifier *ml.Classifier
	engine     *forecast.Engine
	readings   *ReadingService
	max        int
	now        func() time.Time

	mu   sync.RWMutex
	ring []models.PredictionRecord
}

func NewPredictionService(repo repository.PredictionRepo, c *ml.Classifier, e *forecast.Engine, readings *ReadingService, max int) *PredictionService {
	if max <= 0 {
		max = defaultMaxPredictions
	}
	return &PredictionService{
		repo:       repo,
		classifier: c,
		engine:     e,
		readings:   readings,
		max:        max,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *PredictionService) Warm(ctx context.Context) error {
	recs, err := s.repo.Recent(ctx, s.max)
	if err != nil {
		return fmt.Errorf("warm prediction history: %w", err)
	}
	s.mu.Lock()
	s.ring = recs
	s.mu.Unlock()
	return nil
}

// Build asks the classifier and the forecast engine about r. The forecast
// uses the buffered history of r's device.
func (s *PredictionService) Build(r models.SensorReading) models.PredictionRecord {
	pred := s.classifier.Predict(r)
	metrics.Predictions.WithLabelValues(pred.Condition).Inc()

	fc := s.engine.Forecast3h(r, s.readings.DeviceHistory(r.DeviceID), s.now())
	return models.PredictionRecord{
		ID:           uuid.NewString(),
		DeviceID:     r.DeviceID,
		CreatedAt:    s.now(),
		Reading:      r,
		AIPrediction: pred,
		Forecast:     &fc,
	}
}

// Store appends rec to the history ring and the database.
func (s *PredictionService) Store(ctx context.Context, rec models.PredictionRecord) error {
	s.mu.Lock()
	s.ring = append(s.ring, rec)
	if over := len(s.ring) - s.max; over > 0 {
		s.ring = append(s.ring[:0:0], s.ring[over:]...)
	}
	s.mu.Unlock()

	if err := s.repo.Append(ctx, rec); err != nil {
		return fmt.Errorf("persist prediction: %w", err)
	}
	return nil
}

// History returns the newest limit records, oldest first. limit <= 0 means all.
func (s *PredictionService) History(limit int) []models.PredictionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && limit < len(s.ring) {
		start = len(s.ring) - limit
	}
	out := make([]models.PredictionRecord, len(s.ring)-start)
	copy(out, s.ring[start:])
	return out
}

func (s *PredictionService) Last() *models.PredictionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ring) == 0 {
		return nil
	}
	rec := s.ring[len(s.ring)-1]
	return &rec
}

// Forecast projects the next hours from the newest reading of deviceID, or
// of any device when deviceID is empty.
func (s *PredictionService) Forecast(deviceID string) (models.ForecastResult, error) {
	var latest *models.SensorReading
	if deviceID == "" {
		latest = s.readings.Latest()
	} else {
		latest = s.readings.LatestFor(deviceID)
	}
	if latest == nil {
		return models.ForecastResult{}, ErrNoReadings
	}
	return s.engine.Forecast3h(*latest, s.readings.DeviceHistory(latest.DeviceID), s.now()), nil
}

// Replace swaps the history for recs.
func (s *PredictionService) Replace(ctx context.Context, recs []models.PredictionRecord) error {
	if len(recs) > s.max {
		recs = recs[len(recs)-s.max:]
	}
	if err := s.repo.ReplaceAll(ctx, recs); err != nil {
		return fmt.Errorf("replace predictions: %w", err)
	}
	ring := make([]models.PredictionRecord, len(recs))
	copy(ring, recs)
	s.mu.Lock()
	s.ring = ring
	s.mu.Unlock()
	return nil
}
