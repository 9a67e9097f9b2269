package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weather_station/internal/logger"
	"weather_station/internal/metrics"
	"weather_station/internal/sensor"
)

// IngestionService turns a raw payload into a buffered reading, a
// prediction record and realtime notifications.
type IngestionService struct {
	readings    *ReadingService
	predictions *PredictionService
	training    *TrainingService
	devices     *DeviceService
	notifier    Notifier
	mirrors     *mirrorSet
	autoTrain   bool
	log         *logger.Logger
	now         func() time.Time
}

func NewIngestionService(
	readings *ReadingService,
	predictions *PredictionService,
	training *TrainingService,
	devices *DeviceService,
	notifier Notifier,
	mirrors *mirrorSet,
	autoTrain bool,
	log *logger.Logger,
) *IngestionService {
	return &IngestionService{
		readings:    readings,
		predictions: predictions,
		training:    training,
		devices:     devices,
		notifier:    notifier,
		mirrors:     mirrors,
		autoTrain:   autoTrain,
		log:         log,
		now:         time.Now,
	}
}

func (s *IngestionService) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	source := in.Source
	if source == "" {
		source = "http"
	}
	if in.DeviceID != "" {
		if err := bindDevice(in.Payload, in.DeviceID); err != nil {
			metrics.ReadingsRejected.WithLabelValues(source).Inc()
			return IngestResult{}, err
		}
	}

	now := s.now()
	norm, err := sensor.Normalize(in.Payload, now)
	if err != nil {
		metrics.ReadingsRejected.WithLabelValues(source).Inc()
		return IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	r := norm.Reading
	if len(norm.Warnings) > 0 {
		s.log.Warnw("sensor_payload_warnings", "device_id", r.DeviceID, "warnings", norm.Warnings)
	}

	if err := s.readings.Add(ctx, r); err != nil {
		s.log.Warnw("reading_persist_failed", "device_id", r.DeviceID, "err", err)
	}
	s.devices.Touch(ctx, r.DeviceID, now)
	metrics.ReadingsIngested.WithLabelValues(source).Inc()
	s.notifier.Broadcast("sensor_update", r)
	s.mirrors.reading(ctx, r)

	rec := s.predictions.Build(r)
	if err := s.predictions.Store(ctx, rec); err != nil {
		s.log.Warnw("prediction_persist_failed", "device_id", r.DeviceID, "err", err)
	}
	s.notifier.Broadcast("ai_update", map[string]any{
		"model_trained":   s.training.classifier.Trained(),
		"last_prediction": rec,
	})
	s.mirrors.prediction(ctx, rec)

	readiness := s.training.Readiness()
	res := IngestResult{
		Reading:    r,
		Prediction: rec,
		Warnings:   norm.Warnings,
		AIReady:    readiness.Ready,
	}
	if s.autoTrain && readiness.Ready && !s.training.classifier.Trained() && !s.training.orch.Running() {
		if _, err := s.training.Trigger(ctx, false); err == nil {
			res.AutoTrainStarted = true
		}
	}
	return res, nil
}

// bindDevice fills in or checks the payload device_id against the
// authenticated device.
func bindDevice(payload map[string]any, deviceID string) error {
	raw, ok := payload["device_id"]
	if !ok || raw == nil || strings.TrimSpace(fmt.Sprint(raw)) == "" {
		if payload != nil {
			payload["device_id"] = deviceID
		}
		return nil
	}
	if strings.TrimSpace(fmt.Sprint(raw)) != deviceID {
		return ErrDeviceMismatch
	}
	return nil
}
