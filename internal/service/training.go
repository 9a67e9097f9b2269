package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"weather_station/internal/logger"
	"weather_station/internal/metrics"
	"weather_station/internal/ml"
	"weather_station/internal/models"
)

const completionTimeout = 10 * time.Second

// TrainingService gates training requests on readiness and reacts to the
// orchestrator's outcome.
type TrainingService struct {
	orch        *ml.Orchestrator
	classifier  *ml.Classifier
	artifacts   ModelArtifacts
	readings    *ReadingService
	predictions *PredictionService
	events      *EventLogService
	notifier    Notifier
	mirrors     *mirrorSet
	log         *logger.Logger

	status func(ctx context.Context) (models.StationStatus, error)
	wg     sync.WaitGroup
}

func NewTrainingService(
	orch *ml.Orchestrator,
	classifier *ml.Classifier,
	artifacts ModelArtifacts,
	readings *ReadingService,
	predictions *PredictionService,
	events *EventLogService,
	notifier Notifier,
	mirrors *mirrorSet,
	log *logger.Logger,
) *TrainingService {
	return &TrainingService{
		orch:        orch,
		classifier:  classifier,
		artifacts:   artifacts,
		readings:    readings,
		predictions: predictions,
		events:      events,
		notifier:    notifier,
		mirrors:     mirrors,
		log:         log,
	}
}

// Readiness evaluates the current buffer.
func (s *TrainingService) Readiness() models.Readiness {
	return ml.CheckReadiness(s.readings.Snapshot(), s.orch.Config())
}

// Trigger starts an asynchronous run on a snapshot of the buffer. It
// returns ErrNotReady when readiness fails and force is off, and
// ml.ErrTrainingInProgress when a run is already active. Readiness that
// allows an automatic single-class run upgrades force.
func (s *TrainingService) Trigger(ctx context.Context, force bool) (TriggerResult, error) {
	snapshot := s.readings.Snapshot()
	readiness := ml.CheckReadiness(snapshot, s.orch.Config())
	res := TriggerResult{
		Force:        force,
		ModelTrained: s.classifier.Trained(),
		Readiness:    readiness,
	}

	if !readiness.Ready && !force {
		res.Status = TriggerNotReady
		return res, ErrNotReady
	}
	if s.orch.Running() {
		res.Status = TriggerInProgress
		return res, ml.ErrTrainingInProgress
	}

	res.EffectiveForce = force || readiness.AutoForce
	s.wg.Add(1)
	err := s.orch.Start(snapshot, res.EffectiveForce, func(out models.TrainingOutcome, err error) {
		defer s.wg.Done()
		s.complete(out, err)
	})
	if err != nil {
		s.wg.Done()
		if errors.Is(err, ml.ErrTrainingInProgress) {
			res.Status = TriggerInProgress
		}
		return res, err
	}

	res.Status = TriggerStarted
	s.record(ctx, models.EventTrainingStarted, "training started", map[string]any{
		"samples":         len(snapshot),
		"force":           force,
		"effective_force": res.EffectiveForce,
		"reason":          readiness.Reason,
	})
	s.notifier.Broadcast("training_update", map[string]any{
		"status":  models.TrainingRunning,
		"samples": len(snapshot),
	})
	s.log.Infow("training_started", "samples", len(snapshot), "force", res.EffectiveForce)
	return res, nil
}

// Wait blocks until every started run has finished its completion handling.
func (s *TrainingService) Wait() {
	s.wg.Wait()
}

func (s *TrainingService) complete(out models.TrainingOutcome, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	metrics.RecordTraining(string(out.Status), out.FinishedAt.Sub(out.StartedAt), s.classifier.Trained())

	meta := map[string]any{"status": out.Status}
	if out.Report != nil {
		meta["evaluation_mode"] = out.Report.EvaluationMode
		meta["warnings"] = out.Report.Warnings
	}
	switch {
	case err == nil && out.Status == models.TrainingDone:
		s.log.Infow("training_done", "version", out.Meta.Version, "evaluation_mode", out.Report.EvaluationMode)
		s.record(ctx, models.EventTrainingDone, "model trained", meta)
	case errors.Is(err, ml.ErrDataTooSmall), errors.Is(err, ml.ErrInsufficientVariety):
		s.log.Infow("training_rejected", "status", out.Status, "err", err)
		s.record(ctx, models.EventTrainingRejected, out.Message, meta)
	default:
		s.log.Errorw("training_failed", "status", out.Status, "err", err)
		s.record(ctx, models.EventTrainingFailed, fmt.Sprintf("training failed: %s", out.Message), meta)
	}

	s.notifier.Broadcast("training_update", out)
	if out.Status != models.TrainingDone {
		return
	}

	update := map[string]any{
		"model_trained":    s.classifier.Trained(),
		"model_trained_at": out.Meta.TrainedAt,
		"last_metrics":     out.Report,
		"model_meta":       out.Meta,
	}
	if latest := s.readings.Latest(); latest != nil {
		rec := s.predictions.Build(*latest)
		if err := s.predictions.Store(ctx, rec); err != nil {
			s.log.Warnw("prediction_persist_failed", "err", err)
		}
		s.mirrors.prediction(ctx, rec)
		update["last_prediction"] = rec
	}
	s.notifier.Broadcast("ai_update", update)

	if s.status != nil {
		if st, err := s.status(ctx); err == nil {
			s.notifier.Broadcast("status", st)
		}
	}
}

// Status summarizes the classifier, the last run and the artifacts on disk.
func (s *TrainingService) Status(ctx context.Context) (AIStatus, error) {
	st := AIStatus{
		ModelTrained:   s.classifier.Trained(),
		TrainingActive: s.orch.Running(),
		LastReport:     s.orch.LastReport(),
		LastOutcome:    s.orch.LastOutcome(),
		Readiness:      s.Readiness(),
	}
	if snap := s.classifier.Snapshot(); snap != nil {
		meta := snap.Meta
		st.ModelMeta = &meta
	}
	if s.artifacts != nil {
		sums, err := s.artifacts.Checksums()
		if err != nil {
			return st, fmt.Errorf("artifact checksums: %w", err)
		}
		st.Checksums = sums
	}
	return st, nil
}

func (s *TrainingService) record(ctx context.Context, typ, desc string, meta any) {
	if err := s.events.Record(ctx, typ, desc, meta); err != nil {
		s.log.Warnw("event_record_failed", "type", typ, "err", err)
	}
}
