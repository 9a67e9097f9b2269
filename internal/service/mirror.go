package service

import (
	"context"
	"time"

	"weather_station/internal/logger"
	"weather_station/internal/metrics"
	"weather_station/internal/models"
)

const mirrorTimeout = 5 * time.Second

// mirrorSet fans records out to every configured mirror. Failures are
// logged and counted, never returned.
type mirrorSet struct {
	mirrors []Mirror
	log     *logger.Logger
}

func newMirrorSet(ms []Mirror, log *logger.Logger) *mirrorSet {
	return &mirrorSet{mirrors: ms, log: log}
}

func (m *mirrorSet) reading(ctx context.Context, r models.SensorReading) {
	for _, mir := range m.mirrors {
		p, ok := mir.(ReadingPublisher)
		if !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
		err := p.PublishReading(cctx, r)
		cancel()
		m.done(mir.Name(), "reading", err)
	}
}

func (m *mirrorSet) prediction(ctx context.Context, rec models.PredictionRecord) {
	for _, mir := range m.mirrors {
		p, ok := mir.(PredictionPublisher)
		if !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
		err := p.PublishPrediction(cctx, rec)
		cancel()
		m.done(mir.Name(), "prediction", err)
	}
}

func (m *mirrorSet) done(target, kind string, err error) {
	metrics.RecordMirror(target, err)
	if err != nil {
		m.log.Warnw("mirror_publish_failed", "target", target, "kind", kind, "err", err)
	}
}
