package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"weather_station/internal/ml"
	"weather_station/internal/models"
)

func TestReadingService_BufferIsBoundedOldestDropped(t *testing.T) {
	repo := &fakeReadingRepo{}
	svc := NewReadingService(repo, 3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r := sampleReading(base.Add(time.Duration(i)*time.Minute), float64(20+i), 50, 40)
		if err := svc.Add(context.Background(), r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	snap := svc.Snapshot()
	if len(snap) != 3 || svc.Count() != 3 {
		t.Fatalf("expected 3 buffered readings, got %d", len(snap))
	}
	if snap[0].Temperature != 22 || snap[2].Temperature != 24 {
		t.Fatalf("expected oldest dropped, got temps %v..%v", snap[0].Temperature, snap[2].Temperature)
	}
	if got := svc.Latest(); got == nil || got.Temperature != 24 {
		t.Fatalf("unexpected latest: %+v", got)
	}
	if len(repo.rows) != 5 {
		t.Fatalf("every reading must be persisted, got %d rows", len(repo.rows))
	}
}

func TestReadingService_PersistFailureStillBuffers(t *testing.T) {
	repo := &fakeReadingRepo{appendErr: errors.New("database is locked")}
	svc := NewReadingService(repo, 10)

	err := svc.Add(context.Background(), sampleReading(time.Now(), 20, 50, 40))
	if err == nil || !errors.Is(err, repo.appendErr) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
	if svc.Count() != 1 {
		t.Fatalf("reading must stay buffered, count=%d", svc.Count())
	}
}

func TestReadingService_SnapshotIsACopy(t *testing.T) {
	svc := NewReadingService(&fakeReadingRepo{}, 10)
	_ = svc.Add(context.Background(), sampleReading(time.Now(), 20, 50, 40))

	snap := svc.Snapshot()
	snap[0].Temperature = 99
	if svc.Latest().Temperature != 20 {
		t.Fatalf("snapshot mutation leaked into the buffer")
	}
}

func TestReadingService_DeviceViews(t *testing.T) {
	svc := NewReadingService(&fakeReadingRepo{}, 10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := sampleReading(base, 20, 50, 40)
	b := sampleReading(base.Add(time.Minute), 21, 50, 40)
	b.DeviceID = "garden"
	c := sampleReading(base.Add(2*time.Minute), 22, 50, 40)
	for _, r := range []models.SensorReading{a, b, c} {
		_ = svc.Add(context.Background(), r)
	}

	if got := svc.LatestFor("garden"); got == nil || got.Temperature != 21 {
		t.Fatalf("LatestFor(garden)=%+v", got)
	}
	if got := svc.LatestFor("attic"); got != nil {
		t.Fatalf("expected nil for unknown device, got %+v", got)
	}
	if got := svc.DeviceHistory("esp32"); len(got) != 2 {
		t.Fatalf("expected 2 esp32 readings, got %d", len(got))
	}

	recent, err := svc.Recent(context.Background(), "garden", 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent(garden): %v, %d rows", err, len(recent))
	}
}

func TestReadingService_ReplaceAndWarm(t *testing.T) {
	repo := &fakeReadingRepo{}
	svc := NewReadingService(repo, 4)

	if err := svc.Replace(context.Background(), threeClassReadings(6)); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if svc.Count() != 4 || len(repo.rows) != 4 {
		t.Fatalf("replace must keep the newest 4, buffer=%d repo=%d", svc.Count(), len(repo.rows))
	}

	fresh := NewReadingService(repo, 4)
	if err := fresh.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if fresh.Count() != 4 {
		t.Fatalf("warm buffer=%d, want 4", fresh.Count())
	}
}

func TestPredictionService_UntrainedSentinelAndForecast(t *testing.T) {
	h := newHarness(t, Options{})
	r := sampleReading(time.Now().UTC(), 24, 50, 40)
	h.load(t, []models.SensorReading{r})

	rec := h.predictions.Build(r)
	if rec.AIPrediction.Condition != ml.ConditionNotTrained {
		t.Fatalf("condition=%q; want %q", rec.AIPrediction.Condition, ml.ConditionNotTrained)
	}
	if rec.Forecast == nil || len(rec.Forecast.HourlyForecast) == 0 {
		t.Fatalf("forecast must be present even without a model: %+v", rec.Forecast)
	}
	if rec.ID == "" || rec.DeviceID != "esp32" {
		t.Fatalf("unexpected record identity: id=%q device=%q", rec.ID, rec.DeviceID)
	}
}

func TestPredictionService_HistoryRing(t *testing.T) {
	h := newHarness(t, Options{Buffer: BufferConfig{MaxPredictions: 3}})
	r := sampleReading(time.Now().UTC(), 24, 50, 40)
	h.load(t, []models.SensorReading{r})

	var ids []string
	for i := 0; i < 5; i++ {
		rec := h.predictions.Build(r)
		ids = append(ids, rec.ID)
		if err := h.predictions.Store(context.Background(), rec); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	all := h.predictions.History(0)
	if len(all) != 3 || all[0].ID != ids[2] {
		t.Fatalf("ring must hold the newest 3 oldest first, got %d", len(all))
	}
	if two := h.predictions.History(2); len(two) != 2 || two[1].ID != ids[4] {
		t.Fatalf("History(2) wrong: %+v", two)
	}
	if last := h.predictions.Last(); last == nil || last.ID != ids[4] {
		t.Fatalf("Last wrong: %+v", last)
	}
}

func TestPredictionService_ForecastWithoutReadings(t *testing.T) {
	h := newHarness(t, Options{})
	if _, err := h.predictions.Forecast(""); !errors.Is(err, ErrNoReadings) {
		t.Fatalf("expected ErrNoReadings, got %v", err)
	}
	h.load(t, []models.SensorReading{sampleReading(time.Now().UTC(), 24, 50, 40)})
	if _, err := h.predictions.Forecast("esp32"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.predictions.Forecast("garden"); !errors.Is(err, ErrNoReadings) {
		t.Fatalf("expected ErrNoReadings for unknown device, got %v", err)
	}
}
