package service

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"weather_station/internal/forecast"
	"weather_station/internal/ml"
	"weather_station/internal/models"
	"weather_station/internal/repository"
)

// fakeReadingRepo keeps readings in insertion order.
type fakeReadingRepo struct {
	mu        sync.Mutex
	rows      []models.SensorReading
	appendErr error
}

func (f *fakeReadingRepo) Append(ctx context.Context, r models.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeReadingRepo) Recent(ctx context.Context, deviceID string, limit int) ([]models.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SensorReading
	for _, r := range f.rows {
		if deviceID == "" || r.DeviceID == deviceID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeReadingRepo) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *fakeReadingRepo) Trim(ctx context.Context, keep int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rows) <= keep {
		return 0, nil
	}
	n := len(f.rows) - keep
	f.rows = f.rows[n:]
	return int64(n), nil
}

func (f *fakeReadingRepo) ReplaceAll(ctx context.Context, rs []models.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append([]models.SensorReading(nil), rs...)
	return nil
}

type fakePredictionRepo struct {
	mu   sync.Mutex
	rows []models.PredictionRecord
}

func (f *fakePredictionRepo) Append(ctx context.Context, p models.PredictionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, p)
	return nil
}

func (f *fakePredictionRepo) Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.rows
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]models.PredictionRecord(nil), out...), nil
}

func (f *fakePredictionRepo) Trim(ctx context.Context, keep int) (int64, error) { return 0, nil }

func (f *fakePredictionRepo) ReplaceAll(ctx context.Context, recs []models.PredictionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append([]models.PredictionRecord(nil), recs...)
	return nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]models.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: map[string]models.Device{}}
}

func (f *fakeDeviceRepo) Create(ctx context.Context, d models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[d.ID]; ok {
		return errors.New("UNIQUE constraint failed: devices.id")
	}
	f.devices[d.ID] = d
	return nil
}

func (f *fakeDeviceRepo) Get(ctx context.Context, id string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeDeviceRepo) List(ctx context.Context) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDeviceRepo) Touch(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		at := at.UTC()
		d.LastSeen = &at
		f.devices[id] = d
	}
	return nil
}

type message struct {
	Type string
	Data any
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []message
}

func (n *recordingNotifier) Broadcast(msgType string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, message{Type: msgType, Data: data})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Type
	}
	return out
}

func (n *recordingNotifier) last(msgType string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		if n.msgs[i].Type == msgType {
			return n.msgs[i].Data, true
		}
	}
	return nil, false
}

// fakeMirror accepts both readings and predictions.
type fakeMirror struct {
	mu          sync.Mutex
	readings    []models.SensorReading
	predictions []models.PredictionRecord
	err         error
}

func (m *fakeMirror) Name() string { return "fake" }

func (m *fakeMirror) PublishReading(ctx context.Context, r models.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, r)
	return m.err
}

func (m *fakeMirror) PublishPrediction(ctx context.Context, p models.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, p)
	return m.err
}

// harness is a fully wired Service over in-memory repositories and
// temp-dir artifact and backup stores.
type harness struct {
	svc *Service

	readingRepo *fakeReadingRepo
	predRepo    *fakePredictionRepo
	deviceRepo  *fakeDeviceRepo
	eventRepo   *fakeEventRepo
	artifacts   *repository.ModelFiles
	notifier    *recordingNotifier
	mirror      *fakeMirror
	classifier  *ml.Classifier
	orch        *ml.Orchestrator

	readings    *ReadingService
	predictions *PredictionService
	training    *TrainingService
	devices     *DeviceService
	ingestion   *IngestionService
	backups     *BackupService
}

func testMLConfig() ml.Config {
	cfg := ml.DefaultConfig()
	cfg.Forest.Trees = 15
	return cfg
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	return newHarnessWithStore(t, opts, nil)
}

func newHarnessWithStore(t *testing.T, opts Options, store ml.ArtifactStore) *harness {
	t.Helper()

	dir := t.TempDir()
	h := &harness{
		readingRepo: &fakeReadingRepo{},
		predRepo:    &fakePredictionRepo{},
		deviceRepo:  newFakeDeviceRepo(),
		eventRepo:   &fakeEventRepo{},
		artifacts:   repository.NewModelFiles(filepath.Join(dir, "models")),
		notifier:    &recordingNotifier{},
		mirror:      &fakeMirror{},
		classifier:  ml.NewClassifier(),
	}
	if store == nil {
		store = h.artifacts
	}
	h.orch = ml.NewOrchestrator(testMLConfig(), store, h.classifier)

	h.svc = NewService(Dependencies{
		Repos: &repository.Repository{
			Readings:    h.readingRepo,
			Predictions: h.predRepo,
			EventRepo:   h.eventRepo,
			Devices:     h.deviceRepo,
			Auth:        &mockAuthRepo{},
		},
		Artifacts:    h.artifacts,
		Backups:      repository.NewBackupFiles(filepath.Join(dir, "backups"), 3),
		Classifier:   h.classifier,
		Orchestrator: h.orch,
		Forecast:     forecast.NewEngine(forecast.DefaultConfig()),
		Notifier:     h.notifier,
		Mirrors:      []Mirror{h.mirror},
	}, opts)

	h.readings = h.svc.Readings.(*ReadingService)
	h.predictions = h.svc.Predictions.(*PredictionService)
	h.training = h.svc.Training.(*TrainingService)
	h.devices = h.svc.Devices.(*DeviceService)
	h.ingestion = h.svc.Ingestion.(*IngestionService)
	h.backups = h.svc.Backup.(*BackupService)
	return h
}

func sampleReading(at time.Time, temp, hum, aq float64) models.SensorReading {
	return models.SensorReading{
		DeviceID:       "esp32",
		Temperature:    temp,
		Humidity:       hum,
		AirQuality:     aq,
		LightIntensity: 500,
		BatteryVoltage: 3.9,
		Timestamp:      at,
	}
}

// threeClassReadings alternates Very Hot, Normal and Cold readings a minute apart.
func threeClassReadings(n int) []models.SensorReading {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	shapes := [][3]float64{{36, 35, 80}, {24, 50, 40}, {10, 40, 30}}
	out := make([]models.SensorReading, 0, n)
	for i := 0; i < n; i++ {
		s := shapes[i%3]
		out = append(out, sampleReading(base.Add(time.Duration(i)*time.Minute), s[0], s[1], s[2]))
	}
	return out
}

func (h *harness) load(t *testing.T, rs []models.SensorReading) {
	t.Helper()
	for _, r := range rs {
		if err := h.readings.Add(context.Background(), r); err != nil {
			t.Fatalf("add reading: %v", err)
		}
	}
}

func payload(deviceID string, temp, hum, aq float64) map[string]any {
	p := map[string]any{
		"temperature":     temp,
		"humidity":        hum,
		"air_quality":     aq,
		"light_intensity": 800.0,
		"battery_voltage": 3.95,
	}
	if deviceID != "" {
		p["device_id"] = deviceID
	}
	return p
}
