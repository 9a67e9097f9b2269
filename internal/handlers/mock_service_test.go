package handlers

import (
	"context"
	"net/http"
	"time"

	"weather_station/internal/models"
	"weather_station/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockReadings struct {
	recent     []models.SensorReading
	recentErr  error
	latest     *models.SensorReading
	lastDevice string
	lastLimit  int
}

func (m *mockReadings) Recent(ctx context.Context, deviceID string, limit int) ([]models.SensorReading, error) {
	m.lastDevice = deviceID
	m.lastLimit = limit
	return m.recent, m.recentErr
}
func (m *mockReadings) Latest() *models.SensorReading { return m.latest }
func (m *mockReadings) Count() int                    { return len(m.recent) }

type mockIngestion struct {
	res   service.IngestResult
	err   error
	last  service.IngestInput
	calls int
}

func (m *mockIngestion) Ingest(ctx context.Context, in service.IngestInput) (service.IngestResult, error) {
	m.calls++
	m.last = in
	return m.res, m.err
}

type mockPredictions struct {
	history     []models.PredictionRecord
	forecast    models.ForecastResult
	forecastErr error
	lastLimit   int
}

func (m *mockPredictions) History(limit int) []models.PredictionRecord {
	m.lastLimit = limit
	return m.history
}
func (m *mockPredictions) Last() *models.PredictionRecord {
	if len(m.history) == 0 {
		return nil
	}
	return &m.history[len(m.history)-1]
}
func (m *mockPredictions) Forecast(deviceID string) (models.ForecastResult, error) {
	return m.forecast, m.forecastErr
}

type mockTraining struct {
	trigger    service.TriggerResult
	triggerErr error
	lastForce  bool
	calls      int
	status     service.AIStatus
	statusErr  error
	readiness  models.Readiness
}

func (m *mockTraining) Trigger(ctx context.Context, force bool) (service.TriggerResult, error) {
	m.calls++
	m.lastForce = force
	return m.trigger, m.triggerErr
}
func (m *mockTraining) Status(ctx context.Context) (service.AIStatus, error) {
	return m.status, m.statusErr
}
func (m *mockTraining) Readiness() models.Readiness { return m.readiness }

type mockMonitoring struct {
	status models.StationStatus
	err    error
}

func (m *mockMonitoring) StationStatus(ctx context.Context) (models.StationStatus, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockBackup struct {
	file        models.BackupFile
	createErr   error
	restore     service.RestoreResult
	restoreErr  error
	lastRestore string
	files       []models.BackupFile
	listErr     error
}

func (m *mockBackup) Create(ctx context.Context) (models.BackupFile, error) {
	return m.file, m.createErr
}
func (m *mockBackup) Restore(ctx context.Context, name string) (service.RestoreResult, error) {
	m.lastRestore = name
	return m.restore, m.restoreErr
}
func (m *mockBackup) Backups() ([]models.BackupFile, error) { return m.files, m.listErr }

type mockDevices struct {
	requireAuth bool
	device      models.Device
	registerErr error
	session     models.Session
	handshake   error
	authErr     error
	lastCred    service.DeviceCredentials
	list        []models.Device
}

func (m *mockDevices) Register(ctx context.Context, name string) (models.Device, error) {
	d := m.device
	d.Name = name
	return d, m.registerErr
}
func (m *mockDevices) Handshake(ctx context.Context, req service.HandshakeRequest) (models.Session, error) {
	return m.session, m.handshake
}
func (m *mockDevices) Authenticate(ctx context.Context, cred service.DeviceCredentials) error {
	m.lastCred = cred
	return m.authErr
}
func (m *mockDevices) List(ctx context.Context) ([]models.Device, error) { return m.list, nil }
func (m *mockDevices) RequireAuth() bool                                 { return m.requireAuth }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
