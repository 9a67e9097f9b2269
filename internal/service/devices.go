package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"weather_station/internal/logger"
	"weather_station/internal/models"
	"weather_station/internal/repository"
	"weather_station/internal/sensor"
)

const (
	defaultSessionTTL   = time.Hour
	defaultAllowedDrift = time.Minute
	defaultOfflineAfter = 15 * time.Second

	secretBytes = 32
	tokenBytes  = 32
)

// DeviceService registers stations, verifies their signed handshakes and
// tracks when each device was last heard from. Sessions live in memory.
type DeviceService struct {
	repo   repository.DeviceRepo
	cfg    DeviceConfig
	events *EventLogService
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]models.Session
	lastSeen map[string]time.Time
}

func NewDeviceService(repo repository.DeviceRepo, cfg DeviceConfig, events *EventLogService, log *logger.Logger) *DeviceService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.AllowedDrift <= 0 {
		cfg.AllowedDrift = defaultAllowedDrift
	}
	if cfg.OfflineAfter <= 0 {
		cfg.OfflineAfter = defaultOfflineAfter
	}
	return &DeviceService{
		repo:     repo,
		cfg:      cfg,
		events:   events,
		log:      log,
		now:      time.Now,
		sessions: map[string]models.Session{},
		lastSeen: map[string]time.Time{},
	}
}

func (s *DeviceService) RequireAuth() bool { return s.cfg.RequireAuth }

// Register creates a device with a random id and secret. The returned
// Device is the only place the secret is ever exposed.
func (s *DeviceService) Register(ctx context.Context, name string) (models.Device, error) {
	secret, err := randomHex(secretBytes)
	if err != nil {
		return models.Device{}, err
	}
	d := models.Device{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Name:      strings.TrimSpace(name),
		Secret:    secret,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return models.Device{}, err
	}
	if err := s.events.Record(ctx, models.EventDeviceRegistered, "device registered", map[string]any{
		"device_id": d.ID,
		"name":      d.Name,
	}); err != nil {
		s.log.Warnw("event_record_failed", "type", models.EventDeviceRegistered, "err", err)
	}
	return d, nil
}

// Handshake verifies HMAC-SHA256(secret, "device_id:timestamp") and issues a session.
func (s *DeviceService) Handshake(ctx context.Context, req HandshakeRequest) (models.Session, error) {
	if err := s.verifySignature(ctx, req.DeviceID, req.Timestamp, req.Signature); err != nil {
		return models.Session{}, err
	}
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return models.Session{}, fmt.Errorf("session token: %w", err)
	}
	sess := models.Session{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		DeviceID:  req.DeviceID,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL).UTC(),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Authenticate accepts either a live session token or a fresh signature.
func (s *DeviceService) Authenticate(ctx context.Context, cred DeviceCredentials) error {
	if cred.DeviceID == "" {
		return ErrInvalidDevice
	}
	if cred.SessionToken != "" {
		return s.validateSession(cred.DeviceID, cred.SessionToken)
	}
	return s.verifySignature(ctx, cred.DeviceID, cred.Timestamp, cred.Signature)
}

func (s *DeviceService) validateSession(deviceID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || sess.DeviceID != deviceID {
		return ErrInvalidSession
	}
	if sess.ExpiresAt.Before(s.now()) {
		delete(s.sessions, token)
		return ErrInvalidSession
	}
	return nil
}

func (s *DeviceService) verifySignature(ctx context.Context, deviceID, timestamp, signature string) error {
	if deviceID == "" || signature == "" {
		return ErrInvalidSignature
	}
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if d == nil {
		return ErrInvalidDevice
	}
	ts, ok := sensor.ParseTimestamp(timestamp)
	if !ok {
		return ErrInvalidSignature
	}
	if drift := s.now().Sub(ts); drift > s.cfg.AllowedDrift || drift < -s.cfg.AllowedDrift {
		return ErrClockDrift
	}
	want := Sign(d.Secret, deviceID, timestamp)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 a device sends for deviceID and timestamp.
func Sign(secret, deviceID, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(deviceID + ":" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Touch marks a device as seen at at. Unregistered ids are tracked in memory only.
func (s *DeviceService) Touch(ctx context.Context, deviceID string, at time.Time) {
	s.mu.Lock()
	s.lastSeen[deviceID] = at.UTC()
	s.mu.Unlock()

	if err := s.repo.Touch(ctx, deviceID, at); err != nil {
		s.log.Warnw("device_touch_failed", "device_id", deviceID, "err", err)
	}
}

func (s *DeviceService) List(ctx context.Context) ([]models.Device, error) {
	return s.repo.List(ctx)
}

// States reports online/offline for every registered or recently seen
// device, sorted by id.
func (s *DeviceService) States(ctx context.Context) ([]models.DeviceState, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]time.Time{}
	for _, d := range devices {
		if d.LastSeen != nil {
			seen[d.ID] = *d.LastSeen
		} else {
			seen[d.ID] = time.Time{}
		}
	}
	s.mu.Lock()
	for id, at := range s.lastSeen {
		if at.After(seen[id]) {
			seen[id] = at
		}
	}
	s.mu.Unlock()

	now := s.now()
	out := make([]models.DeviceState, 0, len(seen))
	for id, at := range seen {
		st := models.DeviceState{DeviceID: id}
		if !at.IsZero() {
			last := at.UTC()
			ago := int64(now.Sub(at) / time.Second)
			st.LastSeen, st.SecondsAgo = &last, &ago
			st.Online = now.Sub(at) <= s.cfg.OfflineAfter
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
