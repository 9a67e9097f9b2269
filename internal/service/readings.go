package service

import (
	"context"
	"fmt"
	"sync"

	"weather_station/internal/models"
	"weather_station/internal/repository"
)

const (
	defaultMaxReadings  = 1000
	defaultHistoryLimit = 100
)

// ReadingService is the ordered in-memory reading buffer backed by SQLite.
// The buffer holds at most max readings, oldest first.
type ReadingService struct {
	repo repository.ReadingRepo
	max  int

	mu  sync.RWMutex
	buf []models.SensorReading
}

func NewReadingService(repo repository.ReadingRepo, max int) *ReadingService {
	if max <= 0 {
		max = defaultMaxReadings
	}
	return &ReadingService{repo: repo, max: max}
}

// Warm fills the buffer from the newest persisted readings.
func (s *ReadingService) Warm(ctx context.Context) error {
	rs, err := s.repo.Recent(ctx, "", s.max)
	if err != nil {
		return fmt.Errorf("warm reading buffer: %w", err)
	}
	s.mu.Lock()
	s.buf = rs
	s.mu.Unlock()
	return nil
}

// Add appends r to the buffer and persists it. The buffer is updated even
// when persisting fails.
func (s *ReadingService) Add(ctx context.Context, r models.SensorReading) error {
	s.mu.Lock()
	s.buf = append(s.buf, r)
	if over := len(s.buf) - s.max; over > 0 {
		s.buf = append(s.buf[:0:0], s.buf[over:]...)
	}
	s.mu.Unlock()

	if err := s.repo.Append(ctx, r); err != nil {
		return fmt.Errorf("persist reading: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the buffer, oldest first.
func (s *ReadingService) Snapshot() []models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SensorReading, len(s.buf))
	copy(out, s.buf)
	return out
}

// DeviceHistory returns buffered readings of one device, oldest first.
func (s *ReadingService) DeviceHistory(deviceID string) []models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SensorReading
	for _, r := range s.buf {
		if r.DeviceID == deviceID {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns up to limit persisted readings, optionally for one device, oldest first.
func (s *ReadingService) Recent(ctx context.Context, deviceID string, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.Recent(ctx, deviceID, limit)
}

// Latest returns the newest buffered reading.
func (s *ReadingService) Latest() *models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buf) == 0 {
		return nil
	}
	r := s.buf[len(s.buf)-1]
	return &r
}

// LatestFor returns the newest buffered reading of one device.
func (s *ReadingService) LatestFor(deviceID string) *models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.buf) - 1; i >= 0; i-- {
		if s.buf[i].DeviceID == deviceID {
			r := s.buf[i]
			return &r
		}
	}
	return nil
}

func (s *ReadingService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// Replace swaps the whole buffer and the persisted table for rs.
func (s *ReadingService) Replace(ctx context.Context, rs []models.SensorReading) error {
	if len(rs) > s.max {
		rs = rs[len(rs)-s.max:]
	}
	if err := s.repo.ReplaceAll(ctx, rs); err != nil {
		return fmt.Errorf("replace readings: %w", err)
	}
	buf := make([]models.SensorReading, len(rs))
	copy(buf, rs)
	s.mu.Lock()
	s.buf = buf
	s.mu.Unlock()
	return nil
}
