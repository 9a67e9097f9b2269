package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"weather_station/internal/logger"
	"weather_station/internal/models"
)

// Backuper writes a snapshot of the buffers.
type Backuper interface {
	Create(ctx context.Context) (models.BackupFile, error)
}

// Trimmer drops all but the newest keep rows of a table.
type Trimmer interface {
	Trim(ctx context.Context, keep int) (int64, error)
}

// StatusSource returns the station snapshot used for presence tracking.
type StatusSource interface {
	StationStatus(ctx context.Context) (models.StationStatus, error)
}

// Notifier pushes a typed message to realtime subscribers.
type Notifier interface {
	Broadcast(msgType string, data any)
}

// BackupWorker writes periodic backups.
type BackupWorker struct {
	*BaseWorker
	backups Backuper
	log     *logger.Logger
}

func NewBackupWorker(b Backuper, interval time.Duration, enabled bool, log *logger.Logger) *BackupWorker {
	return &BackupWorker{
		BaseWorker: NewBaseWorker("backup", interval, enabled),
		backups:    b,
		log:        log,
	}
}

func (w *BackupWorker) Run(ctx context.Context) error {
	f, err := w.backups.Create(ctx)
	if err != nil {
		return fmt.Errorf("periodic backup: %w", err)
	}
	w.log.Infow("backup_written", "file", f.Name, "size_bytes", f.SizeBytes)
	return nil
}

// RetentionTarget is one table to trim.
type RetentionTarget struct {
	Name string
	Repo Trimmer
	Keep int
}

// RetentionWorker keeps persisted readings and predictions bounded.
type RetentionWorker struct {
	*BaseWorker
	targets []RetentionTarget
	log     *logger.Logger
}

func NewRetentionWorker(interval time.Duration, log *logger.Logger, targets ...RetentionTarget) *RetentionWorker {
	return &RetentionWorker{
		BaseWorker: NewBaseWorker("retention", interval, len(targets) > 0),
		targets:    targets,
		log:        log,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	for _, t := range w.targets {
		if t.Keep <= 0 {
			continue
		}
		n, err := t.Repo.Trim(ctx, t.Keep)
		if err != nil {
			return fmt.Errorf("trim %s: %w", t.Name, err)
		}
		if n > 0 {
			w.log.Infow("retention_trimmed", "table", t.Name, "rows", n, "keep", t.Keep)
		}
	}
	return nil
}

// PresenceWorker broadcasts a status message whenever a device goes online or offline.
type PresenceWorker struct {
	*BaseWorker
	source   StatusSource
	notifier Notifier
	log      *logger.Logger

	mu     sync.Mutex
	online map[string]bool
}

func NewPresenceWorker(src StatusSource, n Notifier, interval time.Duration, log *logger.Logger) *PresenceWorker {
	return &PresenceWorker{
		BaseWorker: NewBaseWorker("presence", interval, true),
		source:     src,
		notifier:   n,
		log:        log,
		online:     map[string]bool{},
	}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	st, err := w.source.StationStatus(ctx)
	if err != nil {
		return fmt.Errorf("station status: %w", err)
	}

	w.mu.Lock()
	changed := false
	for _, d := range st.Devices {
		prev, seen := w.online[d.DeviceID]
		if seen && prev != d.Online {
			changed = true
			w.log.Infow("device_presence_changed", "device_id", d.DeviceID, "online", d.Online)
		}
		w.online[d.DeviceID] = d.Online
	}
	w.mu.Unlock()

	if changed {
		w.notifier.Broadcast("status", st)
	}
	return nil
}
