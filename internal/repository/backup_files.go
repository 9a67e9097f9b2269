package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"weather_station/internal/models"
)

const (
	backupPrefix = "backup_"
	backupSuffix = ".json"
	backupLayout = "20060102_150405"
)

var (
	// ErrNoBackup is returned when the backup directory holds no backup file.
	ErrNoBackup          = errors.New("no backup found")
	ErrInvalidBackupName = errors.New("invalid backup name")
)

// BackupFiles keeps timestamped JSON snapshots and prunes all but the newest.
type BackupFiles struct {
	dir  string
	keep int
}

func NewBackupFiles(dir string, keep int) *BackupFiles {
	if keep <= 0 {
		keep = 10
	}
	return &BackupFiles{dir: dir, keep: keep}
}

// Write stores b as backup_<created_at>.json and prunes old files.
func (s *BackupFiles) Write(b models.Backup) (models.BackupFile, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return models.BackupFile{}, fmt.Errorf("create backup dir: %w", err)
	}
	name := backupPrefix + b.CreatedAt.UTC().Format(backupLayout) + backupSuffix
	path := filepath.Join(s.dir, name)

	err := writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	})
	if err != nil {
		return models.BackupFile{}, fmt.Errorf("write backup %s: %w", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.BackupFile{}, fmt.Errorf("stat backup %s: %w", name, err)
	}
	if _, err := s.prune(); err != nil {
		return models.BackupFile{}, err
	}
	return models.BackupFile{Name: name, SizeBytes: info.Size(), CreatedAt: b.CreatedAt.UTC()}, nil
}

// List returns backups newest first.
func (s *BackupFiles) List() ([]models.BackupFile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var out []models.BackupFile
	for _, e := range entries {
		at, ok := parseBackupName(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, models.BackupFile{Name: e.Name(), SizeBytes: info.Size(), CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// Read loads the named backup, or the newest one when name is empty.
func (s *BackupFiles) Read(name string) (models.Backup, error) {
	if name == "" {
		files, err := s.List()
		if err != nil {
			return models.Backup{}, err
		}
		if len(files) == 0 {
			return models.Backup{}, ErrNoBackup
		}
		name = files[0].Name
	}
	if _, ok := parseBackupName(name); !ok || filepath.Base(name) != name {
		return models.Backup{}, fmt.Errorf("%w %q", ErrInvalidBackupName, name)
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return models.Backup{}, ErrNoBackup
	}
	if err != nil {
		return models.Backup{}, fmt.Errorf("read backup %s: %w", name, err)
	}
	var b models.Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return models.Backup{}, fmt.Errorf("decode backup %s: %w", name, err)
	}
	return b, nil
}

func (s *BackupFiles) prune() (int, error) {
	files, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files[min(len(files), s.keep):] {
		if err := os.Remove(filepath.Join(s.dir, f.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove old backup %s: %w", f.Name, err)
		}
		removed++
	}
	return removed, nil
}

func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	at, err := time.ParseInLocation(backupLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
