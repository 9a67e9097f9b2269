package repository

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"weather_station/internal/ml"
	"weather_station/internal/models"
)

const (
	ModelFileName  = "weather_model.gob.gz"
	ScalerFileName = "scaler.gob.gz"
	MetaFileName   = "weather_model.meta.json"
)

// ModelFiles stores the forest, the scaler and a JSON metadata sidecar under
// one directory. Every file is replaced with write-to-temp, fsync, rename.
type ModelFiles struct {
	dir string
	now func() time.Time
}

func NewModelFiles(dir string) *ModelFiles {
	return &ModelFiles{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

var _ ml.ArtifactStore = (*ModelFiles)(nil)

func (m *ModelFiles) ModelPath() string  { return filepath.Join(m.dir, ModelFileName) }
func (m *ModelFiles) ScalerPath() string { return filepath.Join(m.dir, ScalerFileName) }
func (m *ModelFiles) MetaPath() string   { return filepath.Join(m.dir, MetaFileName) }

// Save replaces model, scaler and metadata as one unit. All three are
// staged as fsynced temp files first; the renames run only when staging
// succeeded, and a failed rename rolls back the artifacts already swapped.
func (m *ModelFiles) Save(state *ml.ModelState) (models.ModelMeta, error) {
	if state == nil || state.Forest == nil || state.Scaler == nil {
		return models.ModelMeta{}, errors.New("incomplete model state")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return models.ModelMeta{}, fmt.Errorf("create model dir: %w", err)
	}

	meta := state.Meta
	meta.SavedAt = m.now()
	meta.ModelPath = m.ModelPath()
	meta.ScalerPath = m.ScalerPath()

	artifacts := []struct {
		name  string
		path  string
		write func(io.Writer) error
	}{
		{"model", m.ModelPath(), gobGzip(state.Forest)},
		{"scaler", m.ScalerPath(), gobGzip(state.Scaler)},
		{"model meta", m.MetaPath(), func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		}},
	}

	staged := make([]string, 0, len(artifacts))
	defer func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()
	for _, a := range artifacts {
		tmp, err := stageTemp(a.path, a.write)
		if err != nil {
			return models.ModelMeta{}, fmt.Errorf("write %s: %w", a.name, err)
		}
		staged = append(staged, tmp)
	}

	var done []swap
	for i, a := range artifacts {
		sw, err := replaceFile(staged[i], a.path)
		if err != nil {
			rollback(done)
			return models.ModelMeta{}, fmt.Errorf("write %s: %w", a.name, err)
		}
		done = append(done, sw)
	}
	for _, sw := range done {
		sw.discardBackup()
	}
	return meta, nil
}

// Load reads every artifact back. It returns ml.ErrNoModel when nothing was
// ever saved.
func (m *ModelFiles) Load() (*ml.ModelState, error) {
	var state ml.ModelState

	if err := readGobGzip(m.ModelPath(), &state.Forest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ml.ErrNoModel
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	if err := readGobGzip(m.ScalerPath(), &state.Scaler); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ml.ErrNoModel
		}
		return nil, fmt.Errorf("read scaler: %w", err)
	}

	b, err := os.ReadFile(m.MetaPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		state.Meta = models.ModelMeta{EvaluationMode: models.EvaluationUnknown}
	case err != nil:
		return nil, fmt.Errorf("read model meta: %w", err)
	default:
		if err := json.Unmarshal(b, &state.Meta); err != nil {
			return nil, fmt.Errorf("decode model meta: %w", err)
		}
	}
	return &state, nil
}

// Checksums returns the SHA-256 of every artifact that exists, keyed by file name.
func (m *ModelFiles) Checksums() (map[string]string, error) {
	out := make(map[string]string, 3)
	for _, name := range []string{ModelFileName, ScalerFileName, MetaFileName} {
		sum, err := fileSHA256(filepath.Join(m.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, nil
}

func gobGzip(v any) func(io.Writer) error {
	return func(w io.Writer) error {
		gz := gzip.NewWriter(w)
		if err := gob.NewEncoder(gz).Encode(v); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	}
}

func readGobGzip(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("open gzip stream %s: %w", filepath.Base(path), err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// stageTemp writes to a fsynced temp file next to path and returns its name.
func stageTemp(path string, write func(io.Writer) error) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return "", err
	}
	if err = bw.Flush(); err != nil {
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

// writeAtomic replaces a single file via stageTemp and rename. On failure
// the previous file is left untouched.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := stageTemp(path, write)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// swap records one committed rename and the hard link that keeps the
// previous content reachable until the whole set is committed.
type swap struct {
	path   string
	backup string // empty when path did not exist before
}

func replaceFile(tmp, path string) (swap, error) {
	sw := swap{path: path}
	if _, err := os.Lstat(path); err == nil {
		sw.backup = path + ".prev"
		_ = os.Remove(sw.backup)
		if err := os.Link(path, sw.backup); err != nil {
			return swap{}, fmt.Errorf("keep previous %s: %w", filepath.Base(path), err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		sw.discardBackup()
		return swap{}, err
	}
	return sw, nil
}

func (s swap) discardBackup() {
	if s.backup != "" {
		_ = os.Remove(s.backup)
	}
}

// rollback restores committed swaps in reverse order.
func rollback(done []swap) {
	for i := len(done) - 1; i >= 0; i-- {
		sw := done[i]
		if sw.backup == "" {
			_ = os.Remove(sw.path)
			continue
		}
		_ = os.Rename(sw.backup, sw.path)
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
