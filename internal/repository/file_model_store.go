package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
	applogger "SalesPulse/pkg/logger"
)

const (
	currentFile   = "CURRENT"
	bundlesDir    = "bundles"
	estimatorFile = "estimator.json"
	encoderFile   = "encoder.json"
	metadataFile  = "metadata.json"
	tmpPrefix     = ".tmp-"
)

// FileModelStore keeps bundles under <dir>/bundles/<id>/ and names the live
// one in <dir>/CURRENT. Readers only ever follow CURRENT, which is replaced
// by rename after the bundle directory is complete.
type FileModelStore struct {
	dir  string
	keep int
	l    *applogger.Logger
	mu   sync.Mutex
}

var _ domrepo.ModelStore = (*FileModelStore)(nil)

func NewFileModelStore(dir string, keep int, l *applogger.Logger) *FileModelStore {
	if keep < 1 {
		keep = 2
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &FileModelStore{dir: dir, keep: keep, l: l}
}

func (s *FileModelStore) Path() string { return s.dir }

func (s *FileModelStore) Save(_ context.Context, b domrepo.ArtifactBundle) error {
	if err := validBundleID(b.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	root := filepath.Join(s.dir, bundlesDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create bundle root: %w", err)
	}

	tmp, err := os.MkdirTemp(root, tmpPrefix+b.ID+"-")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }

	for name, data := range map[string][]byte{
		estimatorFile: b.Estimator,
		encoderFile:   b.Encoder,
		metadataFile:  b.Metadata,
	} {
		if err := writeFileSync(filepath.Join(tmp, name), data); err != nil {
			cleanup()
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	final := filepath.Join(root, b.ID)
	if err := os.RemoveAll(final); err != nil {
		cleanup()
		return fmt.Errorf("replace bundle %s: %w", b.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		cleanup()
		return fmt.Errorf("publish bundle %s: %w", b.ID, err)
	}

	if err := replaceFile(filepath.Join(s.dir, currentFile), []byte(b.ID+"\n")); err != nil {
		return fmt.Errorf("switch current bundle: %w", err)
	}

	s.prune(b.ID)
	s.l.Info("model bundle saved",
		applogger.String("bundle_id", b.ID),
		applogger.String("path", final),
	)
	return nil
}

func (s *FileModelStore) Load(_ context.Context) (domrepo.ArtifactBundle, bool, error) {
	id, ok, err := s.current()
	if err != nil || !ok {
		return domrepo.ArtifactBundle{}, false, err
	}

	dir := filepath.Join(s.dir, bundlesDir, id)
	b := domrepo.ArtifactBundle{ID: id}
	for _, part := range []struct {
		name string
		dst  *[]byte
	}{
		{estimatorFile, &b.Estimator},
		{encoderFile, &b.Encoder},
		{metadataFile, &b.Metadata},
	} {
		data, err := os.ReadFile(filepath.Join(dir, part.name))
		if errors.Is(err, fs.ErrNotExist) {
			return domrepo.ArtifactBundle{}, false, fmt.Errorf("%w: bundle %s has no %s", models.ErrCorruptBundle, id, part.name)
		}
		if err != nil {
			return domrepo.ArtifactBundle{}, false, fmt.Errorf("read %s: %w", part.name, err)
		}
		*part.dst = data
	}
	return b, true, nil
}

// Stat reports the live bundle from disk without decoding it.
func (s *FileModelStore) Stat(_ context.Context) (models.BundleStat, error) {
	id, ok, err := s.current()
	if err != nil {
		return models.BundleStat{}, err
	}
	if !ok {
		return models.BundleStat{Path: filepath.Join(s.dir, currentFile)}, nil
	}

	dir := filepath.Join(s.dir, bundlesDir, id)
	st := models.BundleStat{BundleID: id, Path: filepath.Join(dir, estimatorFile)}
	for _, name := range []string{estimatorFile, encoderFile, metadataFile} {
		fi, err := os.Stat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		if err != nil {
			return models.BundleStat{}, fmt.Errorf("stat %s: %w", name, err)
		}
		st.SizeBytes += fi.Size()
	}
	st.Exists = true
	return st, nil
}

func (s *FileModelStore) current() (string, bool, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read current bundle pointer: %w", err)
	}
	id := strings.TrimSpace(string(raw))
	if err := validBundleID(id); err != nil {
		return "", false, fmt.Errorf("%w: %v", models.ErrCorruptBundle, err)
	}
	return id, true, nil
}

// prune removes leftover temp directories and all but the newest s.keep
// bundles. The live bundle is always kept. Failures are only logged.
func (s *FileModelStore) prune(live string) {
	root := filepath.Join(s.dir, bundlesDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		s.l.Warn("list bundles for pruning", applogger.Error(err))
		return
	}

	type bundleDir struct {
		name string
		mod  int64
	}
	var old []bundleDir
	for _, e := range entries {
		if !e.IsDir() || e.Name() == live {
			continue
		}
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			_ = os.RemoveAll(filepath.Join(root, e.Name()))
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		old = append(old, bundleDir{name: e.Name(), mod: info.ModTime().UnixNano()})
	}

	sort.Slice(old, func(i, j int) bool {
		if old[i].mod != old[j].mod {
			return old[i].mod > old[j].mod
		}
		return old[i].name > old[j].name
	})
	for i, b := range old {
		if i < s.keep-1 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, b.name)); err != nil {
			s.l.Warn("prune bundle", applogger.String("bundle_id", b.name), applogger.Error(err))
		}
	}
}

func validBundleID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, tmpPrefix) {
		return fmt.Errorf("invalid bundle id %q", id)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// replaceFile writes data next to path and renames it over path.
func replaceFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
