// Package local provides a flat-file implementation of the storage
// interfaces: a JSON catalog, JSON detection results, and raw image assets
// under one base directory.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/storage"
)

const (
	catalogFile    = "catalog.json"
	differencesDir = "differences"
	assetsDir      = "assets"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Compile-time interface checks.
var (
	_ storage.CatalogStore    = (*FileStore)(nil)
	_ storage.DifferenceStore = (*FileStore)(nil)
	_ storage.AssetStore      = (*FileStore)(nil)
)

// FileStore persists the catalog, detection results, and assets under a
// single base directory. It is safe for concurrent use; catalog writes are
// serialized and performed atomically via a temp file rename.
type FileStore struct {
	baseDir     string
	assetPrefix string

	mu sync.Mutex // serializes catalog and differences writes
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithAssetPrefix sets the URL path prefix returned for stored assets.
// Default is "/assets".
func WithAssetPrefix(prefix string) Option {
	return func(s *FileStore) { s.assetPrefix = prefix }
}

// NewFileStore creates a FileStore rooted at baseDir, creating the directory
// layout if needed.
func NewFileStore(baseDir string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		baseDir:     baseDir,
		assetPrefix: "/assets",
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{baseDir, filepath.Join(baseDir, differencesDir), filepath.Join(baseDir, assetsDir)} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, &storage.StorageError{Op: "create storage directory", Err: err}
		}
	}
	return s, nil
}

// LoadCatalog returns every game in the catalog. A missing catalog file is an
// empty catalog, not an error.
func (s *FileStore) LoadCatalog(_ context.Context) ([]storage.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.baseDir, catalogFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []storage.Game{}, nil
		}
		return nil, &storage.StorageError{Op: "load catalog", Err: err}
	}

	var games []storage.Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, &storage.StorageError{Op: "parse catalog", Err: err}
	}
	return games, nil
}

// SaveCatalog replaces the catalog with the given games.
func (s *FileStore) SaveCatalog(_ context.Context, games []storage.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(games, "", "  ")
	if err != nil {
		return &storage.StorageError{Op: "encode catalog", Err: err}
	}
	if err := s.writeAtomic(filepath.Join(s.baseDir, catalogFile), data); err != nil {
		return &storage.StorageError{Op: "save catalog", Err: err}
	}
	return nil
}

// LoadDifferences returns the saved detection result for a game.
func (s *FileStore) LoadDifferences(_ context.Context, id string) (*diff.Info, error) {
	data, err := os.ReadFile(s.differencesPath(id))
	if err != nil {
		return nil, &storage.StorageError{Op: fmt.Sprintf("load differences %q", id), Err: err}
	}

	var info diff.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &storage.StorageError{Op: fmt.Sprintf("parse differences %q", id), Err: err}
	}
	return &info, nil
}

// SaveDifferences persists the detection result for a game.
func (s *FileStore) SaveDifferences(_ context.Context, id string, info *diff.Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(info)
	if err != nil {
		return &storage.StorageError{Op: fmt.Sprintf("encode differences %q", id), Err: err}
	}
	if err := s.writeAtomic(s.differencesPath(id), data); err != nil {
		return &storage.StorageError{Op: fmt.Sprintf("save differences %q", id), Err: err}
	}
	return nil
}

// DeleteDifferences removes the saved detection result for a game. Deleting
// a result that does not exist is not an error.
func (s *FileStore) DeleteDifferences(_ context.Context, id string) error {
	if err := os.Remove(s.differencesPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &storage.StorageError{Op: fmt.Sprintf("delete differences %q", id), Err: err}
	}
	return nil
}

// SaveAsset stores the data under the given file name and returns its URL path.
func (s *FileStore) SaveAsset(_ context.Context, name string, data []byte) (string, error) {
	name = filepath.Base(name) // no directory traversal
	if name == "." || name == string(filepath.Separator) {
		return "", &storage.StorageError{Op: "save asset", Err: fmt.Errorf("invalid asset name %q", name)}
	}

	if err := s.writeAtomic(filepath.Join(s.baseDir, assetsDir, name), data); err != nil {
		return "", &storage.StorageError{Op: fmt.Sprintf("save asset %q", name), Err: err}
	}
	return path.Join(s.assetPrefix, name), nil
}

// DeleteAssets removes the assets at the given URL paths. Missing assets are
// skipped so failure-path cleanup stays idempotent.
func (s *FileStore) DeleteAssets(_ context.Context, urls ...string) error {
	for _, url := range urls {
		p, ok := s.AssetPath(url)
		if !ok {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &storage.StorageError{Op: fmt.Sprintf("delete asset %q", url), Err: err}
		}
	}
	return nil
}

// AssetPath maps an asset URL path back to its location on disk. The second
// return value is false when the URL is not under the asset prefix.
func (s *FileStore) AssetPath(url string) (string, bool) {
	rel, ok := strings.CutPrefix(url, s.assetPrefix+"/")
	if !ok {
		return "", false
	}
	return filepath.Join(s.baseDir, assetsDir, filepath.Base(rel)), true
}

func (s *FileStore) differencesPath(id string) string {
	return filepath.Join(s.baseDir, differencesDir, filepath.Base(id)+".json")
}

// writeAtomic writes data to a temp file in the target directory and renames
// it into place, so readers never observe a partial file.
func (s *FileStore) writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, target)
}
