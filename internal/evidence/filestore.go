package evidence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"stagegate/internal/stage"
)

// DefaultDir is the evidence directory relative to the project root.
const DefaultDir = ".stagegate/evidence"

// fileExt is appended to every key to form its file name.
const fileExt = ".json"

// ResolveDir determines the evidence directory.
//
// Resolution order:
//  1. STAGEGATE_EVIDENCE_DIR environment variable (used as-is if set)
//  2. Explicit dir parameter (if non-empty)
//  3. [DefaultDir] under basePath
//
// Pass an empty basePath for the current working directory.
func ResolveDir(basePath, dir string) string {
	if envDir := os.Getenv("STAGEGATE_EVIDENCE_DIR"); envDir != "" {
		return envDir
	}
	if dir != "" {
		return dir
	}
	return filepath.Join(basePath, DefaultDir)
}

// FileStore stores each key as <dir>/<key>.json.
//
// Use [NewFileStore] to create one. A missing directory is an empty store;
// it is created on the first [FileStore.Put].
type FileStore struct {
	dir  string
	keys Keys
}

// NewFileStore creates a [FileStore] rooted at dir. A nil keys uses
// [DefaultKeys].
func NewFileStore(dir string, keys Keys) *FileStore {
	if keys == nil {
		keys = DefaultKeys()
	}
	return &FileStore{dir: dir, keys: keys}
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Keys returns the stage-to-key mapping used by the store.
func (s *FileStore) Keys() Keys {
	return s.keys
}

// Evidence reports presence for every stage. A directory that exists but
// cannot be listed is a store failure.
func (s *FileStore) Evidence(ctx context.Context) (stage.Evidence, error) {
	info, err := os.Stat(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return stage.Evidence{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to read evidence dir: %s is not a directory", s.dir)
	}
	return collect(ctx, s.keys, s.Get)
}

// Get returns the raw data stored under key, or [ErrNotFound].
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence %s: %w", key, err)
	}
	return data, nil
}

// Put writes data under key atomically (write to temp, then rename).
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create evidence dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write evidence %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write evidence %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete evidence %s: %w", key, err)
	}
	return nil
}

// KeyForFile maps a file name inside the store directory back to its key.
// The second result is false for files that are not evidence files.
func (s *FileStore) KeyForFile(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	return strings.TrimSuffix(base, fileExt), true
}

// ValidKey reports keys that cannot name a file inside the store directory.
func ValidKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid evidence key: %q", key)
	}
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	if err := ValidKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key+fileExt), nil
}
