// Package cache persists small JSON documents in the state directory so a
// separate process (the -health check, a status bar, a script) can read
// what the sampler last saw without talking to it. Every write replaces
// the file atomically; readers never see a partial document.
//
// Layout:
//
//	~/.local/state/host-pulse/
//	  status.json
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/logging"
)

const (
	ext       = ".json"
	tmpPrefix = ".tmp-"
)

// Store reads and writes keyed JSON documents in one directory.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore opens a store at dir, creating it with 0700 permissions.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logging.OrDiscard(logger), now: time.Now}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+ext)
}

// Get returns the raw document for key and whether it was written within
// maxAge. A missing key returns nil, false, nil. A document that is not
// valid JSON is deleted and reported as missing.
func (s *Store) Get(key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	path := s.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read %s: %w", key, err)
	}
	if !json.Valid(data) {
		s.logger.Warn("cache: discarding corrupt document", "key", key)
		_ = os.Remove(path)
		return nil, false, nil
	}
	return json.RawMessage(data), s.Age(key) < maxAge, nil
}

// Set encodes v as indented JSON and atomically replaces key's document.
func (s *Store) Set(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := writeAtomic(s.dir, s.Path(key), data); err != nil {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	return nil
}

// writeAtomic writes data to a 0600 temp file in dir and renames it over
// path.
func writeAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, tmpPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(name)
		}
	}()

	if err = tmp.Chmod(0o600); err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}

// GetTyped decodes key's document into a T. A missing key returns nil.
// A document that does not decode is deleted and reported as missing.
func GetTyped[T any](s *Store, key string, maxAge time.Duration) (*T, bool, error) {
	raw, fresh, err := s.Get(key, maxAge)
	if err != nil || raw == nil {
		return nil, false, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("cache: discarding undecodable document", "key", key, "error", err)
		_ = os.Remove(s.Path(key))
		return nil, false, nil
	}
	return &out, fresh, nil
}

// SetTyped stores v under key.
func SetTyped[T any](s *Store, key string, v *T) error {
	return s.Set(key, v)
}

// Age returns the time since key was last written, or 0 if it does not
// exist.
func (s *Store) Age(key string) time.Duration {
	info, err := os.Stat(s.Path(key))
	if err != nil {
		return 0
	}
	return s.now().Sub(info.ModTime())
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: remove %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in sorted order, ignoring in-flight temp files.
func (s *Store) Keys() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ext))
	}
	sort.Strings(keys)
	return keys
}
