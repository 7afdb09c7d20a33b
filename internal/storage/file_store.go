package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const tempFilePrefix = "notes-kv-tmp-"

// FileStore keeps a namespace as a single JSON object on disk. Every mutation
// rewrites the file atomically so a crash never leaves a half-written state.
type FileStore struct {
	path   string
	mu     sync.Mutex
	data   map[string]string
	loaded bool
	closed bool
}

func NewFileStore(dir, namespace string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		path: filepath.Join(dir, namespace+".json"),
	}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", false, err
	}
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	previous, existed := s.data[key]
	s.data[key] = value
	if err := s.flushLocked(); err != nil {
		if existed {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	previous, existed := s.data[key]
	if !existed {
		return nil
	}
	delete(s.data, key)
	if err := s.flushLocked(); err != nil {
		s.data[key] = previous
		return err
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	s.data = make(map[string]string)
	s.loaded = true
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.data = make(map[string]string)
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to decode store %s: %w", s.path, err)
	}

	s.data = values
	s.loaded = true
	return nil
}

func (s *FileStore) flushLocked() error {
	data, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	return writeFileAtomic(s.path, data, 0o600)
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over filename.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}
