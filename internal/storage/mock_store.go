package storage

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu sync.Mutex

	files    map[string][]byte
	modTimes map[string]time.Time

	// WriteErrors fails Write for the given paths.
	WriteErrors map[string]error
	// DeleteErrors fails Delete for the given paths.
	DeleteErrors map[string]error

	Writes  []string
	Deletes []string
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		files:        make(map[string][]byte),
		modTimes:     make(map[string]time.Time),
		WriteErrors:  make(map[string]error),
		DeleteErrors: make(map[string]error),
	}
}

// Write records data under a normalized path.
func (s *MockStore) Write(p string, data []byte, mode os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(p)
	if err := s.WriteErrors[key]; err != nil {
		return err
	}

	s.files[key] = append([]byte(nil), data...)
	s.Writes = append(s.Writes, key)
	return nil
}

// Read returns stored data.
func (s *MockStore) Read(p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[normalize(p)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *MockStore) Delete(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(p)
	if err := s.DeleteErrors[key]; err != nil {
		return err
	}

	delete(s.files, key)
	delete(s.modTimes, key)
	s.Deletes = append(s.Deletes, key)
	return nil
}

// Exists reports whether a file was written.
func (s *MockStore) Exists(p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.files[normalize(p)]
	return ok, nil
}

// EnsureDir is a no-op for the in-memory store.
func (s *MockStore) EnsureDir(p string) error {
	return nil
}

// SetModTime records the modification time for a stored file.
func (s *MockStore) SetModTime(p string, modTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize(p)
	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("file not found: %s", p)
	}
	s.modTimes[key] = modTime
	return nil
}

// ModTime returns the recorded modification time, if any.
func (s *MockStore) ModTime(p string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.modTimes[normalize(p)]
	return t, ok
}

// Len returns the number of stored files.
func (s *MockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.files)
}

func normalize(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
}
