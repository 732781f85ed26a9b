package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
)

// LocalStore writes exported files under a base directory.
type LocalStore struct {
	baseDir     string
	maxFileSize int64
	logger      *events.Logger
}

// NewLocalStore creates a store rooted at baseDir.
func NewLocalStore(baseDir string, maxFileSize int64, logger *events.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	if maxFileSize <= 0 {
		maxFileSize = 500 * 1024 * 1024
	}

	return &LocalStore{
		baseDir:     absPath,
		maxFileSize: maxFileSize,
		logger:      logger.WithField("component", "local_store"),
	}, nil
}

// BaseDir returns the resolved output root.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// Write saves data to a file atomically via a temp file rename.
func (s *LocalStore) Write(path string, data []byte, mode os.FileMode) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return &models.WriteError{Path: path, Err: err}
	}

	if int64(len(data)) > s.maxFileSize {
		return &models.WriteError{
			Path: path,
			Err:  fmt.Errorf("file too large: %d bytes (max: %d)", len(data), s.maxFileSize),
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"size": len(data),
	}).Debug("Writing file")

	if err := os.MkdirAll(filepath.Dir(safePath), 0o755); err != nil {
		return &models.WriteError{Path: path, Err: fmt.Errorf("create parent directory: %w", err)}
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", safePath, time.Now().UnixNano())
	if err := os.WriteFile(tempPath, data, mode); err != nil {
		return &models.WriteError{Path: path, Err: fmt.Errorf("write temp file: %w", err)}
	}

	if file, err := os.Open(tempPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tempPath, safePath); err != nil {
		_ = os.Remove(tempPath)
		return &models.WriteError{Path: path, Err: fmt.Errorf("rename temp file: %w", err)}
	}

	return nil
}

// Read retrieves file contents.
func (s *LocalStore) Read(path string) ([]byte, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return nil, fmt.Errorf("sanitize path: %w", err)
	}

	data, err := os.ReadFile(safePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Delete removes a file. Missing files are not an error.
func (s *LocalStore) Delete(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	s.logger.WithField("path", path).Debug("Deleting file")

	if err := os.Remove(safePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete file: %w", err)
	}

	s.cleanEmptyDirs(filepath.Dir(safePath))

	return nil
}

// Exists checks if a file exists.
func (s *LocalStore) Exists(path string) (bool, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return false, fmt.Errorf("sanitize path: %w", err)
	}

	_, err = os.Stat(safePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates a directory if it doesn't exist.
func (s *LocalStore) EnsureDir(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	return os.MkdirAll(safePath, 0o755)
}

// SetModTime updates file modification time.
func (s *LocalStore) SetModTime(path string, modTime time.Time) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	return os.Chtimes(safePath, time.Now(), modTime)
}

// sanitizePath validates a relative path and joins it under baseDir.
func (s *LocalStore) sanitizePath(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path contains null bytes")
	}

	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: contains '..'")
	}

	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	fullPath := filepath.Join(s.baseDir, cleaned)
	if fullPath != s.baseDir && !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory")
	}

	return fullPath, nil
}

// cleanEmptyDirs removes empty parent directories up to the base.
func (s *LocalStore) cleanEmptyDirs(dirPath string) {
	for dirPath != s.baseDir && strings.HasPrefix(dirPath, s.baseDir) {
		entries, err := os.ReadDir(dirPath)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := os.Remove(dirPath); err != nil {
			break
		}

		dirPath = filepath.Dir(dirPath)
	}
}
