// Package storage writes exported documents to the local mirror tree.
package storage

import (
	"os"
	"time"
)

// Store abstracts the local output tree so the export engine can be
// tested without touching the file system.
type Store interface {
	// Write saves data to path atomically, creating parent directories.
	Write(path string, data []byte, mode os.FileMode) error

	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// Delete removes a file and prunes empty parent directories.
	Delete(path string) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error

	// SetModTime updates file modification time.
	SetModTime(path string, modTime time.Time) error
}
