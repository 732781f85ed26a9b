package history

import (
	"errors"

	"github.com/TheMichaelB/synoexport/internal/models"
)

// Store manages download-history persistence. A store is owned by a single
// export run; cross-process exclusion is handled by RunLock.
type Store interface {
	// Load reads persisted history. A missing file yields an empty store.
	// A file that exists but cannot be parsed returns ErrHistoryCorrupt
	// and leaves the store empty; redundant downloads are the only cost.
	Load() error

	// Lookup returns the entry for a file ID.
	Lookup(fileID string) (models.HistoryEntry, bool)

	// Record upserts an entry; idempotent.
	Record(entry models.HistoryEntry)

	// Remove drops the entry for a file ID.
	Remove(fileID string)

	// Entries returns a copy of all entries keyed by file ID.
	Entries() map[string]models.HistoryEntry

	// Len returns the number of entries.
	Len() int

	// Save persists the current entries atomically.
	Save() error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrHistoryCorrupt = errors.New("history file is corrupt")
	ErrHistoryLocked  = errors.New("history is locked by another process")
)

// History file format constants.
const (
	HistoryMagic   = "SYNOEXPORT_HISTORY"
	HistoryVersion = 1
)
