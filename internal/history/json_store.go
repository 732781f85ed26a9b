package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
)

// JSONStore implements file-based history storage.
type JSONStore struct {
	path    string
	logger  *events.Logger
	entries map[string]models.HistoryEntry
}

// historyFile is the on-disk document. Unknown extra fields are ignored on
// load so newer writers stay readable.
type historyFile struct {
	Meta  historyMeta                    `json:"_meta"`
	Files map[string]models.HistoryEntry `json:"files"`
}

type historyMeta struct {
	Magic   string    `json:"magic"`
	Version int       `json:"version"`
	Created time.Time `json:"created"`
	Program string    `json:"program"`
}

// NewJSONStore creates a JSON-based history store.
func NewJSONStore(path string, logger *events.Logger) *JSONStore {
	return &JSONStore{
		path:    path,
		logger:  logger.WithField("component", "json_history_store"),
		entries: make(map[string]models.HistoryEntry),
	}
}

// Load reads history from the JSON file.
func (s *JSONStore) Load() error {
	s.entries = make(map[string]models.HistoryEntry)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.WithField("path", s.path).Debug("No history file, starting empty")
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}

	var doc historyFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
	}

	if doc.Meta.Magic != HistoryMagic {
		return fmt.Errorf("%w: unexpected magic %q", ErrHistoryCorrupt, doc.Meta.Magic)
	}

	if doc.Meta.Version > HistoryVersion {
		return fmt.Errorf("%w: version %d is newer than supported %d",
			ErrHistoryCorrupt, doc.Meta.Version, HistoryVersion)
	}

	if doc.Files != nil {
		s.entries = doc.Files
	}

	s.logger.WithField("entries", len(s.entries)).Info("Loaded download history")
	return nil
}

// Lookup returns the entry for a file ID.
func (s *JSONStore) Lookup(fileID string) (models.HistoryEntry, bool) {
	entry, ok := s.entries[fileID]
	return entry, ok
}

// Record upserts an entry.
func (s *JSONStore) Record(entry models.HistoryEntry) {
	s.entries[entry.FileID] = entry
}

// Remove drops the entry for a file ID.
func (s *JSONStore) Remove(fileID string) {
	delete(s.entries, fileID)
}

// Entries returns a copy of all entries.
func (s *JSONStore) Entries() map[string]models.HistoryEntry {
	out := make(map[string]models.HistoryEntry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry
	}
	return out
}

// Len returns the number of entries.
func (s *JSONStore) Len() int {
	return len(s.entries)
}

// Save writes history atomically via a temp file rename.
func (s *JSONStore) Save() error {
	doc := historyFile{
		Meta: historyMeta{
			Magic:   HistoryMagic,
			Version: HistoryVersion,
			Created: time.Now().UTC(),
			Program: "synoexport",
		},
		Files: s.entries,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename history file: %w", err)
	}

	s.logger.WithField("entries", len(s.entries)).Debug("Saved download history")
	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}
