package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
)

// SQLiteStore implements SQLite-based history storage. Entries are held in
// memory during the run and flushed transactionally on Save.
type SQLiteStore struct {
	db      *sql.DB
	logger  *events.Logger
	entries map[string]models.HistoryEntry
}

// NewSQLiteStore creates a SQLite history store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:      db,
		logger:  logger.WithField("component", "sqlite_history_store"),
		entries: make(map[string]models.HistoryEntry),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the schema.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS history_entries (
        file_id TEXT PRIMARY KEY,
        hash TEXT NOT NULL,
        remote_path TEXT NOT NULL,
        local_path TEXT NOT NULL,
        downloaded_at TIMESTAMP NOT NULL
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, HistoryVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Load reads all entries into memory.
func (s *SQLiteStore) Load() error {
	s.entries = make(map[string]models.HistoryEntry)

	rows, err := s.db.Query(`
        SELECT file_id, hash, remote_path, local_path, downloaded_at
        FROM history_entries
    `)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.HistoryEntry
		var downloadedAt sql.NullTime
		if err := rows.Scan(&entry.FileID, &entry.Hash, &entry.RemotePath,
			&entry.LocalPath, &downloadedAt); err != nil {
			return fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
		}
		if downloadedAt.Valid {
			entry.DownloadedAt = downloadedAt.Time
		}
		s.entries[entry.FileID] = entry
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate history: %w", err)
	}

	s.logger.WithField("entries", len(s.entries)).Info("Loaded download history")
	return nil
}

// Lookup returns the entry for a file ID.
func (s *SQLiteStore) Lookup(fileID string) (models.HistoryEntry, bool) {
	entry, ok := s.entries[fileID]
	return entry, ok
}

// Record upserts an entry.
func (s *SQLiteStore) Record(entry models.HistoryEntry) {
	s.entries[entry.FileID] = entry
}

// Remove drops the entry for a file ID.
func (s *SQLiteStore) Remove(fileID string) {
	delete(s.entries, fileID)
}

// Entries returns a copy of all entries.
func (s *SQLiteStore) Entries() map[string]models.HistoryEntry {
	out := make(map[string]models.HistoryEntry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry
	}
	return out
}

// Len returns the number of entries.
func (s *SQLiteStore) Len() int {
	return len(s.entries)
}

// Save replaces the persisted set with the in-memory entries in one
// transaction.
func (s *SQLiteStore) Save() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM history_entries"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO history_entries (file_id, hash, remote_path, local_path, downloaded_at)
        VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range s.entries {
		downloadedAt := entry.DownloadedAt
		if downloadedAt.IsZero() {
			downloadedAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(entry.FileID, entry.Hash, entry.RemotePath,
			entry.LocalPath, downloadedAt); err != nil {
			return fmt.Errorf("insert entry %s: %w", entry.FileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}

	s.logger.WithField("entries", len(s.entries)).Debug("Saved download history")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
