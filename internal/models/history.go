package models

import "time"

// HistoryEntry records the last successfully exported version of a file.
// Keyed by remote file ID; at most one entry per ID, latest wins.
type HistoryEntry struct {
	FileID       string    `json:"file_id"`
	Hash         string    `json:"hash"`
	RemotePath   string    `json:"remote_path"`
	LocalPath    string    `json:"local_path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// ExportStats aggregates per-run counters for the final summary.
type ExportStats struct {
	Found            int `json:"found"`
	Downloaded       int `json:"downloaded"`
	SkippedUnchanged int `json:"skipped_unchanged"`
	SkippedEncrypted int `json:"skipped_encrypted"`
	SkippedOther     int `json:"skipped_other"`
	Deleted          int `json:"deleted"`
	Failed           int `json:"failed"`
}

// Skipped returns the total number of skipped files.
func (s *ExportStats) Skipped() int {
	return s.SkippedUnchanged + s.SkippedEncrypted + s.SkippedOther
}
