package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
)

func testLogger() *events.Logger {
	return events.NewTestLogger(events.ErrorLevel, "text", os.Stderr)
}

func testEntry(id string) models.HistoryEntry {
	return models.HistoryEntry{
		FileID:       id,
		Hash:         "hash-" + id,
		RemotePath:   "/mydrive/" + id + ".odoc",
		LocalPath:    "mydrive/" + id + ".docx",
		DownloadedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestJSONStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	store := NewJSONStore(path, testLogger())
	require.NoError(t, store.Load())
	assert.Zero(t, store.Len())

	store.Record(testEntry("f1"))
	store.Record(testEntry("f2"))
	require.NoError(t, store.Save())

	reloaded := NewJSONStore(path, testLogger())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.Len())

	entry, ok := reloaded.Lookup("f1")
	require.True(t, ok)
	assert.Equal(t, "hash-f1", entry.Hash)
	assert.Equal(t, "mydrive/f1.docx", entry.LocalPath)
	assert.True(t, entry.DownloadedAt.Equal(testEntry("f1").DownloadedAt))
}

func TestJSONStoreRecordUpserts(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "history.json"), testLogger())

	store.Record(testEntry("f1"))
	updated := testEntry("f1")
	updated.Hash = "new-hash"
	store.Record(updated)

	assert.Equal(t, 1, store.Len())
	entry, _ := store.Lookup("f1")
	assert.Equal(t, "new-hash", entry.Hash)
}

func TestJSONStoreRemove(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "history.json"), testLogger())

	store.Record(testEntry("f1"))
	store.Remove("f1")
	store.Remove("never-existed")

	_, ok := store.Lookup("f1")
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestJSONStoreEntriesIsCopy(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "history.json"), testLogger())
	store.Record(testEntry("f1"))

	entries := store.Entries()
	delete(entries, "f1")

	assert.Equal(t, 1, store.Len())
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	store := NewJSONStore(path, testLogger())
	err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistoryCorrupt)
	assert.Zero(t, store.Len())
}

func TestJSONStoreWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	content := `{"_meta":{"magic":"SOMETHING_ELSE","version":1},"files":{}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := NewJSONStore(path, testLogger())
	assert.ErrorIs(t, store.Load(), ErrHistoryCorrupt)
}

func TestJSONStoreNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	content := `{"_meta":{"magic":"SYNOEXPORT_HISTORY","version":99},"files":{}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := NewJSONStore(path, testLogger())
	assert.ErrorIs(t, store.Load(), ErrHistoryCorrupt)
}

func TestJSONStoreIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	content := `{
		"_meta": {"magic": "SYNOEXPORT_HISTORY", "version": 1, "extra": true},
		"files": {"f1": {"file_id": "f1", "hash": "h1", "future_field": 42}},
		"trailer": {}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store := NewJSONStore(path, testLogger())
	require.NoError(t, store.Load())

	entry, ok := store.Lookup("f1")
	require.True(t, ok)
	assert.Equal(t, "h1", entry.Hash)
}

func TestJSONStoreSaveWritesMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	store := NewJSONStore(path, testLogger())
	store.Record(testEntry("f1"))
	require.NoError(t, store.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "_meta")

	var meta struct {
		Magic   string `json:"magic"`
		Version int    `json:"version"`
		Program string `json:"program"`
	}
	require.NoError(t, json.Unmarshal(doc["_meta"], &meta))
	assert.Equal(t, HistoryMagic, meta.Magic)
	assert.Equal(t, HistoryVersion, meta.Version)
	assert.Equal(t, "synoexport", meta.Program)
}

func TestJSONStoreSaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "history.json")

	store := NewJSONStore(path, testLogger())
	store.Record(testEntry("f1"))
	require.NoError(t, store.Save())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestNullStore(t *testing.T) {
	store := NewNullStore()

	require.NoError(t, store.Load())
	store.Record(testEntry("f1"))

	_, ok := store.Lookup("f1")
	assert.False(t, ok)
	assert.Zero(t, store.Len())
	assert.Empty(t, store.Entries())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Close())
}

func TestRunLockExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".synoexport.lock")

	first := NewRunLock(path)
	require.NoError(t, first.Acquire())

	second := NewRunLock(path)
	err := second.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHistoryLocked)

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestRunLockReleaseWithoutAcquire(t *testing.T) {
	lock := NewRunLock(filepath.Join(t.TempDir(), "lock"))
	assert.NoError(t, lock.Release())
}
