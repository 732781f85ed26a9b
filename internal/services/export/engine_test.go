package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/history"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/storage"
)

// mockDrive is a canned DriveAPI for engine tests.
type mockDrive struct {
	myDrive     []models.RemoteFile
	teamFolders []models.TeamFolder
	teamFiles   map[string][]models.RemoteFile // keyed by "id:<file_id>"
	shared      []models.RemoteFile

	downloads      map[string][]byte
	downloadErrors map[string]error
	walkErrors     map[string]error

	downloadCalls []string
}

func newMockDrive() *mockDrive {
	return &mockDrive{
		teamFiles:      make(map[string][]models.RemoteFile),
		downloads:      make(map[string][]byte),
		downloadErrors: make(map[string]error),
		walkErrors:     make(map[string]error),
	}
}

func (m *mockDrive) Walk(ctx context.Context, root string, fn func(models.RemoteFile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.walkErrors[root]; err != nil {
		return err
	}

	var files []models.RemoteFile
	if root == "/mydrive" {
		files = m.myDrive
	} else {
		files = m.teamFiles[root]
	}

	for _, f := range files {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockDrive) TeamFolders(ctx context.Context) ([]models.TeamFolder, error) {
	return m.teamFolders, nil
}

func (m *mockDrive) SharedWithMe(ctx context.Context) ([]models.RemoteFile, error) {
	return m.shared, nil
}

func (m *mockDrive) DownloadOffice(ctx context.Context, fileID, format string) ([]byte, error) {
	m.downloadCalls = append(m.downloadCalls, fileID)
	if err := m.downloadErrors[fileID]; err != nil {
		return nil, err
	}
	if data, ok := m.downloads[fileID]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no download data for %s", fileID)
}

func officeFile(id, displayPath, hash string, encrypted bool) models.RemoteFile {
	return models.RemoteFile{
		FileID:       id,
		Name:         filepath.Base(displayPath),
		DisplayPath:  displayPath,
		ContentType:  "document",
		Encrypted:    encrypted,
		Hash:         hash,
		ModifiedTime: time.Unix(1700000000, 0).UTC(),
	}
}

type fixture struct {
	drive   *mockDrive
	history history.Store
	store   *storage.MockStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := events.NewTestLogger(events.ErrorLevel, "text", os.Stderr)
	hist := history.NewJSONStore(filepath.Join(t.TempDir(), "history.json"), logger)
	require.NoError(t, hist.Load())

	return &fixture{
		drive:   newMockDrive(),
		history: hist,
		store:   storage.NewMockStore(),
	}
}

func (f *fixture) run(t *testing.T, opts Options) (*models.ExportStats, error) {
	t.Helper()

	logger := events.NewTestLogger(events.ErrorLevel, "text", os.Stderr)
	engine := NewEngine(f.drive, f.history, f.store, opts, logger)
	return engine.Run(context.Background())
}

func TestRunDownloadsOfficeFiles(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
		officeFile("f2", "/mydrive/b.osheet", "h2", false),
		officeFile("f3", "/mydrive/c.oslides", "h3", true),
	}
	f.drive.downloads["f1"] = []byte("docx")
	f.drive.downloads["f2"] = []byte("xlsx")

	stats, err := f.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Found)
	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 1, stats.SkippedEncrypted)
	assert.Equal(t, 0, stats.Failed)

	data, err := f.store.Read("mydrive/a.docx")
	require.NoError(t, err)
	assert.Equal(t, []byte("docx"), data)

	exists, _ := f.store.Exists("mydrive/b.xlsx")
	assert.True(t, exists)

	// Encrypted file never written, never recorded.
	exists, _ = f.store.Exists("mydrive/c.pptx")
	assert.False(t, exists)
	_, ok := f.history.Lookup("f3")
	assert.False(t, ok)
}

func TestRunSkipsUnchangedOnRerun(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
	}
	f.drive.downloads["f1"] = []byte("docx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)
	require.Len(t, f.drive.downloadCalls, 1)

	stats, err := f.run(t, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Downloaded)
	assert.Equal(t, 1, stats.SkippedUnchanged)
	assert.Len(t, f.drive.downloadCalls, 1)
}

func TestRunRedownloadsOnHashChange(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
	}
	f.drive.downloads["f1"] = []byte("v1")

	_, err := f.run(t, Options{})
	require.NoError(t, err)

	f.drive.myDrive[0].Hash = "h2"
	f.drive.downloads["f1"] = []byte("v2")

	stats, err := f.run(t, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Downloaded)

	data, err := f.store.Read("mydrive/a.docx")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	entry, ok := f.history.Lookup("f1")
	require.True(t, ok)
	assert.Equal(t, "h2", entry.Hash)
}

func TestRunForceRedownloadsUnchanged(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
		officeFile("f2", "/mydrive/locked.osheet", "h2", true),
	}
	f.drive.downloads["f1"] = []byte("docx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)

	stats, err := f.run(t, Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Downloaded)
	// Force never touches encrypted files.
	assert.Equal(t, 1, stats.SkippedEncrypted)
	assert.NotContains(t, f.drive.downloadCalls, "f2")
}

func TestRunSkipsNonOfficeFiles(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/readme.txt", "h1", false),
		officeFile("f2", "/mydrive/a.odoc", "h2", false),
	}
	f.drive.downloads["f2"] = []byte("docx")

	stats, err := f.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.SkippedOther)
	assert.Equal(t, 1, stats.Downloaded)
}

func TestRunFailureDoesNotStopRun(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
		officeFile("f2", "/mydrive/b.osheet", "h2", false),
	}
	f.drive.downloadErrors["f1"] = fmt.Errorf("boom")
	f.drive.downloads["f2"] = []byte("xlsx")

	stats, err := f.run(t, Options{})
	require.Error(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Downloaded)

	exists, _ := f.store.Exists("mydrive/b.xlsx")
	assert.True(t, exists)

	// Failed file is not recorded, so the next run retries it.
	_, ok := f.history.Lookup("f1")
	assert.False(t, ok)
}

func TestRunTeamFoldersAndShared(t *testing.T) {
	f := newFixture(t)
	f.drive.teamFolders = []models.TeamFolder{{FileID: "t1", Name: "Engineering"}}
	f.drive.teamFiles["id:t1"] = []models.RemoteFile{
		officeFile("f1", "/team-folders/Engineering/spec.odoc", "h1", false),
	}
	f.drive.shared = []models.RemoteFile{
		officeFile("f2", "/shared/plan.oslides", "h2", false),
		{FileID: "d1", Name: "docs", DisplayPath: "/shared/docs", ContentType: "dir"},
	}
	f.drive.teamFiles["id:d1"] = []models.RemoteFile{
		officeFile("f3", "/shared/docs/budget.osheet", "h3", false),
	}
	f.drive.downloads["f1"] = []byte("docx")
	f.drive.downloads["f2"] = []byte("pptx")
	f.drive.downloads["f3"] = []byte("xlsx")

	stats, err := f.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Downloaded)

	for _, path := range []string{
		"team-folders/Engineering/spec.docx",
		"shared/plan.pptx",
		"shared/docs/budget.xlsx",
	} {
		exists, _ := f.store.Exists(path)
		assert.True(t, exists, path)
	}
}

func TestRunCleansUpDeletedFiles(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
		officeFile("f2", "/mydrive/b.osheet", "h2", false),
	}
	f.drive.downloads["f1"] = []byte("docx")
	f.drive.downloads["f2"] = []byte("xlsx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.Len())

	// b.osheet disappears remotely.
	f.drive.myDrive = f.drive.myDrive[:1]

	stats, err := f.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Deleted)
	exists, _ := f.store.Exists("mydrive/b.xlsx")
	assert.False(t, exists)
	_, ok := f.history.Lookup("f2")
	assert.False(t, ok)
}

func TestRunKeepsLocalCopyWhenRemoteTurnsEncrypted(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
	}
	f.drive.downloads["f1"] = []byte("docx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)

	// The remote still exists, it just became encrypted.
	f.drive.myDrive[0].Encrypted = true

	stats, err := f.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SkippedEncrypted)
	assert.Equal(t, 0, stats.Deleted)

	exists, _ := f.store.Exists("mydrive/a.docx")
	assert.True(t, exists)
	_, ok := f.history.Lookup("f1")
	assert.True(t, ok)
}

func TestRunMovesCopyOnRemoteRename(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/old.odoc", "h1", false),
	}
	f.drive.downloads["f1"] = []byte("docx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)

	// Same id, same hash, new path.
	f.drive.myDrive[0] = officeFile("f1", "/mydrive/new.odoc", "h1", false)

	stats, err := f.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 0, stats.Deleted)

	exists, _ := f.store.Exists("mydrive/new.docx")
	assert.True(t, exists)
	exists, _ = f.store.Exists("mydrive/old.docx")
	assert.False(t, exists)

	entry, ok := f.history.Lookup("f1")
	require.True(t, ok)
	assert.Equal(t, "mydrive/new.docx", entry.LocalPath)
}

func TestRunCleanupSkippedAfterErrors(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
		officeFile("f2", "/mydrive/b.osheet", "h2", false),
	}
	f.drive.downloads["f1"] = []byte("docx")
	f.drive.downloads["f2"] = []byte("xlsx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)

	// The walk fails, so remote files only look deleted.
	f.drive.walkErrors["/mydrive"] = fmt.Errorf("listing failed")

	stats, err := f.run(t, Options{})
	require.Error(t, err)

	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, 2, f.history.Len())
	assert.Equal(t, 2, f.store.Len())
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
	}

	logger := events.NewTestLogger(events.ErrorLevel, "text", os.Stderr)
	engine := NewEngine(f.drive, f.history, f.store, Options{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithNullHistoryAlwaysDownloads(t *testing.T) {
	f := newFixture(t)
	f.history = history.NewNullStore()
	f.drive.myDrive = []models.RemoteFile{
		officeFile("f1", "/mydrive/a.odoc", "h1", false),
	}
	f.drive.downloads["f1"] = []byte("docx")

	_, err := f.run(t, Options{})
	require.NoError(t, err)

	stats, err := f.run(t, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Downloaded)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "mydrive/a.docx", LocalPath("/mydrive/a.odoc"))
	assert.Equal(t, "mydrive/b.xlsx", LocalPath("/mydrive/b.osheet"))
	assert.Equal(t, "mydrive/c.pptx", LocalPath("/mydrive/c.oslides"))
	assert.Equal(t, "", LocalPath("/mydrive/readme.txt"))
}

func TestRenderSummary(t *testing.T) {
	stats := &models.ExportStats{
		Found:            5,
		Downloaded:       2,
		SkippedUnchanged: 2,
		SkippedEncrypted: 1,
		Failed:           0,
	}

	out := RenderSummary(stats)
	assert.Contains(t, out, "===== Download Results Summary =====")
	assert.Contains(t, out, "Downloaded:            2")
	assert.Contains(t, out, "Skipped (encrypted):   1")
}
