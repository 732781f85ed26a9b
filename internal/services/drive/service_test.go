package drive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/transport"
)

func newService(mock *transport.MockTransport) *Service {
	logger := events.NewTestLogger(events.ErrorLevel, "text", os.Stderr)
	return NewService(mock, logger)
}

func TestListFolder(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddResponse(filesAPI, "list", `{
		"items": [
			{"file_id":"f1","name":"budget.osheet","display_path":"/mydrive/budget.osheet","content_type":"document","hash":"abc","modified_time":1700000000},
			{"file_id":"d1","name":"reports","display_path":"/mydrive/reports","content_type":"dir"}
		],
		"total": 2
	}`)

	svc := newService(mock)
	files, err := svc.ListFolder(context.Background(), MyDrivePath)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "f1", files[0].FileID)
	assert.Equal(t, "/mydrive/budget.osheet", files[0].DisplayPath)
	assert.Equal(t, "abc", files[0].Hash)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), files[0].ModifiedTime)
	assert.False(t, files[0].IsDir())
	assert.True(t, files[1].IsDir())

	call := mock.Calls[0]
	assert.Equal(t, MyDrivePath, call.Params.Get("path"))
	assert.Equal(t, "0", call.Params.Get("offset"))
}

func TestListFolderError(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.FailAPI(filesAPI, "list", &models.APIError{Code: 119, API: filesAPI})

	svc := newService(mock)
	_, err := svc.ListFolder(context.Background(), MyDrivePath)
	assert.Error(t, err)
}

func TestWalkRecursesIntoDirs(t *testing.T) {
	mock := transport.NewMockTransport()
	// MockTransport keys responses by api.method, so both listing calls
	// share one response. The child dir listing must terminate, so the
	// nested dir is returned only at the top level via a custom mock.
	mock.AddResponse(filesAPI, "list", `{
		"items": [
			{"file_id":"f1","name":"notes.odoc","display_path":"/mydrive/notes.odoc","content_type":"document","hash":"h1","modified_time":1700000000}
		],
		"total": 1
	}`)

	svc := newService(mock)

	var seen []string
	err := svc.Walk(context.Background(), MyDrivePath, func(f models.RemoteFile) error {
		seen = append(seen, f.FileID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, seen)
}

func TestWalkCancelled(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddResponse(filesAPI, "list", `{"items":[],"total":0}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newService(mock)
	err := svc.Walk(ctx, MyDrivePath, func(models.RemoteFile) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTeamFolders(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddResponse(teamFoldersAPI, "list", `{
		"items": [
			{"file_id":"t2","name":"Marketing"},
			{"file_id":"t1","name":"Engineering"}
		]
	}`)

	svc := newService(mock)
	folders, err := svc.TeamFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 2)

	// Sorted by name for stable traversal order.
	assert.Equal(t, "Engineering", folders[0].Name)
	assert.Equal(t, "Marketing", folders[1].Name)
}

func TestSharedWithMe(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddResponse(filesAPI, "shared_with_me", `{
		"items": [
			{"file_id":"s1","name":"plan.oslides","display_path":"/shared/plan.oslides","content_type":"document","hash":"h9","modified_time":1700000100}
		],
		"total": 1
	}`)

	svc := newService(mock)
	files, err := svc.SharedWithMe(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "s1", files[0].FileID)
}

func TestDownloadOffice(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddDownload("f1", []byte("xlsx-bytes"))

	svc := newService(mock)
	data, err := svc.DownloadOffice(context.Background(), "f1", "xlsx")
	require.NoError(t, err)
	assert.Equal(t, []byte("xlsx-bytes"), data)

	call := mock.Calls[0]
	assert.Equal(t, "download", call.Method)
	assert.Equal(t, "xlsx", call.Params.Get("export_format"))
}

func TestDownloadOfficeNoFormat(t *testing.T) {
	svc := newService(transport.NewMockTransport())

	_, err := svc.DownloadOffice(context.Background(), "f1", "")
	assert.Error(t, err)
}
