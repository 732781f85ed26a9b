// Package export drives the end-to-end run: enumerate Drive roots,
// convert office files, mirror them locally, and reconcile the
// download history.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/history"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/services/drive"
	"github.com/TheMichaelB/synoexport/internal/storage"
)

// DriveAPI is the subset of the drive service the engine needs.
type DriveAPI interface {
	Walk(ctx context.Context, root string, fn func(models.RemoteFile) error) error
	TeamFolders(ctx context.Context) ([]models.TeamFolder, error)
	SharedWithMe(ctx context.Context) ([]models.RemoteFile, error)
	DownloadOffice(ctx context.Context, fileID, format string) ([]byte, error)
}

// Options control one export run.
type Options struct {
	// Force re-downloads files even when the remote hash matches the
	// history. Encrypted files stay skipped regardless.
	Force bool
}

// Engine performs one export run.
type Engine struct {
	drive   DriveAPI
	history history.Store
	store   storage.Store
	logger  *events.Logger
	opts    Options

	stats     models.ExportStats
	seen      map[string]struct{}
	hadErrors bool
}

// NewEngine creates an export engine.
func NewEngine(driveAPI DriveAPI, hist history.Store, store storage.Store, opts Options, logger *events.Logger) *Engine {
	return &Engine{
		drive:   driveAPI,
		history: hist,
		store:   store,
		logger:  logger.WithField("service", "export"),
		opts:    opts,
		seen:    make(map[string]struct{}),
	}
}

// Run exports all three roots and reconciles deletions. The returned
// stats are valid even when an error is returned.
func (e *Engine) Run(ctx context.Context) (*models.ExportStats, error) {
	start := time.Now()
	e.logger.WithField("force", e.opts.Force).Info("Starting export")

	if err := e.ExportMyDrive(ctx); err != nil {
		if ctx.Err() != nil {
			return e.statsCopy(), err
		}
		e.logger.WithError(err).Error("My Drive export failed")
		e.hadErrors = true
	}

	if err := e.ExportTeamFolders(ctx); err != nil {
		if ctx.Err() != nil {
			return e.statsCopy(), err
		}
		e.logger.WithError(err).Error("Team folder export failed")
		e.hadErrors = true
	}

	if err := e.ExportShared(ctx); err != nil {
		if ctx.Err() != nil {
			return e.statsCopy(), err
		}
		e.logger.WithError(err).Error("Shared files export failed")
		e.hadErrors = true
	}

	e.cleanupDeleted(ctx)

	if err := e.history.Save(); err != nil {
		e.logger.WithError(err).Error("Failed to save history")
		e.hadErrors = true
	}

	e.logger.WithFields(map[string]interface{}{
		"found":      e.stats.Found,
		"downloaded": e.stats.Downloaded,
		"skipped":    e.stats.Skipped(),
		"deleted":    e.stats.Deleted,
		"failed":     e.stats.Failed,
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}).Info("Export finished")

	if e.hadErrors {
		if e.stats.Failed > 0 {
			return e.statsCopy(), fmt.Errorf("export completed with %d failed file(s)", e.stats.Failed)
		}
		return e.statsCopy(), fmt.Errorf("export completed with errors")
	}
	return e.statsCopy(), nil
}

// ExportMyDrive exports the user's own drive.
func (e *Engine) ExportMyDrive(ctx context.Context) error {
	e.logger.Info("Exporting My Drive")
	return e.drive.Walk(ctx, drive.MyDrivePath, e.processFile(ctx))
}

// ExportTeamFolders exports every team folder visible to the account.
func (e *Engine) ExportTeamFolders(ctx context.Context) error {
	folders, err := e.drive.TeamFolders(ctx)
	if err != nil {
		return err
	}

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.logger.WithField("team_folder", folder.Name).Info("Exporting team folder")
		if err := e.drive.Walk(ctx, "id:"+folder.FileID, e.processFile(ctx)); err != nil {
			if ctx.Err() != nil {
				return err
			}
			e.logger.WithError(err).WithField("team_folder", folder.Name).Error("Team folder walk failed")
			e.hadErrors = true
		}
	}

	return nil
}

// ExportShared exports files shared with the account. Shared folders
// are descended into, shared files are processed directly.
func (e *Engine) ExportShared(ctx context.Context) error {
	e.logger.Info("Exporting shared files")

	items, err := e.drive.SharedWithMe(ctx)
	if err != nil {
		return err
	}

	process := e.processFile(ctx)
	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := items[i]
		if item.IsDir() {
			if err := e.drive.Walk(ctx, "id:"+item.FileID, process); err != nil {
				if ctx.Err() != nil {
					return err
				}
				e.logger.WithError(err).WithField("path", item.DisplayPath).Error("Shared folder walk failed")
				e.hadErrors = true
			}
			continue
		}

		if err := process(item); err != nil {
			return err
		}
	}

	return nil
}

// processFile returns the per-file callback for a walk. Per-file
// failures are counted, not propagated, so one bad file never aborts
// the run.
func (e *Engine) processFile(ctx context.Context) func(models.RemoteFile) error {
	return func(f models.RemoteFile) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := e.logger.WithField("path", f.DisplayPath)

		localPath := LocalPath(f.DisplayPath)
		if localPath == "" {
			log.Debug("Skipping non-office file")
			e.stats.SkippedOther++
			return nil
		}

		e.stats.Found++
		e.seen[f.FileID] = struct{}{}

		// Encrypted files cannot be converted; force does not apply.
		// They still count as present so cleanup leaves any previously
		// downloaded copy alone.
		if f.Encrypted {
			log.Info("Skipping encrypted file")
			e.stats.SkippedEncrypted++
			return nil
		}

		if !e.shouldDownload(f, localPath) {
			log.Debug("Skipping unchanged file")
			e.stats.SkippedUnchanged++
			return nil
		}

		if err := e.download(ctx, f, localPath); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.WithError(err).Error("Download failed")
			e.stats.Failed++
			e.hadErrors = true
		}

		return nil
	}
}

// shouldDownload decides whether a file needs a fresh download. A
// changed local path means the remote was renamed or moved, so the
// mirror needs a copy at the new location even when the content is
// unchanged.
func (e *Engine) shouldDownload(f models.RemoteFile, localPath string) bool {
	if e.opts.Force {
		return true
	}

	entry, ok := e.history.Lookup(f.FileID)
	if !ok {
		return true
	}

	return entry.Hash != f.Hash || entry.LocalPath != localPath
}

// download fetches the converted file, writes it, and records history.
func (e *Engine) download(ctx context.Context, f models.RemoteFile, localPath string) error {
	data, err := e.drive.DownloadOffice(ctx, f.FileID, f.ExportFormat())
	if err != nil {
		return err
	}

	if err := e.store.Write(localPath, data, 0o644); err != nil {
		return err
	}

	if !f.ModifiedTime.IsZero() {
		if err := e.store.SetModTime(localPath, f.ModifiedTime); err != nil {
			e.logger.WithError(err).WithField("path", localPath).Warn("Failed to set modification time")
		}
	}

	// A remote rename moves the mirrored copy: the new path is written
	// above, the recorded old path goes away here.
	if prev, ok := e.history.Lookup(f.FileID); ok && prev.LocalPath != localPath {
		if err := e.store.Delete(prev.LocalPath); err != nil {
			e.logger.WithError(err).WithField("path", prev.LocalPath).Warn("Failed to remove renamed file's old copy")
		} else {
			e.logger.WithField("path", prev.LocalPath).Info("Removed old copy (renamed remotely)")
		}
	}

	e.history.Record(models.HistoryEntry{
		FileID:       f.FileID,
		Hash:         f.Hash,
		RemotePath:   f.DisplayPath,
		LocalPath:    localPath,
		DownloadedAt: time.Now().UTC(),
	})

	// Write-through so an interrupted run never re-downloads what it
	// already finished.
	if err := e.history.Save(); err != nil {
		e.logger.WithError(err).Warn("Failed to save history")
	}

	e.stats.Downloaded++

	e.logger.WithFields(map[string]interface{}{
		"path": localPath,
		"size": len(data),
	}).Info("Downloaded")

	return nil
}

// cleanupDeleted removes local files whose remote counterparts are
// gone. Skipped entirely when anything failed this run: a failed walk
// would make remote files look deleted.
func (e *Engine) cleanupDeleted(ctx context.Context) {
	if e.hadErrors {
		e.logger.Warn("Skipping deleted-file cleanup after errors")
		return
	}
	if ctx.Err() != nil {
		return
	}

	for fileID, entry := range e.history.Entries() {
		if _, ok := e.seen[fileID]; ok {
			continue
		}

		if err := e.store.Delete(entry.LocalPath); err != nil {
			e.logger.WithError(err).WithField("path", entry.LocalPath).Error("Failed to delete local file")
			e.hadErrors = true
			return
		}

		e.history.Remove(fileID)
		e.stats.Deleted++
		e.logger.WithField("path", entry.LocalPath).Info("Deleted local file (removed remotely)")
	}
}

// statsCopy returns a copy of the run counters.
func (e *Engine) statsCopy() *models.ExportStats {
	stats := e.stats
	return &stats
}

// LocalPath maps a remote display path to the relative output path,
// converting the office extension. Returns "" for non-office names.
func LocalPath(displayPath string) string {
	converted := models.OfficeExportName(displayPath)
	if converted == "" {
		return ""
	}
	return strings.TrimPrefix(converted, "/")
}
