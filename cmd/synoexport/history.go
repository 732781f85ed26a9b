package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/synoexport/internal/client"
	"github.com/TheMichaelB/synoexport/internal/history"
	"github.com/TheMichaelB/synoexport/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or reset the download history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded downloads",
	RunE:  runHistoryList,
}

var historyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the download history",
	Long: `Reset forgets every recorded download. The next export run will
re-download all office files; local files are left untouched.`,
	RunE: runHistoryReset,
}

var (
	historyOutput  string
	historyBackend string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyResetCmd)

	for _, cmd := range []*cobra.Command{historyListCmd, historyResetCmd} {
		cmd.Flags().StringVarP(&historyOutput, "output", "o", "",
			"Output directory holding the history")
		cmd.Flags().StringVar(&historyBackend, "history-backend", "",
			"History backend: json or sqlite")
	}
}

// openHistoryStore opens the configured history backend. Callers that
// rewrite the history pass lockRun and must invoke the returned release
// func; a concurrent export makes the lock fail fast.
func openHistoryStore(lockRun bool) (history.Store, func(), error) {
	if historyOutput != "" {
		cfg.Export.OutputDir = historyOutput
	}
	if historyBackend != "" {
		cfg.Export.HistoryBackend = historyBackend
	}

	baseDir, err := filepath.Abs(cfg.Export.OutputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve output directory: %w", err)
	}

	release := func() {}
	if lockRun {
		lock := client.NewRunLock(baseDir)
		if err := lock.Acquire(); err != nil {
			if errors.Is(err, history.ErrHistoryLocked) {
				return nil, nil, models.ErrExportInProgress
			}
			return nil, nil, err
		}
		release = func() {
			if err := lock.Release(); err != nil {
				logger.WithError(err).Warn("Failed to release run lock")
			}
		}
	}

	store, err := client.NewHistoryStore(cfg, baseDir, logger)
	if err != nil {
		release()
		return nil, nil, err
	}

	if err := store.Load(); err != nil {
		store.Close()
		release()
		return nil, nil, err
	}
	return store, release, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, release, err := openHistoryStore(false)
	if err != nil {
		return err
	}
	defer release()
	defer store.Close()

	entries := store.Entries()

	if jsonOutput {
		printJSON(entries)
		return nil
	}

	if len(entries) == 0 {
		printInfo("History is empty")
		return nil
	}

	paths := make([]string, 0, len(entries))
	downloadedAt := make(map[string]string, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.LocalPath)
		downloadedAt[entry.LocalPath] = entry.DownloadedAt.Format("2006-01-02 15:04:05")
	}
	sort.Strings(paths)

	for _, path := range paths {
		fmt.Printf("%s  %s\n", downloadedAt[path], path)
	}
	printInfo("%d file(s) recorded", len(entries))

	return nil
}

func runHistoryReset(cmd *cobra.Command, args []string) error {
	store, release, err := openHistoryStore(true)
	if err != nil {
		if errors.Is(err, models.ErrExportInProgress) {
			printError("Another export is already running against this output directory.")
		}
		return err
	}
	defer release()
	defer store.Close()

	count := store.Len()
	for fileID := range store.Entries() {
		store.Remove(fileID)
	}

	if err := store.Save(); err != nil {
		return err
	}

	if count == 1 {
		printSuccess("Cleared 1 history entry")
	} else {
		printSuccess("Cleared %d history entries", count)
	}
	return nil
}
