// Package client wires configuration, transport, services, and stores
// into one ready-to-run exporter.
package client

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/TheMichaelB/synoexport/internal/config"
	"github.com/TheMichaelB/synoexport/internal/creds"
	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/history"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/services/auth"
	"github.com/TheMichaelB/synoexport/internal/services/drive"
	"github.com/TheMichaelB/synoexport/internal/services/export"
	"github.com/TheMichaelB/synoexport/internal/storage"
	"github.com/TheMichaelB/synoexport/internal/transport"
)

// File names kept next to the exported tree.
const (
	jsonHistoryName   = ".synoexport_history.json"
	sqliteHistoryName = ".synoexport_history.db"
	lockName          = ".synoexport.lock"
)

// Client provides the high-level exporter API.
type Client struct {
	Auth    *auth.Service
	Drive   *drive.Service
	History history.Store
	Store   *storage.LocalStore

	config    *config.Config
	logger    *events.Logger
	transport transport.Transport
	lock      *history.RunLock
}

// New creates a client from configuration.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	transportClient := transport.NewTransport(&cfg.NAS, &cfg.API, logger)

	localStore, err := storage.NewLocalStore(cfg.Export.OutputDir, cfg.Export.MaxFileSize, logger)
	if err != nil {
		return nil, err
	}

	histStore, err := NewHistoryStore(cfg, localStore.BaseDir(), logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		Auth:      auth.NewService(transportClient, logger),
		Drive:     drive.NewService(transportClient, logger),
		History:   histStore,
		Store:     localStore,
		config:    cfg,
		logger:    logger,
		transport: transportClient,
		lock:      NewRunLock(localStore.BaseDir()),
	}, nil
}

// NewRunLock returns the advisory lock guarding the output tree and its
// history file. Anything that writes either must hold it.
func NewRunLock(baseDir string) *history.RunLock {
	return history.NewRunLock(filepath.Join(baseDir, lockName))
}

// Login signs in to the NAS.
func (c *Client) Login(ctx context.Context, credentials *creds.Credentials) error {
	return c.Auth.Login(ctx, credentials)
}

// Export runs a full export. It holds the run lock for the duration so
// concurrent runs cannot corrupt the history or the output tree.
func (c *Client) Export(ctx context.Context, opts export.Options) (*models.ExportStats, error) {
	if err := c.lock.Acquire(); err != nil {
		if errors.Is(err, history.ErrHistoryLocked) {
			return nil, models.ErrExportInProgress
		}
		return nil, err
	}
	defer func() {
		if err := c.lock.Release(); err != nil {
			c.logger.WithError(err).Warn("Failed to release run lock")
		}
	}()

	if err := c.History.Load(); err != nil {
		// A corrupt history means a full re-download, not a dead run.
		c.logger.WithError(err).Warn("History unusable, starting fresh")
	}

	// Tag everything this run logs with a shared run ID.
	ctx = events.WithLogger(ctx, c.logger)
	ctx = events.WithRunID(ctx, time.Now().UTC().Format("20060102-150405"))

	engine := export.NewEngine(c.Drive, c.History, c.Store, opts, events.FromContext(ctx))
	return engine.Run(ctx)
}

// Logout ends the NAS session.
func (c *Client) Logout(ctx context.Context) {
	c.Auth.Logout(ctx)
}

// Close releases the history store and transport.
func (c *Client) Close() error {
	var firstErr error

	if err := c.History.Close(); err != nil {
		firstErr = err
	}
	if err := c.transport.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// NewHistoryStore picks the history backend from configuration.
func NewHistoryStore(cfg *config.Config, baseDir string, logger *events.Logger) (history.Store, error) {
	if cfg.Export.SkipHistory {
		return history.NewNullStore(), nil
	}

	switch cfg.Export.HistoryBackend {
	case "", "json":
		return history.NewJSONStore(filepath.Join(baseDir, jsonHistoryName), logger), nil
	case "sqlite":
		return history.NewSQLiteStore(filepath.Join(baseDir, sqliteHistoryName), logger)
	default:
		return nil, fmt.Errorf("%w: unknown history backend %q", models.ErrInvalidConfig, cfg.Export.HistoryBackend)
	}
}
