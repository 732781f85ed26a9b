package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// NAS connection
	NAS NASConfig `json:"nas"`

	// API behavior
	API APIConfig `json:"api"`

	// Export behavior
	Export ExportConfig `json:"export"`

	// Logging
	Log LogConfig `json:"log"`
}

// NASConfig identifies the Synology NAS and account.
type NASConfig struct {
	// Host is the NAS address, e.g. "nas.local:5001" or a full URL.
	Host     string `json:"host"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// OTP is a 6-digit code or a TOTP secret for accounts with 2FA.
	OTP string `json:"otp,omitempty"`

	// InsecureSkipVerify disables TLS verification (self-signed NAS certs).
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`
}

// APIConfig for DSM API communication.
type APIConfig struct {
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	UserAgent  string        `json:"user_agent"`
}

// ExportConfig for export behavior.
type ExportConfig struct {
	// OutputDir is where converted files are written.
	OutputDir string `json:"output_dir"`

	// HistoryBackend selects the download-history store: "json" or "sqlite".
	HistoryBackend string `json:"history_backend"`

	// MaxFileSize caps a single converted download in bytes.
	MaxFileSize int64 `json:"max_file_size"`

	// Force re-downloads every eligible file, ignoring history.
	Force bool `json:"force,omitempty"`

	// SkipHistory runs without loading, saving, or locking history.
	SkipHistory bool `json:"skip_history,omitempty"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // Log file path (empty = stderr)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "synoexport/1.0",
		},
		Export: ExportConfig{
			OutputDir:      ".",
			HistoryBackend: "json",
			MaxFileSize:    500 * 1024 * 1024, // 500MB
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// BaseURL returns the NAS host as a full https URL. A bare host gets the
// default DSM https port.
func (c *NASConfig) BaseURL() string {
	host := strings.TrimRight(c.Host, "/")
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if !strings.Contains(host, ":") {
		host += ":5001"
	}
	return "https://" + host
}

// Validate checks configuration validity. NAS credentials are validated at
// login time, not here, because they may come from an interactive prompt.
func (c *Config) Validate() error {
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}

	if c.Export.MaxFileSize <= 0 {
		return errors.New("export.max_file_size must be positive")
	}

	switch c.Export.HistoryBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid history backend: %s", c.Export.HistoryBackend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}
