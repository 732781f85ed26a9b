package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "SYNOEXPORT_",
	}
}

// Load reads configuration from file and environment.
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Load from file if exists
	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		// Try default locations
		for _, path := range l.defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				l.configPath = path
				if err := l.loadFile(cfg); err != nil {
					return nil, fmt.Errorf("load config file %s: %w", path, err)
				}
				break
			}
		}
	}

	// Override with environment variables
	if err := l.loadEnv(cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	// Validate final config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{
		"synoexport.json",
		".synoexport.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "synoexport", "config.json"),
			filepath.Join(homeDir, ".synoexport", "config.json"),
		)
	}

	return paths
}

// loadFile reads config from JSON file.
func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	return nil
}

// loadEnv overrides config from environment variables.
func (l *Loader) loadEnv(cfg *Config) error {
	// NAS settings
	if v := os.Getenv(l.envPrefix + "HOST"); v != "" {
		cfg.NAS.Host = v
	}

	if v := os.Getenv(l.envPrefix + "USERNAME"); v != "" {
		cfg.NAS.Username = v
	}

	if v := os.Getenv(l.envPrefix + "PASSWORD"); v != "" {
		cfg.NAS.Password = v
	}

	if v := os.Getenv(l.envPrefix + "OTP"); v != "" {
		cfg.NAS.OTP = v
	}

	// API settings
	if v := os.Getenv(l.envPrefix + "API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}

	// Export settings
	if v := os.Getenv(l.envPrefix + "OUTPUT_DIR"); v != "" {
		cfg.Export.OutputDir = v
	}

	if v := os.Getenv(l.envPrefix + "HISTORY_BACKEND"); v != "" {
		cfg.Export.HistoryBackend = strings.ToLower(v)
	}

	if v := os.Getenv(l.envPrefix + "MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse MAX_FILE_SIZE: %w", err)
		}
		cfg.Export.MaxFileSize = n
	}

	// Log settings
	if v := os.Getenv(l.envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}

	if v := os.Getenv(l.envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}

	if v := os.Getenv(l.envPrefix + "LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	// Variable names shared with the original exporter's .env files.
	// The SYNOEXPORT_ names win when both are set.
	if v := os.Getenv("SYNOLOGY_NAS_HOST"); v != "" && os.Getenv(l.envPrefix+"HOST") == "" {
		cfg.NAS.Host = v
	}

	if v := os.Getenv("SYNOLOGY_NAS_USER"); v != "" && os.Getenv(l.envPrefix+"USERNAME") == "" {
		cfg.NAS.Username = v
	}

	if v := os.Getenv("SYNOLOGY_NAS_PASS"); v != "" && os.Getenv(l.envPrefix+"PASSWORD") == "" {
		cfg.NAS.Password = v
	}

	if v := os.Getenv(l.envPrefix + "INSECURE"); v != "" {
		cfg.NAS.InsecureSkipVerify = v == "true" || v == "1"
	}

	return nil
}
