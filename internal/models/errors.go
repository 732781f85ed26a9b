package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeAuth    = "AUTH_ERROR"
	ErrCodeNetwork = "NETWORK_ERROR"
	ErrCodeAPI     = "API_ERROR"
	ErrCodeStorage = "STORAGE_ERROR"
	ErrCodeHistory = "HISTORY_ERROR"
	ErrCodeConfig  = "CONFIG_ERROR"
)

// Sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrOTPRequired      = errors.New("one-time password required")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrExportInProgress = errors.New("export already in progress")
)

// APIError represents an error response from the Drive API. Whether it is
// retryable depends on the DSM error code, not the HTTP status.
type APIError struct {
	Code       int    `json:"code"`
	API        string `json:"api"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s error %d: %s", e.API, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error %d (HTTP %d)", e.API, e.Code, e.StatusCode)
}

// IsAuthFailure reports whether the API error indicates a failed or expired
// session. DSM uses 105 (insufficient privilege), 106/107 (session expired
// or duplicated), and 119 (invalid sid).
func (e *APIError) IsAuthFailure() bool {
	switch e.Code {
	case 105, 106, 107, 119:
		return true
	}
	return false
}

// TransientError wraps a per-file failure that is worth retrying on a later
// run (network faults, 5xx responses). The run continues past it.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// WriteError represents a local filesystem failure for one output file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
