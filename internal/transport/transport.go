package transport

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/TheMichaelB/synoexport/internal/config"
	"github.com/TheMichaelB/synoexport/internal/events"
)

// APIRequest describes one DSM web API call.
type APIRequest struct {
	// Path is the cgi endpoint, usually "auth.cgi" or "entry.cgi".
	Path string

	// API is the DSM API name, e.g. "SYNO.SynologyDrive.Files".
	API string

	// Method is the API method, e.g. "list".
	Method string

	// Version of the API to call.
	Version int

	// Params are extra query parameters.
	Params url.Values
}

// Transport performs DSM web API calls.
type Transport interface {
	// CallAPI performs a JSON API call and returns the "data" payload.
	CallAPI(ctx context.Context, req APIRequest) (json.RawMessage, error)

	// Download performs an API call that returns raw file bytes.
	Download(ctx context.Context, req APIRequest) ([]byte, error)

	// SetSession sets the DSM session ID attached to requests.
	SetSession(sid string)

	// Session returns the current DSM session ID.
	Session() string

	// Close releases resources.
	Close() error
}

// NewTransport creates the default HTTP transport.
func NewTransport(nas *config.NASConfig, api *config.APIConfig, logger *events.Logger) Transport {
	return NewHTTPClient(nas, api, logger)
}
