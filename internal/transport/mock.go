package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockTransport provides a mock implementation for testing.
type MockTransport struct {
	mu sync.Mutex

	// Response configuration, keyed by "api.method".
	APIResponses map[string]json.RawMessage
	DownloadData map[string][]byte

	// Error injection, keyed by "api.method". Errors take precedence over
	// configured responses.
	APIErrors      map[string]error
	DownloadErrors map[string]error

	// Request tracking
	Calls []APIRequest

	sid string
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		APIResponses:   make(map[string]json.RawMessage),
		DownloadData:   make(map[string][]byte),
		APIErrors:      make(map[string]error),
		DownloadErrors: make(map[string]error),
	}
}

// AddResponse registers a JSON data payload for an api.method pair.
func (m *MockTransport) AddResponse(api, method string, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.APIResponses[api+"."+method] = json.RawMessage(data)
}

// AddDownload registers file bytes keyed by file ID.
func (m *MockTransport) AddDownload(fileID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadData[fileID] = data
}

// FailAPI injects an error for an api.method pair.
func (m *MockTransport) FailAPI(api, method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.APIErrors[api+"."+method] = err
}

// FailDownload injects an error for a file ID.
func (m *MockTransport) FailDownload(fileID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadErrors[fileID] = err
}

// CallAPI mocks a JSON API call.
func (m *MockTransport) CallAPI(ctx context.Context, req APIRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := req.API + "." + req.Method
	if err, ok := m.APIErrors[key]; ok {
		return nil, err
	}

	if resp, ok := m.APIResponses[key]; ok {
		return resp, nil
	}

	return nil, fmt.Errorf("mock: no response for %s", key)
}

// Download mocks a file download, keyed by the file_id param.
func (m *MockTransport) Download(ctx context.Context, req APIRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileID := req.Params.Get("file_id")
	if err, ok := m.DownloadErrors[fileID]; ok {
		return nil, err
	}

	if data, ok := m.DownloadData[fileID]; ok {
		return data, nil
	}

	return nil, fmt.Errorf("mock: no download data for %q", fileID)
}

// SetSession stores the session ID.
func (m *MockTransport) SetSession(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sid = sid
}

// Session returns the stored session ID.
func (m *MockTransport) Session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sid
}

// Close is a no-op.
func (m *MockTransport) Close() error {
	return nil
}

// CallCount returns how many calls hit an api.method pair.
func (m *MockTransport) CallCount(api, method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, call := range m.Calls {
		if call.API == api && call.Method == method {
			count++
		}
	}
	return count
}
