package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/TheMichaelB/synoexport/internal/config"
	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
)

// HTTPClient handles HTTP communication with the DSM web API.
type HTTPClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
	sid       string
	logger    *events.Logger

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// apiEnvelope is the standard DSM response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiErrorBody   `json:"error"`
}

type apiErrorBody struct {
	Code int `json:"code"`
}

// NewHTTPClient creates an HTTP client for a NAS.
func NewHTTPClient(nas *config.NASConfig, api *config.APIConfig, logger *events.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			// Home NAS boxes commonly run self-signed certificates.
			InsecureSkipVerify: nas.InsecureSkipVerify,
			NextProtos:         []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   api.Timeout,
			Transport: transport,
		},
		baseURL:    nas.BaseURL(),
		userAgent:  api.UserAgent,
		maxRetries: api.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "http_client"),
	}
}

// SetSession sets the DSM session ID.
func (c *HTTPClient) SetSession(sid string) {
	c.sid = sid
}

// Session returns the current DSM session ID.
func (c *HTTPClient) Session() string {
	return c.sid
}

// CallAPI performs a JSON web API call and unwraps the DSM envelope.
func (c *HTTPClient) CallAPI(ctx context.Context, req APIRequest) (json.RawMessage, error) {
	body, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", req.API, err)
	}

	if !envelope.Success {
		apiErr := &models.APIError{API: req.API}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
		}
		return nil, apiErr
	}

	return envelope.Data, nil
}

// Download performs an API call that returns file bytes. A JSON body means
// the NAS reported an error instead of content.
func (c *HTTPClient) Download(ctx context.Context, req APIRequest) ([]byte, error) {
	body, err := c.get(ctx, req)
	if err != nil {
		return nil, err
	}

	if looksLikeEnvelope(body) {
		var envelope apiEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && !envelope.Success {
			apiErr := &models.APIError{API: req.API}
			if envelope.Error != nil {
				apiErr.Code = envelope.Error.Code
			}
			return nil, apiErr
		}
	}

	return body, nil
}

// get executes the request with retry and returns the raw response body.
func (c *HTTPClient) get(ctx context.Context, req APIRequest) ([]byte, error) {
	requestURL := c.buildURL(req)

	c.logger.WithFields(map[string]interface{}{
		"api":    req.API,
		"method": req.Method,
	}).Debug("Sending request")

	var body []byte
	err := c.retry(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		httpReq.Header.Set("Accept", "*/*")
		httpReq.Header.Set("User-Agent", c.userAgent)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		if c.isRetryable(resp.StatusCode) {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)
		}

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return &permanentHTTPError{status: resp.StatusCode, body: string(respBody)}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"api":  req.API,
		"size": len(body),
	}).Debug("Received response")

	return body, nil
}

// buildURL assembles the webapi URL with common and per-request params.
func (c *HTTPClient) buildURL(req APIRequest) string {
	params := url.Values{}
	for k, vs := range req.Params {
		for _, v := range vs {
			params.Add(k, v)
		}
	}

	params.Set("api", req.API)
	params.Set("method", req.Method)
	params.Set("version", strconv.Itoa(req.Version))
	if c.sid != "" {
		params.Set("_sid", c.sid)
	}

	path := req.Path
	if path == "" {
		path = "entry.cgi"
	}

	return fmt.Sprintf("%s/webapi/%s?%s", c.baseURL, path, params.Encode())
}

// retry executes a function with exponential backoff.
func (c *HTTPClient) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}
	}

	return &models.TransientError{Op: "request", Err: lastErr}
}

// isRetryable checks if an HTTP status code is retryable.
func (c *HTTPClient) isRetryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

// isRetryableError checks if an error is retryable.
func (c *HTTPClient) isRetryableError(err error) bool {
	var permanent *permanentHTTPError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Network errors and 5xx responses are retryable.
	return true
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// permanentHTTPError marks a non-retryable HTTP status.
type permanentHTTPError struct {
	status int
	body   string
}

func (e *permanentHTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

// looksLikeEnvelope reports whether a download body is actually a JSON
// error envelope rather than file content.
func looksLikeEnvelope(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"success"`)
}
