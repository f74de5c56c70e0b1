// Package backend is the JSON client the checkout flow uses to reach the
// ticketing API. Calls are described as an ordered list of candidate paths
// that are tried in sequence until one succeeds or a terminal status is hit.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sg-checkout/internal/models"

	"github.com/sirupsen/logrus"
)

// Config configures a backend client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the ticketing API
type Client struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

// NewClient creates a new backend client
func NewClient(config Config, log *logrus.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Request describes one logical call and its candidate paths
type Request struct {
	Method string
	// Paths are tried in order; the next one is only attempted when the
	// previous failed with a status that ShouldFallback allows.
	Paths  []string
	Body   interface{}
	Header http.Header
	// ShouldFallback decides whether a failed status moves on to the next
	// path. Defaults to FallbackUnlessUnauthorized.
	ShouldFallback func(status int) bool
}

// FallbackUnlessUnauthorized treats 401 as terminal and anything else as
// worth trying on the next candidate path.
func FallbackUnlessUnauthorized(status int) bool {
	return status != http.StatusUnauthorized
}

// StatusError is a non-2xx response from the API
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// Is lets errors.Is(err, models.ErrUnauthorized) match 401 responses
func (e *StatusError) Is(target error) bool {
	return target == models.ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Result reports which candidate answered
type Result struct {
	Path     string
	Status   int
	Attempts int
}

// Do runs the request against each candidate path in order and decodes the
// first successful response into out (if out is non-nil).
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (*Result, error) {
	if len(req.Paths) == 0 {
		return nil, errors.New("backend: request has no paths")
	}
	shouldFallback := req.ShouldFallback
	if shouldFallback == nil {
		shouldFallback = FallbackUnlessUnauthorized
	}

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for i, path := range req.Paths {
		result := &Result{Path: path, Attempts: i + 1}
		status, err := c.attempt(ctx, req, path, payload, out)
		result.Status = status
		if err == nil {
			return result, nil
		}
		lastErr = err

		fields := logrus.Fields{
			"subsystem": "backend",
			"method":    req.Method,
			"path":      path,
			"status":    status,
			"attempt":   i + 1,
		}

		if ctx.Err() != nil {
			return result, lastErr
		}
		if status != 0 && !shouldFallback(status) {
			c.log.WithFields(fields).WithError(err).Warn("Terminal API failure, not trying fallback paths")
			return result, lastErr
		}
		if i < len(req.Paths)-1 {
			c.log.WithFields(fields).WithError(err).Info("API call failed, trying next candidate path")
		}
	}
	return &Result{Path: req.Paths[len(req.Paths)-1], Attempts: len(req.Paths)}, lastErr
}

func (c *Client) attempt(ctx context.Context, req Request, path string, payload []byte, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{
			Method:  req.Method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// errorMessage pulls a human readable message out of an error body
func errorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
