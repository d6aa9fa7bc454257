// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine adapts a local inference server into the chat capability.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorCode categorizes client errors for handling.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeNotRunning
	CodeTimeout
	CodeModelNotFound
	CodeConnection
	CodeInvalidResponse
	CodeInconsistent // server-internal consistency-check failure, recoverable by reload
	CodeBusy
	CodeNotReady
	CodeNoModel
)

// ClientError represents an error from the inference server client.
type ClientError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches ClientErrors by code so sentinel comparisons with errors.Is work.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning     = &ClientError{Code: CodeNotRunning, Message: "inference server is not running"}
	ErrTimeout        = &ClientError{Code: CodeTimeout, Message: "request timed out"}
	ErrModelNotFound  = &ClientError{Code: CodeModelNotFound, Message: "model not found"}
	ErrBusy           = &ClientError{Code: CodeBusy, Message: "a generation is already in flight"}
	ErrNotInitialized = &ClientError{Code: CodeNotReady, Message: "engine is not initialized"}
	ErrNoModel        = &ClientError{Code: CodeNoModel, Message: "no model is loaded"}
)

// recoverableSignature is the server's internal consistency-check failure
// text. It is matched here, once, at the adapter boundary; everything above
// this layer sees CodeInconsistent.
const recoverableSignature = "consistency check failed"

// IsRecoverable reports whether err is the known engine failure mode that is
// fixed by reloading the current model.
func IsRecoverable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code == CodeInconsistent
	}
	return false
}

// IsModelNotFound reports whether err is a model-not-found error.
func IsModelNotFound(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code == CodeModelNotFound
	}
	return false
}

// mapServerError converts the server's error envelope into a structured error.
func mapServerError(status int, body []byte) error {
	var se serverError
	msg := ""
	if err := json.Unmarshal(body, &se); err == nil {
		msg = se.Error
	}
	if msg == "" {
		msg = "request failed: " + http.StatusText(status)
	}

	switch {
	case strings.Contains(msg, recoverableSignature):
		return &ClientError{Code: CodeInconsistent, Message: msg}
	case status == http.StatusNotFound || strings.Contains(msg, "not found"):
		return &ClientError{Code: CodeModelNotFound, Message: msg}
	default:
		return &ClientError{Code: CodeInvalidResponse, Message: msg}
	}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the inference server client.
type ClientConfig struct {
	// BaseURL is the server's API base URL (default: http://127.0.0.1:11434).
	// Explicit IPv4 avoids IPv6 resolution issues with "localhost" on Windows.
	BaseURL string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// ServerCommand is the executable started when the server is not running
	// and AutoStart is enabled (default: "ollama").
	ServerCommand string

	// AutoStart launches the server process if it is not reachable.
	AutoStart bool

	// ProgressInterval throttles pull progress reporting (default: 100ms).
	ProgressInterval time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:          "http://127.0.0.1:11434",
		Timeout:          60 * time.Second,
		ServerCommand:    "ollama",
		AutoStart:        true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles HTTP communication with the inference server.
// It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a client, filling zero config values with defaults.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.ServerCommand == "" {
		config.ServerCommand = "ollama"
	}
	if config.ProgressInterval == 0 {
		config.ProgressInterval = 100 * time.Millisecond
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the inference server is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Code: CodeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Code:    CodeConnection,
			Message: "unexpected status from inference server: " + resp.Status,
		}
	}
	return nil
}

// EnsureRunning checks the server and, when AutoStart is enabled, launches it
// if it is not reachable. Start logic is platform specific (see start_unix.go
// and start_windows.go).
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	if !c.config.AutoStart {
		return ErrNotRunning
	}
	return c.startServerProcess(ctx)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all models present on the server.
func (c *Client) ListModels(ctx context.Context) ([]ServerModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Code: CodeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Code:    CodeInvalidResponse,
			Message: "failed to list models: " + resp.Status,
		}
	}

	var result TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Code: CodeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return result.Models, nil
}

// PullProgress describes one progress update during a model pull.
type PullProgress struct {
	Status   string  // free-form text from the server ("pulling manifest", ...)
	Fraction float64 // 0..1 completion of the current layer, 0 when unknown
}

// PullModel downloads a model, reporting progress through onProgress.
// Progress callbacks are rate-limited to the configured interval so a fast
// local download does not flood the UI; the final update is always delivered.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	body, err := json.Marshal(PullRequest{Name: name, Stream: true})
	if err != nil {
		return &ClientError{Code: CodeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// No client timeout: pulls are long-running, cancellation comes from ctx.
	pullClient := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Code: CodeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pullClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data := new(bytes.Buffer)
		data.ReadFrom(resp.Body)
		return mapServerError(resp.StatusCode, data.Bytes())
	}

	limiter := rate.NewLimiter(rate.Every(c.config.ProgressInterval), 1)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var ps pullStatus
		if err := json.Unmarshal(scanner.Bytes(), &ps); err != nil {
			continue // skip malformed lines
		}
		if ps.Error != "" {
			return mapServerError(resp.StatusCode, scanner.Bytes())
		}

		if onProgress == nil {
			continue
		}
		final := ps.Status == "success"
		if !final && !limiter.Allow() {
			continue
		}
		p := PullProgress{Status: ps.Status}
		if ps.Total > 0 {
			p.Fraction = float64(ps.Completed) / float64(ps.Total)
		}
		if final {
			p.Fraction = 1
		}
		onProgress(p)
	}
	if err := scanner.Err(); err != nil {
		return &ClientError{Code: CodeConnection, Message: "pull stream interrupted", Cause: err}
	}
	return nil
}

// Warm loads a model into server memory without generating anything.
func (c *Client) Warm(ctx context.Context, model string) error {
	body, err := json.Marshal(GenerateRequest{Model: model, Stream: false})
	if err != nil {
		return &ClientError{Code: CodeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Code: CodeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data := new(bytes.Buffer)
		data.ReadFrom(resp.Body)
		return mapServerError(resp.StatusCode, data.Bytes())
	}
	return nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a chat request and returns the complete response (non-streaming).
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	body, err := json.Marshal(ChatRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return nil, &ClientError{Code: CodeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Code: CodeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data := new(bytes.Buffer)
		data.ReadFrom(resp.Body)
		return nil, mapServerError(resp.StatusCode, data.Bytes())
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Code: CodeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// ChatStream sends a streaming chat request and returns a per-turn Stream
// handle. The handle is scoped to this call only: once the stream ends no
// further tokens are ever delivered through it, so a stale handle from a
// previous turn can never write into a new turn's buffer.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message) (*Stream, error) {
	body, err := json.Marshal(ChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return nil, &ClientError{Code: CodeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// No client timeout for streaming; the context governs the lifetime.
	streamClient := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Code: CodeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, ErrNotRunning
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data := new(bytes.Buffer)
		data.ReadFrom(resp.Body)
		return nil, mapServerError(resp.StatusCode, data.Bytes())
	}

	return newStream(ctx, resp.Body), nil
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}
