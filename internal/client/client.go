// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package client is a typed HTTP client for the Confvault task API.

It is used by the confvault CLI subcommands. Every call decodes the
standard response envelope and turns error envelopes into *Error, so
callers can branch on the HTTP status or the error code:

	c := client.New("http://localhost:8585")
	id, err := c.SubmitBackup(ctx, client.BackupRequest{Path: "/srv/archives/nightly"})
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		...
	}
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/configlock"
)

// APIPrefix is the task API mount point.
const APIPrefix = "/api/v1/bkprst"

// DefaultTimeout bounds each request. Stop calls block until the task has
// halted, so it is longer than a typical REST timeout.
const DefaultTimeout = time.Minute

// BackupRequest is the body of a backup submission.
type BackupRequest struct {
	Path        string `json:"path"`
	IncludeData bool   `json:"include_data"`
	IncludeGWC  bool   `json:"include_gwc"`
	IncludeLog  bool   `json:"include_log"`
}

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to one Confvault server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL (e.g. http://localhost:8585).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitBackup queues a backup and returns the task id.
func (c *Client) SubmitBackup(ctx context.Context, req BackupRequest) (string, error) {
	return c.submit(ctx, "/backup", req)
}

// SubmitRestore queues a restore of the archive at path and returns the task id.
func (c *Client) SubmitRestore(ctx context.Context, path string) (string, error) {
	return c.submit(ctx, "/restore", map[string]string{"path": path})
}

func (c *Client) submit(ctx context.Context, endpoint string, body interface{}) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Get returns a task.
func (c *Client) Get(ctx context.Context, id string) (backup.TaskView, error) {
	var view backup.TaskView
	err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id), nil, &view)
	return view, err
}

// List returns retained tasks, optionally filtered by kind.
func (c *Client) List(ctx context.Context, kind backup.Kind) ([]backup.TaskView, error) {
	endpoint := "/"
	if kind != "" {
		endpoint += "?kind=" + url.QueryEscape(string(kind))
	}
	var views []backup.TaskView
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Stop halts a task and returns its final state.
func (c *Client) Stop(ctx context.Context, id string) (backup.TaskView, error) {
	var view backup.TaskView
	err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil, &view)
	return view, err
}

// Lock reports the configuration lock state.
func (c *Client) Lock(ctx context.Context) (configlock.Status, error) {
	var status configlock.Status
	err := c.do(ctx, http.MethodGet, "/lock", nil, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+APIPrefix+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 || env.Status == "error" {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
