// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/configlock"
)

const (
	testDataRoot = "/srv/config"
	knownID      = "6f1c2b6e-8a51-4c0a-9d0e-3f7d1b2c4a10"
	restoreID    = "0b7a9c3e-2d4f-4e51-8a6b-1c9d0e2f3a4b"
)

// mockTasks implements TaskService with overridable func fields.
type mockTasks struct {
	submitBackup  func(path string, opts backup.BackupOptions) string
	submitRestore func(path string) string
	stopTask      func(ctx context.Context, id string) error
	taskView      func(id string) (backup.TaskView, error)
	taskViews     func() []backup.TaskView
}

func (m *mockTasks) SubmitBackup(path string, opts backup.BackupOptions) string {
	if m.submitBackup != nil {
		return m.submitBackup(path, opts)
	}
	return knownID
}

func (m *mockTasks) SubmitRestore(path string) string {
	if m.submitRestore != nil {
		return m.submitRestore(path)
	}
	return restoreID
}

func (m *mockTasks) StopTask(ctx context.Context, id string) error {
	if m.stopTask != nil {
		return m.stopTask(ctx, id)
	}
	return nil
}

func (m *mockTasks) TaskView(id string) (backup.TaskView, error) {
	if m.taskView != nil {
		return m.taskView(id)
	}
	return defaultView(id)
}

func (m *mockTasks) TaskViews() []backup.TaskView {
	if m.taskViews != nil {
		return m.taskViews()
	}
	b, _ := defaultView(knownID)
	r, _ := defaultView(restoreID)
	return []backup.TaskView{b, r}
}

func defaultView(id string) (backup.TaskView, error) {
	switch id {
	case knownID:
		return backup.TaskView{ID: knownID, Kind: backup.KindBackup, State: backup.StateRunning, Path: "/archives/b1", Progress: 0.5,
			BackupOptions: backup.BackupOptions{IncludeLog: true}}, nil
	case restoreID:
		return backup.TaskView{ID: restoreID, Kind: backup.KindRestore, State: backup.StateQueued, Path: "/archives/b1"}, nil
	default:
		return backup.TaskView{}, backup.ErrTaskNotFound
	}
}

func setupTestRouter(t *testing.T, tasks TaskService, lock *configlock.Lock, opts ...RouterOption) http.Handler {
	t.Helper()
	h := NewHandler(tasks, lock, testDataRoot)
	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	return NewRouter(h, mw, opts...).SetupChi()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestCreateBackup(t *testing.T) {
	var gotPath string
	var gotOpts backup.BackupOptions
	tasks := &mockTasks{submitBackup: func(path string, opts backup.BackupOptions) string {
		gotPath, gotOpts = path, opts
		return knownID
	}}
	h := setupTestRouter(t, tasks, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/bkprst/backup",
		`{"path":"/archives/b1","include_data":false,"include_gwc":true,"include_log":true}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var created TaskCreated
	if err := json.Unmarshal(env.Data, &created); err != nil || created.ID != knownID {
		t.Errorf("unexpected data %s", env.Data)
	}
	if gotPath != "/archives/b1" || gotOpts != (backup.BackupOptions{IncludeGWC: true, IncludeLog: true}) {
		t.Errorf("submitted path=%q opts=%+v", gotPath, gotOpts)
	}
	if loc := rec.Header().Get("Location"); loc != APIPrefix+"/"+knownID {
		t.Errorf("Location = %q", loc)
	}
}

func TestCreateBackup_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"path":`, ErrCodeBadRequest},
		{"unknown field", `{"path":"/a","compress":true}`, ErrCodeBadRequest},
		{"missing path", `{}`, ErrCodeValidation},
		{"relative path", `{"path":"archives/b1"}`, ErrCodeValidation},
		{"inside data root", `{"path":"/srv/config/archive"}`, ErrCodeInvalidPath},
		{"parent of data root", `{"path":"/srv"}`, ErrCodeInvalidPath},
		{"data root itself", `{"path":"/srv/config"}`, ErrCodeInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			tasks := &mockTasks{submitBackup: func(string, backup.BackupOptions) string {
				called = true
				return knownID
			}}
			rec := doRequest(t, setupTestRouter(t, tasks, nil), http.MethodPost, "/api/v1/bkprst/backup", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %+v", tt.wantCode, env.Error)
			}
			if called {
				t.Error("task must not be submitted")
			}
		})
	}
}

func TestCreateRestore(t *testing.T) {
	var gotPath string
	tasks := &mockTasks{submitRestore: func(path string) string {
		gotPath = path
		return restoreID
	}}
	rec := doRequest(t, setupTestRouter(t, tasks, nil), http.MethodPost, "/api/v1/bkprst/restore", `{"path":"/archives/b1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotPath != "/archives/b1" {
		t.Errorf("submitted path %q", gotPath)
	}
}

func TestGetTask(t *testing.T) {
	h := setupTestRouter(t, &mockTasks{}, nil)

	t.Run("json", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/bkprst/"+knownID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var view backup.TaskView
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &view); err != nil {
			t.Fatal(err)
		}
		if view.ID != knownID || view.State != backup.StateRunning || !view.IncludeLog {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("xml", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/bkprst/"+knownID, "", "Accept", "application/xml")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
			t.Errorf("Content-Type = %q", ct)
		}
		d, err := backup.DecodeDescriptor(rec.Body.Bytes())
		if err != nil {
			t.Fatalf("response is not a descriptor: %v\n%s", err, rec.Body.String())
		}
		if d.ID != knownID || !d.IncludeLog || d.IncludeData {
			t.Errorf("unexpected descriptor %+v", d)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/bkprst/11111111-2222-3333-4444-555555555555", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/v1/bkprst/not-a-uuid", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if env := decodeEnvelope(t, rec); env.Error.Code != ErrCodeTaskNotFound {
			t.Errorf("code = %s", env.Error.Code)
		}
	})
}

func TestListTasks(t *testing.T) {
	h := setupTestRouter(t, &mockTasks{}, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/bkprst", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Metadata.Count == nil || *env.Metadata.Count != 2 {
		t.Errorf("expected count 2, got %v", env.Metadata.Count)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/bkprst?kind=restore", "")
	var views []backup.TaskView
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].ID != restoreID {
		t.Errorf("kind filter returned %+v", views)
	}
}

func TestStopTask(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		stopErr    error
		wantStatus int
		wantCode   string
		wantStop   bool
	}{
		{"generic backup", "/api/v1/bkprst/" + knownID, nil, http.StatusOK, "", true},
		{"generic restore", "/api/v1/bkprst/" + restoreID, backup.ErrUnallowedOperation, http.StatusConflict, ErrCodeUnallowed, true},
		{"generic unknown", "/api/v1/bkprst/11111111-2222-3333-4444-555555555555", backup.ErrTaskNotFound, http.StatusNotFound, ErrCodeTaskNotFound, true},
		{"generic malformed", "/api/v1/bkprst/xyz", nil, http.StatusNotFound, ErrCodeTaskNotFound, false},
		{"backup route", "/api/v1/bkprst/backup/" + knownID, nil, http.StatusOK, "", true},
		{"backup route with restore id", "/api/v1/bkprst/backup/" + restoreID, nil, http.StatusConflict, ErrCodeUnallowed, false},
		{"restore route", "/api/v1/bkprst/restore/" + restoreID, nil, http.StatusConflict, ErrCodeUnallowed, false},
		{"restore route unknown", "/api/v1/bkprst/restore/11111111-2222-3333-4444-555555555555", nil, http.StatusNotFound, ErrCodeTaskNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stopped := false
			tasks := &mockTasks{stopTask: func(ctx context.Context, id string) error {
				stopped = true
				return tt.stopErr
			}}
			rec := doRequest(t, setupTestRouter(t, tasks, nil), http.MethodDelete, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("expected code %s, got %+v", tt.wantCode, env.Error)
				}
			}
			if stopped != tt.wantStop {
				t.Errorf("StopTask called = %v, want %v", stopped, tt.wantStop)
			}
		})
	}
}

func TestLockStatus(t *testing.T) {
	lock := configlock.New()
	h := setupTestRouter(t, &mockTasks{}, lock)

	guard, ok := lock.TryAcquire(configlock.ModeRead, knownID)
	if !ok {
		t.Fatal("failed to acquire lock")
	}
	defer guard.Release()

	rec := doRequest(t, h, http.MethodGet, "/api/v1/bkprst/lock", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status configlock.Status
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &status); err != nil {
		t.Fatal(err)
	}
	if !status.Enabled || status.Holder != knownID || status.Mode != configlock.ModeRead.String() {
		t.Errorf("unexpected lock status %+v", status)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(&mockTasks{}, nil, testDataRoot, WithReadinessCheck(func(context.Context) error {
		return context.DeadlineExceeded
	}))
	router := NewRouter(h, NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})).SetupChi()

	if rec := doRequest(t, router, http.MethodGet, "/api/v1/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("live: expected 200, got %d", rec.Code)
	}
	rec := doRequest(t, router, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready: expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, setupTestRouter(t, &mockTasks{}, nil), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "confvault_") {
		t.Errorf("expected confvault metrics, got %d", rec.Code)
	}
}

func TestRateLimitSubmit(t *testing.T) {
	h := NewRouter(NewHandler(&mockTasks{}, nil, testDataRoot), NewChiMiddleware(nil)).SetupChi()

	var last int
	for i := 0; i <= RateLimitSubmit.Requests; i++ {
		last = doRequest(t, h, http.MethodPost, "/api/v1/bkprst/backup", `{"path":"/archives/b1"}`).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after %d submissions, got %d", RateLimitSubmit.Requests, last)
	}
}
