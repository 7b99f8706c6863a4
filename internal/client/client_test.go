// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/backup"
)

const taskID = "6f1c7a52-0d0e-4b8e-9a53-1d2b3c4d5e6f"

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test server
		"status": "success",
		"data":   data,
	})
}

func respondErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test server
		"status": "error",
		"error":  map[string]string{"code": code, "message": msg},
	})
}

func TestClient_SubmitBackup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != APIPrefix+"/backup" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req BackupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Path != "/srv/archive" || !req.IncludeLog || req.IncludeData {
			t.Errorf("unexpected body %+v", req)
		}
		respond(w, http.StatusCreated, map[string]string{"id": taskID})
	}))
	defer server.Close()

	id, err := New(server.URL+"/").SubmitBackup(context.Background(), BackupRequest{Path: "/srv/archive", IncludeLog: true})
	if err != nil {
		t.Fatalf("SubmitBackup failed: %v", err)
	}
	if id != taskID {
		t.Errorf("id = %q", id)
	}
}

func TestClient_SubmitRestore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.URL.Path != APIPrefix+"/restore" || !strings.Contains(string(body), `"/srv/archive"`) {
			t.Errorf("unexpected request %s %s", r.URL.Path, body)
		}
		respond(w, http.StatusCreated, map[string]string{"id": taskID})
	}))
	defer server.Close()

	id, err := New(server.URL).SubmitRestore(context.Background(), "/srv/archive")
	if err != nil || id != taskID {
		t.Fatalf("SubmitRestore = %q, %v", id, err)
	}
}

func TestClient_GetAndStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != APIPrefix+"/"+taskID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		state := backup.StateRunning
		if r.Method == http.MethodDelete {
			state = backup.StateStopped
		}
		respond(w, http.StatusOK, backup.TaskView{ID: taskID, Kind: backup.KindBackup, State: state, Progress: 42})
	}))
	defer server.Close()

	c := New(server.URL)
	view, err := c.Get(context.Background(), taskID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if view.State != backup.StateRunning || view.Progress != 42 || view.Kind != backup.KindBackup {
		t.Errorf("unexpected view %+v", view)
	}

	view, err = c.Stop(context.Background(), taskID)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if view.State != backup.StateStopped {
		t.Errorf("state after stop = %s", view.State)
	}
}

func TestClient_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("kind"); got != "restore" {
			t.Errorf("kind = %q", got)
		}
		respond(w, http.StatusOK, []backup.TaskView{
			{ID: "a", Kind: backup.KindRestore},
			{ID: "b", Kind: backup.KindRestore},
		})
	}))
	defer server.Close()

	views, err := New(server.URL).List(context.Background(), backup.KindRestore)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 2 || views[0].ID != "a" {
		t.Errorf("unexpected views %+v", views)
	}
}

func TestClient_Lock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]interface{}{"enabled": true, "mode": "write", "holder": taskID})
	}))
	defer server.Close()

	status, err := New(server.URL).Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if !status.Enabled || status.Mode != "write" || status.Holder != taskID {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
		status   int
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				respondErr(w, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found")
			},
			wantCode: "TASK_NOT_FOUND",
			status:   http.StatusNotFound,
		},
		{
			name: "unallowed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				respondErr(w, http.StatusConflict, "UNALLOWED_OPERATION", "restore cannot be stopped")
			},
			wantCode: "UNALLOWED_OPERATION",
			status:   http.StatusConflict,
		},
		{
			name: "plain text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := New(server.URL).Stop(context.Background(), taskID)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Code != tt.wantCode {
				t.Errorf("got %d %q, want %d %q", apiErr.StatusCode, apiErr.Code, tt.status, tt.wantCode)
			}
			if apiErr.Error() == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestClient_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	if _, err := New(addr).Get(context.Background(), taskID); err == nil {
		t.Error("expected connection error")
	}
}
