// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/audit"
)

func TestAuditLog(t *testing.T) {
	store := audit.NewMemoryStore(100)
	logger := audit.NewLogger(store, audit.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go logger.Serve(ctx) //nolint:errcheck // returns ctx.Err()

	h := NewHandler(&mockTasks{}, nil, testDataRoot, WithAudit(logger))
	router := NewRouter(h, NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})).SetupChi()

	if rec := doRequest(t, router, http.MethodPost, "/api/v1/bkprst/backup", `{"path":"/archives/b1"}`); rec.Code != http.StatusCreated {
		t.Fatalf("backup: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(t, router, http.MethodDelete, "/api/v1/bkprst/restore/"+restoreID, ""); rec.Code != http.StatusConflict {
		t.Fatalf("stop restore: %d", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodDelete, "/api/v1/bkprst/"+knownID, ""); rec.Code != http.StatusOK {
		t.Fatalf("stop: %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/v1/bkprst/audit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: %d %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var events []audit.Event
	if err := json.Unmarshal(env.Data, &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != audit.EventTypeTaskStopped || events[2].Type != audit.EventTypeTaskSubmitted {
		t.Errorf("unexpected order: %s, %s, %s", events[0].Type, events[1].Type, events[2].Type)
	}
	if events[1].Type != audit.EventTypeTaskStopRefused || events[1].Target.ID != restoreID {
		t.Errorf("expected refused stop of the restore, got %+v", events[1])
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/bkprst/audit?type=task.submitted&limit=5", "")
	env = decodeEnvelope(t, rec)
	if env.Metadata.Count == nil || *env.Metadata.Count != 1 {
		t.Errorf("filtered count = %v", env.Metadata.Count)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/bkprst/audit?limit=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0: expected 400, got %d", rec.Code)
	}
}

func TestAuditLog_Disabled(t *testing.T) {
	router := setupTestRouter(t, &mockTasks{}, nil)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/bkprst/audit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Metadata.Count == nil || *env.Metadata.Count != 0 {
		t.Errorf("expected empty list, got count %v", env.Metadata.Count)
	}
}
