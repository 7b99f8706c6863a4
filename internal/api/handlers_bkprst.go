// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
handlers_bkprst.go - Backup/Restore Task Handlers

Submission handlers only validate and queue: the task runs on the engine's
worker and the response carries just its ID. Clients poll GET /{id} until
the state is terminal (COMPLETED, FAILED or STOPPED).

Stopping is synchronous. DELETE returns once the backup has been halted and
rolled back, with the final task view.
*/

//nolint:staticcheck // File documentation, not package doc
package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/logging"
)

// maxRequestBody bounds submission bodies.
const maxRequestBody = 64 << 10

// BackupRequest is the body of POST /api/v1/bkprst/backup.
type BackupRequest struct {
	Path        string `json:"path" validate:"required,abspath,max=4096"`
	IncludeData bool   `json:"include_data"`
	IncludeGWC  bool   `json:"include_gwc"`
	IncludeLog  bool   `json:"include_log"`
}

// RestoreRequest is the body of POST /api/v1/bkprst/restore.
type RestoreRequest struct {
	Path string `json:"path" validate:"required,abspath,max=4096"`
}

// TaskCreated is returned by the submission endpoints.
type TaskCreated struct {
	ID string `json:"id"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body: "+err.Error(), nil)
		return false
	}
	if apiErr := validateRequest(dst); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return false
	}
	return true
}

// checkArchivePath rejects archive paths that overlap the data root. A backup
// into the data root would copy into itself, and a backup into one of its
// parents would delete it.
func (h *Handler) checkArchivePath(w http.ResponseWriter, r *http.Request, path string) bool {
	if h.dataRoot == "" {
		return true
	}
	if overlaps(path, h.dataRoot) {
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidPath,
			fmt.Sprintf("path %s overlaps the data root", path), nil)
		return false
	}
	return true
}

func overlaps(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// taskID extracts the {id} URL parameter. Anything that is not a UUID cannot
// name a task and is reported as not found.
func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, r, http.StatusNotFound, ErrCodeTaskNotFound, "Task not found: "+sanitizeLogValue(id), nil)
		return "", false
	}
	return id, true
}

// respondTaskError maps engine errors to HTTP responses.
func respondTaskError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, backup.ErrTaskNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeTaskNotFound, "Task not found: "+id, nil)
	case errors.Is(err, backup.ErrUnallowedOperation):
		respondError(w, r, http.StatusConflict, ErrCodeUnallowed, "Restore tasks cannot be stopped", nil)
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Request canceled while stopping task", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Task operation failed", err)
	}
}

// CreateBackup queues a backup of the data root.
// POST /api/v1/bkprst/backup
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req BackupRequest
	if !decodeBody(w, r, &req) || !h.checkArchivePath(w, r, req.Path) {
		return
	}

	id := h.tasks.SubmitBackup(req.Path, backup.BackupOptions{
		IncludeData: req.IncludeData,
		IncludeGWC:  req.IncludeGWC,
		IncludeLog:  req.IncludeLog,
	})

	logging.Ctx(r.Context()).Info().
		Str("task_id", id).
		Str("path", req.Path).
		Msg("Backup task submitted")

	h.audit.TaskSubmitted(r, string(backup.KindBackup), id, req.Path)

	w.Header().Set("Location", APIPrefix+"/"+id)
	respondSuccess(w, r, http.StatusCreated, TaskCreated{ID: id})
}

// CreateRestore queues a restore of an archive over the data root.
// POST /api/v1/bkprst/restore
func (h *Handler) CreateRestore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !decodeBody(w, r, &req) || !h.checkArchivePath(w, r, req.Path) {
		return
	}

	id := h.tasks.SubmitRestore(req.Path)

	logging.Ctx(r.Context()).Info().
		Str("task_id", id).
		Str("path", req.Path).
		Msg("Restore task submitted")

	h.audit.TaskSubmitted(r, string(backup.KindRestore), id, req.Path)

	w.Header().Set("Location", APIPrefix+"/"+id)
	respondSuccess(w, r, http.StatusCreated, TaskCreated{ID: id})
}

// GetTask returns one task. With Accept: application/xml the task is
// rendered in archive descriptor form.
// GET /api/v1/bkprst/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	view, err := h.tasks.TaskView(id)
	if err != nil {
		respondTaskError(w, r, id, err)
		return
	}

	if wantsXML(r) {
		data, err := backup.EncodeDescriptor(backup.DescriptorFromView(view))
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to encode task", err)
			return
		}
		respondXML(w, http.StatusOK, data)
		return
	}

	respondSuccess(w, r, http.StatusOK, view)
}

// ListTasks returns every retained task in submission order.
// GET /api/v1/bkprst
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	views := h.tasks.TaskViews()

	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := views[:0:0]
		for _, v := range views {
			if string(v.Kind) == kind {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	respondList(w, r, views, len(views))
}

// StopTask halts a task and returns its final view.
// DELETE /api/v1/bkprst/{id}
func (h *Handler) StopTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	h.stop(w, r, id)
}

// StopBackup halts a backup task.
// DELETE /api/v1/bkprst/backup/{id}
func (h *Handler) StopBackup(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	view, err := h.tasks.TaskView(id)
	if err != nil {
		respondTaskError(w, r, id, err)
		return
	}
	if view.Kind != backup.KindBackup {
		h.audit.TaskStopped(r, id, backup.ErrUnallowedOperation)
		respondError(w, r, http.StatusConflict, ErrCodeUnallowed, "Task "+id+" is not a backup", nil)
		return
	}
	h.stop(w, r, id)
}

// StopRestore always refuses: a half-restored configuration is unsafe.
// DELETE /api/v1/bkprst/restore/{id}
func (h *Handler) StopRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if _, err := h.tasks.TaskView(id); err != nil {
		respondTaskError(w, r, id, err)
		return
	}
	h.audit.TaskStopped(r, id, backup.ErrUnallowedOperation)
	respondTaskError(w, r, id, backup.ErrUnallowedOperation)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.tasks.StopTask(r.Context(), id); err != nil {
		if errors.Is(err, backup.ErrUnallowedOperation) {
			h.audit.TaskStopped(r, id, err)
		}
		respondTaskError(w, r, id, err)
		return
	}
	h.audit.TaskStopped(r, id, nil)

	logging.Ctx(r.Context()).Info().Str("task_id", id).Msg("Task stopped")

	view, err := h.tasks.TaskView(id)
	if err != nil {
		respondTaskError(w, r, id, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, view)
}

// LockStatus reports who holds the configuration lock.
// GET /api/v1/bkprst/lock
func (h *Handler) LockStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.lock.Status())
}
