// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package api

import (
	"context"
	"time"

	"github.com/tomtom215/confvault/internal/audit"
	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/configlock"
)

// TaskService is the part of backup.Manager the handlers use.
type TaskService interface {
	SubmitBackup(path string, opts backup.BackupOptions) string
	SubmitRestore(path string) string
	StopTask(ctx context.Context, id string) error
	TaskView(id string) (backup.TaskView, error)
	TaskViews() []backup.TaskView
}

var _ TaskService = (*backup.Manager)(nil)

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	tasks     TaskService
	lock      *configlock.Lock
	dataRoot  string
	startTime time.Time
	audit     *audit.Logger

	// ready reports whether the engine can accept tasks. Nil means always.
	ready func(ctx context.Context) error
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithReadinessCheck sets the check behind /api/v1/health/ready.
func WithReadinessCheck(fn func(ctx context.Context) error) HandlerOption {
	return func(h *Handler) { h.ready = fn }
}

// WithAudit records task submissions and stop requests to logger.
func WithAudit(logger *audit.Logger) HandlerOption {
	return func(h *Handler) { h.audit = logger }
}

// NewHandler creates the handlers. dataRoot is the live configuration tree;
// archive paths may not overlap it.
func NewHandler(tasks TaskService, lock *configlock.Lock, dataRoot string, opts ...HandlerOption) *Handler {
	if lock == nil {
		lock = configlock.New()
	}
	h := &Handler{
		tasks:     tasks,
		lock:      lock,
		dataRoot:  dataRoot,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
