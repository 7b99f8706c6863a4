// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package api

import (
	"net/http"
	"time"
)

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status     string  `json:"status"`
	Uptime     float64 `json:"uptime_seconds"`
	ConfigLock string  `json:"config_lock"`
	Error      string  `json:"error,omitempty"`
}

// HealthLive reports that the process is serving requests.
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, HealthStatus{
		Status:     "alive",
		Uptime:     time.Since(h.startTime).Seconds(),
		ConfigLock: h.lockMode(),
	})
}

// HealthReady reports whether the engine can run tasks.
// GET /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:     "ready",
		Uptime:     time.Since(h.startTime).Seconds(),
		ConfigLock: h.lockMode(),
	}

	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			status.Status = "not_ready"
			status.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, &APIResponse{
				Status:   "error",
				Data:     status,
				Metadata: newMetadata(r),
				Error:    &APIError{Code: ErrCodeServiceUnavailable, Message: err.Error()},
			})
			return
		}
	}

	respondSuccess(w, r, http.StatusOK, status)
}

func (h *Handler) lockMode() string {
	if s := h.lock.Status(); s.Enabled {
		return s.Mode
	}
	return "unlocked"
}
