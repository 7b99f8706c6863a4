// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/confvault/internal/audit"
)

// maxAuditLimit caps the limit query parameter.
const maxAuditLimit = 1000

// AuditLog returns recorded audit events, newest first.
// GET /api/v1/bkprst/audit?type=task.submitted,task.stopped&task_id=...&limit=100
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		respondList(w, r, []audit.Event{}, 0)
		return
	}

	filter := audit.DefaultQueryFilter()
	q := r.URL.Query()

	if types := q.Get("type"); types != "" {
		for _, t := range strings.Split(types, ",") {
			filter.Types = append(filter.Types, audit.EventType(strings.TrimSpace(t)))
		}
	}
	filter.TargetID = q.Get("task_id")
	filter.RequestID = q.Get("request_id")

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxAuditLimit {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				"limit must be between 1 and "+strconv.Itoa(maxAuditLimit), nil)
			return
		}
		filter.Limit = n
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to query audit log", err)
		return
	}
	respondList(w, r, events, len(events))
}
