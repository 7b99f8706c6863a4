// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

// Package validation validates API request bodies with go-playground/validator v10.
//
// A single validator instance is shared by every handler. Field names in
// errors use the JSON tag of the field, so messages refer to the names a
// client actually sent:
//
//	type backupRequest struct {
//	    Path string `json:"path" validate:"required,abspath"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	}
//
// Custom tags:
//   - abspath: a non-empty, absolute, already-clean filesystem path
package validation
