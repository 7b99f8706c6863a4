// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package configlock

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

// writeMethods are the request methods that modify configuration.
var writeMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
	"MKCOL":           {},
	"COPY":            {},
	"MOVE":            {},
	"PROPPATCH":       {},
	"LOCK":            {},
	"UNLOCK":          {},
}

// IsWriteMethod reports whether method modifies configuration.
func IsWriteMethod(method string) bool {
	_, ok := writeMethods[strings.ToUpper(method)]
	return ok
}

type lockedResponse struct {
	Status string `json:"status"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Lock Status `json:"lock"`
}

// Middleware rejects requests with 423 Locked while l does not admit them.
// Requests whose path starts with one of exempt always pass, so the task API
// stays reachable while a task holds the lock.
func Middleware(l *Lock, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exempt {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			write := IsWriteMethod(r.Method)
			if l.Admits(write) {
				next.ServeHTTP(w, r)
				return
			}

			status := l.Status()
			metrics.ConfigLockRejections.WithLabelValues(status.Mode).Inc()
			logging.Ctx(r.Context()).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("mode", status.Mode).
				Msg("Request rejected by configuration lock")

			resp := lockedResponse{Status: "error", Lock: status}
			resp.Error.Code = "CONFIG_LOCKED"
			resp.Error.Message = "configuration is locked by a running backup or restore task"

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusLocked)
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				logging.Error().Err(err).Msg("Failed to encode lock response")
			}
		})
	}
}
