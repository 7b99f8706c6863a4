// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/confvault/internal/logging"
)

// slowRequestThreshold promotes access log lines to warn level.
const slowRequestThreshold = time.Second

// AccessLog writes one structured log line per request. Server errors are
// logged at error level and slow requests at warn level. Everything else is
// debug so health probes stay quiet.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		logger := logging.Ctx(r.Context())

		var event *zerolog.Event
		switch {
		case sw.status >= http.StatusInternalServerError:
			event = logger.Error()
		case duration >= slowRequestThreshold:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int64("bytes", sw.bytes).
			Dur("duration", duration).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}
