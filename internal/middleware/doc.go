// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package middleware provides the HTTP middleware shared by the Confvault API
and the lock-gated proxy.

Every middleware has the func(http.Handler) http.Handler shape so it can be
mounted with chi's r.Use:

  - RequestID: propagates or assigns X-Request-ID and adds it to the
    logging context
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request count and latency by route pattern

Typical order:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
