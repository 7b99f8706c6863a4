// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package config provides layered configuration for Confvault.

Configuration is loaded with Koanf v2 in three layers, each overriding the
previous one:

 1. Defaults from defaultConfig()
 2. An optional YAML file (CONFVAULT_CONFIG, then the default search paths)
 3. Environment variables, through an explicit mapping table

Unknown environment variables are ignored so that unrelated variables never
leak into the configuration.

# Environment Variables

Server:
  - CONFVAULT_HOST, CONFVAULT_PORT: listen address (default 0.0.0.0:8585)
  - CONFVAULT_READ_TIMEOUT, CONFVAULT_WRITE_TIMEOUT, CONFVAULT_SHUTDOWN_TIMEOUT
  - CONFVAULT_RATE_LIMIT_REQUESTS, CONFVAULT_RATE_LIMIT_WINDOW
  - CONFVAULT_CORS_ORIGINS: comma separated

Engine:
  - CONFVAULT_DATA_ROOT: live configuration tree (required, absolute)
  - CONFVAULT_TASK_RETENTION: how long finished tasks are kept (default 10m)
  - CONFVAULT_COPY_WORKERS: parallel file copies per task (default 2)
  - CONFVAULT_HALT_TIMEOUT: wait for in-flight copies on halt (default 5s)
  - CONFVAULT_HISTORY_PATH: BadgerDB directory for task history (empty keeps
    history in memory only)

Reload hook:
  - CONFVAULT_RELOAD_URL, CONFVAULT_RELOAD_METHOD, CONFVAULT_RELOAD_TIMEOUT
  - CONFVAULT_RELOAD_USERNAME, CONFVAULT_RELOAD_PASSWORD
  - CONFVAULT_RELOAD_BREAKER_FAILURES, CONFVAULT_RELOAD_BREAKER_TIMEOUT
  - CONFVAULT_RELOAD_MIN_INTERVAL

Proxy:
  - CONFVAULT_PROXY_UPSTREAM: configuration server to gate with the lock

Audit trail:
  - CONFVAULT_AUDIT_ENABLED (default true), CONFVAULT_AUDIT_MAX_EVENTS (default 10000)
  - CONFVAULT_AUDIT_RETENTION (default 168h), CONFVAULT_AUDIT_LOG_TO_STDOUT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - LOG_FILE, LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS
*/
package config
