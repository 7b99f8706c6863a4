// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package api exposes the backup/restore task engine over HTTP using the Chi router.

# Endpoints

Task API (exempt from the configuration lock gate):

	POST   /api/v1/bkprst/backup        queue a backup, 201 {"id": ...}
	POST   /api/v1/bkprst/restore       queue a restore, 201 {"id": ...}
	GET    /api/v1/bkprst               list retained tasks
	GET    /api/v1/bkprst/lock          configuration lock status
	GET    /api/v1/bkprst/audit         audit trail (type, task_id, request_id, limit)
	GET    /api/v1/bkprst/{id}          task view (XML descriptor with Accept: application/xml)
	DELETE /api/v1/bkprst/{id}          stop a task
	DELETE /api/v1/bkprst/backup/{id}   stop a backup
	DELETE /api/v1/bkprst/restore/{id}  always 409, restores cannot be stopped

Operations:

	GET /api/v1/health/live
	GET /api/v1/health/ready
	GET /metrics

When an upstream configuration server is configured, every other path is
reverse-proxied to it behind configlock.Middleware, so configuration
changes are rejected with 423 Locked while a task holds the lock.

# Response Format

JSON responses use a common envelope:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "..."}
	}

Errors carry a machine-readable code:

	{
	  "status": "error",
	  "error": {"code": "TASK_NOT_FOUND", "message": "..."},
	  "metadata": {...}
	}

Task IDs that are not UUIDs are reported as TASK_NOT_FOUND.
*/
package api
