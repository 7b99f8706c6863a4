// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package audit records who changed the configuration data directory.

Every task submission and stop request is recorded with its outcome, the
client address and the request id. Configuration lock transitions are
recorded too, so the trail shows when configuration writes were blocked
and by which task.

Events are written asynchronously: Log never blocks the caller. A full
buffer drops the event with a warning. The Logger is a suture.Service
whose Serve loop persists buffered events and expires old ones.

Events are held in a bounded in-memory ring (MemoryStore) and exposed at
GET /api/v1/bkprst/audit.
*/
package audit
