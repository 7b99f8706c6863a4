// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package supervisor runs Confvault's long-lived components under a suture v4
supervisor tree.

The tree has two layers so that a crash in one does not take the other down:

	confvault
	├── engine-layer   task worker (backup.Manager), retention sweeper
	└── api-layer      HTTP server

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog into the zerolog-backed slog adapter from the logging package.

Shutdown cancels the root context. The task worker treats that as a halt
request for the running task, and the HTTP server drains connections for
up to its shutdown timeout.
*/
package supervisor
