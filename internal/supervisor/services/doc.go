// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package services provides suture.Service wrappers for Confvault components.

Each wrapper translates a component's lifecycle into suture's
Serve(ctx) error pattern and implements fmt.Stringer so supervisor logs
name the service.

  - HTTPServerService: *http.Server with listen, serve and graceful shutdown
  - RetentionService: periodic expiry of finished tasks and history GC

The task worker needs no wrapper: backup.Manager implements Serve itself.
*/
package services
