// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package configlock guards the live configuration tree while a backup or
restore task is running.

A task calls Lock.Acquire with the mode it needs and receives a Guard. The
guard is released exactly once no matter how many times Release is called,
so every exit path of a task (commit, rollback, halt, panic recovery) can
release it unconditionally.

Modes:

  - ModeWrite: held by backups. Writers to the configuration are rejected,
    readers are served.
  - ModeRead: held by restores. Every request to the configuration is
    rejected because the tree is being replaced underneath it.

Middleware applies this policy to HTTP traffic and answers 423 Locked for
requests the current mode does not admit. Only one guard exists at a time;
Acquire blocks until the previous holder releases.
*/
package configlock
