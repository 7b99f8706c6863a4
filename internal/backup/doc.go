// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

// Package backup implements the backup and restore task engine for a
// configuration data directory.
//
// The engine runs tasks strictly one at a time on a single worker owned by
// the Manager. A task is either a Backup, which copies the live data root
// into an archive directory and writes a backup.xml descriptor next to the
// copied files, or a Restore, which replaces the live data root with the
// contents of an archive.
//
// Task Lifecycle:
//
//	QUEUED ──▶ STARTING ──▶ RUNNING ──▶ COMPLETED
//	   │           │            │
//	   │           └────────────┴─────▶ FAILED
//	   └───────────────────────────────▶ STOPPED (backups only)
//
// Every run is wrapped in a transaction. Start acquires the configuration
// lock (write mode for backups, read mode for restores), Commit finalizes
// the file operations and releases it, Rollback undoes them and releases it.
// The lock guard is released on every exit path, including panics.
//
// Restore is built on rename-aside: each live top-level entry the restore
// will replace is renamed to "<name>.backup" before the archive is copied
// in. Commit deletes the renamed entries, Rollback deletes what the copy
// produced and renames them back.
//
// Halting:
//
// Manager.StopTask on a backup sets the task's halt flag and blocks until
// the worker has finished with the task. The worker checks the flag between
// file completions; a halted backup is rolled back and ends STOPPED.
// Restores cannot be stopped through the API, but a restore interrupted by
// worker shutdown is fully rolled back and ends FAILED.
//
// Usage:
//
//	mgr, err := backup.NewManager(backup.Config{
//	    DataRoot:  "/var/lib/geoserver/data",
//	    Retention: 10 * time.Minute,
//	}, configlock.New())
//	go mgr.Serve(ctx)
//
//	id := mgr.SubmitBackup("/archives/2026-10-16", backup.BackupOptions{IncludeLog: true})
//	task, err := mgr.GetTask(id)
package backup
