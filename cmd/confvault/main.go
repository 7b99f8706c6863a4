// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

// Package main is the entry point for the confvault binary.
//
// Confvault backs up and restores a configuration data directory as a
// queue of transactional tasks. A single worker runs one task at a time
// while a configuration lock keeps writers away from the data root. A
// backup that fails or is stopped leaves no partial archive behind. A
// restore that fails rolls the data root back to its previous contents.
//
// # Commands
//
//	confvault serve                      run the task engine and HTTP API
//	confvault backup <archive-dir>       queue a backup
//	confvault restore <archive-dir>      queue a restore
//	confvault status <task-id>           show one task
//	confvault list                       list retained tasks
//	confvault stop <task-id>             halt a backup
//	confvault lock                       show the configuration lock
//
// Client commands talk to the server named by --server or CONFVAULT_SERVER.
//
// # Configuration
//
// The server loads configuration via Koanf v2 (highest priority wins):
//   - Environment variables (CONFVAULT_*, LOG_*)
//   - Config file (--config, CONFVAULT_CONFIG, or ./confvault.yaml)
//   - Built-in defaults
//
// The only required setting is CONFVAULT_DATA_ROOT.
//
// # Signal Handling
//
// serve shuts down gracefully on SIGINT and SIGTERM. A running backup is
// halted and its archive removed. A running restore is rolled back.
package main

import (
	"os"

	"github.com/tomtom215/confvault/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Debug().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
