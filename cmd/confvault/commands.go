// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8585"

// globalOptions are the persistent flags shared by client commands.
type globalOptions struct {
	server string
	json   bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "confvault",
		Short: "Transactional backup and restore of a configuration data directory",
		Long: `Confvault runs backup and restore tasks against a live configuration
directory. Tasks run one at a time and either complete or leave the
directory exactly as they found it.`,
		SilenceUsage: true,
	}

	server := os.Getenv("CONFVAULT_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "Confvault server URL (env CONFVAULT_SERVER)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON instead of text")

	root.AddCommand(
		newServeCmd(),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newStopCmd(opts),
		newLockCmd(opts),
	)
	return root
}
