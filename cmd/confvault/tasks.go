// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/client"
)

// waitOptions controls polling for a submitted task.
type waitOptions struct {
	wait     bool
	interval time.Duration
}

func (w *waitOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&w.wait, "wait", "w", false, "Wait for the task to finish and exit non-zero unless it completed")
	cmd.Flags().DurationVar(&w.interval, "poll-interval", time.Second, "Polling interval used with --wait")
}

func newBackupCmd(g *globalOptions) *cobra.Command {
	var (
		req  client.BackupRequest
		wait waitOptions
	)

	cmd := &cobra.Command{
		Use:   "backup <archive-dir>",
		Short: "Queue a backup of the data root into archive-dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Path = args[0]
			c := client.New(g.server)
			id, err := c.SubmitBackup(cmd.Context(), req)
			if err != nil {
				return err
			}
			return afterSubmit(cmd, c, g, id, wait)
		},
	}

	cmd.Flags().BoolVar(&req.IncludeData, "include-data", false, "Include the data/ subtree")
	cmd.Flags().BoolVar(&req.IncludeGWC, "include-gwc", false, "Include the gwc/ tile cache subtree")
	cmd.Flags().BoolVar(&req.IncludeLog, "include-log", false, "Include the logs/ subtree")
	wait.register(cmd)
	return cmd
}

func newRestoreCmd(g *globalOptions) *cobra.Command {
	var wait waitOptions

	cmd := &cobra.Command{
		Use:   "restore <archive-dir>",
		Short: "Queue a restore of archive-dir over the data root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(g.server)
			id, err := c.SubmitRestore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return afterSubmit(cmd, c, g, id, wait)
		},
	}

	wait.register(cmd)
	return cmd
}

func afterSubmit(cmd *cobra.Command, c *client.Client, g *globalOptions, id string, wait waitOptions) error {
	if !wait.wait {
		if g.json {
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	}

	view, err := waitForTask(cmd.Context(), c, id, wait.interval)
	if err != nil {
		return err
	}
	if err := printTask(cmd.OutOrStdout(), g, view); err != nil {
		return err
	}
	if view.State != backup.StateCompleted {
		return fmt.Errorf("task %s ended %s", id, view.State)
	}
	return nil
}

// waitForTask polls until the task reaches a terminal state.
func waitForTask(ctx context.Context, c *client.Client, id string, interval time.Duration) (backup.TaskView, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := c.Get(ctx, id)
		if err != nil {
			return backup.TaskView{}, err
		}
		if view.State.IsTerminal() {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := client.New(g.server).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTask(cmd.OutOrStdout(), g, view)
		},
	}
}

func newListCmd(g *globalOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List retained tasks in submission order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch backup.Kind(kind) {
			case "", backup.KindBackup, backup.KindRestore:
			default:
				return fmt.Errorf("--kind must be %q or %q", backup.KindBackup, backup.KindRestore)
			}
			views, err := client.New(g.server).List(cmd.Context(), backup.Kind(kind))
			if err != nil {
				return err
			}
			return printTasks(cmd.OutOrStdout(), g, views)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only list tasks of this kind (backup or restore)")
	return cmd
}

func newStopCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Halt a backup and wait until it has stopped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := client.New(g.server).Stop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printTask(cmd.OutOrStdout(), g, view)
		},
	}
}

func newLockCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Show the configuration lock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := client.New(g.server).Lock(cmd.Context())
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), status)
			}
			if !status.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s lock held by %s", status.Mode, status.Holder)
			if status.Since != nil {
				fmt.Fprintf(cmd.OutOrStdout(), " since %s", status.Since.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
