// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/backup"
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTask(w io.Writer, g *globalOptions, v backup.TaskView) error {
	if g.json {
		return printJSON(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	fmt.Fprintf(tw, "Kind:\t%s\n", v.Kind)
	fmt.Fprintf(tw, "State:\t%s\n", v.State)
	fmt.Fprintf(tw, "Path:\t%s\n", v.Path)
	fmt.Fprintf(tw, "Progress:\t%.1f%%\n", v.Progress)
	fmt.Fprintf(tw, "Options:\tdata=%t gwc=%t log=%t\n", v.IncludeData, v.IncludeGWC, v.IncludeLog)
	fmt.Fprintf(tw, "Started:\t%s\n", formatTime(v.StartTime))
	fmt.Fprintf(tw, "Ended:\t%s\n", formatTime(v.EndTime))
	if v.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", v.Error)
	}
	return tw.Flush()
}

func printTasks(w io.Writer, g *globalOptions, views []backup.TaskView) error {
	if g.json {
		return printJSON(w, views)
	}
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "no tasks")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATE\tPROGRESS\tPATH")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\t%s\n", v.ID, v.Kind, v.State, v.Progress, v.Path)
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
