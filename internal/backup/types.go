// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"time"
)

// Kind discriminates backup tasks from restore tasks.
type Kind string

const (
	// KindBackup copies the live data root into an archive directory.
	KindBackup Kind = "backup"

	// KindRestore replaces the live data root with an archive.
	KindRestore Kind = "restore"
)

// State is a task's lifecycle state.
type State string

const (
	// StateQueued indicates the task is waiting for the worker.
	StateQueued State = "QUEUED"

	// StateStarting indicates the transaction has started but the copy has
	// not been dispatched yet.
	StateStarting State = "STARTING"

	// StateRunning indicates files are being copied.
	StateRunning State = "RUNNING"

	// StateCompleted indicates the transaction committed.
	StateCompleted State = "COMPLETED"

	// StateFailed indicates the transaction was rolled back or could not
	// commit.
	StateFailed State = "FAILED"

	// StateStopped indicates a backup was halted on request.
	StateStopped State = "STOPPED"
)

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateStopped:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateStarting, StateRunning, StateCompleted, StateFailed, StateStopped:
		return true
	default:
		return false
	}
}

// BackupOptions selects which optional subtrees of the data root are
// included. The same flags are recorded in the descriptor and applied
// again on restore.
type BackupOptions struct {
	IncludeData bool `json:"include_data"`
	IncludeGWC  bool `json:"include_gwc"`
	IncludeLog  bool `json:"include_log"`
}

// TaskView is a read-only snapshot of a task.
type TaskView struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	State     State      `json:"state"`
	Path      string     `json:"path"`
	Progress  float64    `json:"progress"`
	Submitted time.Time  `json:"submitted"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`

	BackupOptions
}

// Duration returns the time between start and end, or zero if the task has
// not both started and ended.
func (v TaskView) Duration() time.Duration {
	if v.StartTime == nil || v.EndTime == nil {
		return 0
	}
	return v.EndTime.Sub(*v.StartTime)
}
