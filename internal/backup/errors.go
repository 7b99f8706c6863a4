// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"errors"
	"fmt"

	"github.com/tomtom215/confvault/internal/treecopy"
)

var (
	// ErrTaskNotFound is returned when no task has the requested ID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnallowedOperation is returned when stopping a restore task.
	ErrUnallowedOperation = errors.New("operation not allowed on restore tasks")

	// ErrHaltRequested is the cause recorded for a task halted by StopTask
	// or by worker shutdown.
	ErrHaltRequested = errors.New("halt requested")

	// ErrShutdownTimeout is returned when copy workers do not stop within
	// the configured halt timeout.
	ErrShutdownTimeout = treecopy.ErrShutdownTimeout

	// ErrDescriptorMissing is returned when an archive has no backup.xml.
	ErrDescriptorMissing = errors.New("backup descriptor missing")
)

// Phase names the transaction step a failure happened in.
type Phase string

const (
	PhaseStart      Phase = "start"
	PhaseCopy       Phase = "copy"
	PhaseDescriptor Phase = "descriptor"
	PhaseCommit     Phase = "commit"
	PhaseRun        Phase = "run"
)

// TransactionError is the failure recorded on a FAILED task.
type TransactionError struct {
	Kind  Kind
	Phase Phase
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Phase, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

func txError(kind Kind, phase Phase, err error) error {
	return &TransactionError{Kind: kind, Phase: phase, Err: err}
}
