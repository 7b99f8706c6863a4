// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/tomtom215/confvault/internal/configlock"
	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
	"github.com/tomtom215/confvault/internal/treecopy"
)

// transaction wraps the file operations of one run.
type transaction interface {
	// Start acquires the configuration lock and prepares the trees.
	Start(ctx context.Context) error
	// Commit finalizes the run. On failure the task is already FAILED and
	// the lock released.
	Commit() error
	// Rollback undoes the run, moves the task to final and releases the
	// lock. Errors are logged, never returned.
	Rollback(final State, cause error)
	// release releases the lock if held.
	release()
}

type txBase struct {
	task   *Task
	fs     afero.Fs
	src    string
	dst    string
	filter ExclusionFilter
	guard  *configlock.Guard
}

// acquire waits for the configuration lock. A halt request ends the wait
// with ErrHaltRequested.
func (tx *txBase) acquire(ctx context.Context, mode configlock.Mode) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-tx.task.haltCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	g, err := tx.task.env.lock.Acquire(waitCtx, mode, tx.task.id)
	if err != nil {
		if tx.task.checkForHalt(ctx) {
			return ErrHaltRequested
		}
		return txError(tx.task.kind, PhaseStart, err)
	}
	tx.guard = g
	return nil
}

func (tx *txBase) release() {
	tx.guard.Release()
}

func (tx *txBase) logRollback(cause error) {
	metrics.TransactionRollbacks.WithLabelValues(string(tx.task.kind)).Inc()
	event := logging.Error().Err(cause)
	if errors.Is(cause, ErrHaltRequested) {
		event = logging.Info()
	}
	event.
		Str("task_id", tx.task.id).
		Str("kind", string(tx.task.kind)).
		Str("src", tx.src).
		Str("dst", tx.dst).
		Msg("Rolling back transaction")
}

// copyTree copies src to dst with the configured worker pool, checking for a
// halt after every completed file. onDispatched runs once the copy is
// underway. A halt returns ErrHaltRequested, or a ShutdownTimeout failure if
// the workers do not stop in time.
func (t *Task) copyTree(ctx context.Context, src, dst string, filter treecopy.Filter, onDispatched func()) error {
	cfg := t.env.cfg
	c := treecopy.New(t.env.fs, src, dst, filter, treecopy.WithWorkers(cfg.CopyWorkers))
	c.OnProgress(t.setProgress)

	// Copies are stopped through Shutdown so the halt timeout applies.
	n, err := c.Start(context.WithoutCancel(ctx))
	if err != nil {
		return txError(t.kind, PhaseCopy, err)
	}

	t.setState(StateRunning)
	if onDispatched != nil {
		onDispatched()
	}
	logging.Ctx(ctx).Info().
		Str("src", src).
		Str("dst", dst).
		Int("files", n).
		Msg("Copy dispatched")

	results := c.Results()
	for i := 0; i < n; i++ {
		var res treecopy.Result
		select {
		case res = <-results:
		case <-t.haltCh:
			return t.haltCopy(ctx, c)
		case <-ctx.Done():
			return t.haltCopy(ctx, c)
		}

		if res.Err != nil {
			if err := c.Shutdown(cfg.HaltTimeout); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Copy workers still running after failure")
			}
			return txError(t.kind, PhaseCopy, fmt.Errorf("copy %s: %w", res.Path, res.Err))
		}
		if t.checkForHalt(ctx) {
			return t.haltCopy(ctx, c)
		}
	}
	return nil
}

func (t *Task) haltCopy(ctx context.Context, c *treecopy.Copier) error {
	logging.Ctx(ctx).Info().Msg("Halt requested, stopping copy workers")
	if err := c.Shutdown(t.env.cfg.HaltTimeout); err != nil {
		return txError(t.kind, PhaseCopy, err)
	}
	return ErrHaltRequested
}
