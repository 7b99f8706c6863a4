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
)

// backupTransaction holds the write lock while the data root is copied to
// the archive directory. Rollback removes the archive directory.
type backupTransaction struct {
	txBase
}

func (tx *backupTransaction) Start(ctx context.Context) error {
	if err := tx.acquire(ctx, configlock.ModeWrite); err != nil {
		return err
	}
	tx.task.setState(StateStarting)
	tx.task.markStarted()
	logging.Ctx(ctx).Info().Str("src", tx.src).Str("dst", tx.dst).Msg("Backup transaction started")
	return nil
}

func (tx *backupTransaction) Commit() error {
	tx.task.finish(StateCompleted, nil)
	tx.release()
	return nil
}

func (tx *backupTransaction) Rollback(final State, cause error) {
	tx.logRollback(cause)
	if err := tx.fs.RemoveAll(tx.dst); err != nil {
		logging.Error().Err(err).Str("task_id", tx.task.id).Str("path", tx.dst).Msg("Failed to remove partial backup")
	}
	tx.task.finish(final, cause)
	tx.release()
}

func (t *Task) runBackup(ctx context.Context) {
	opts := t.options()
	tx := &backupTransaction{txBase{
		task:   t,
		fs:     t.env.fs,
		src:    t.env.cfg.DataRoot,
		dst:    t.path,
		filter: NewExclusionFilter(opts),
	}}
	t.setTx(tx)

	if err := t.backup(ctx, tx); err != nil {
		final := StateFailed
		if errors.Is(err, ErrHaltRequested) {
			final = StateStopped
		}
		tx.Rollback(final, err)
		return
	}
	tx.Commit() //nolint:errcheck // backup commit cannot fail
}

// backup performs everything up to the commit.
func (t *Task) backup(ctx context.Context, tx *backupTransaction) error {
	exists, err := afero.Exists(tx.fs, tx.dst)
	if err != nil {
		return txError(t.kind, PhaseStart, err)
	}
	if exists {
		if err := tx.fs.RemoveAll(tx.dst); err != nil {
			return txError(t.kind, PhaseStart, fmt.Errorf("remove existing archive: %w", err))
		}
	}

	if err := tx.Start(ctx); err != nil {
		return err
	}
	if t.checkForHalt(ctx) {
		return ErrHaltRequested
	}

	if err := t.copyTree(ctx, tx.src, tx.dst, tx.filter.Accept, nil); err != nil {
		return err
	}

	if err := WriteDescriptor(tx.fs, tx.dst, DescriptorFromView(t.View())); err != nil {
		return txError(t.kind, PhaseDescriptor, err)
	}
	return nil
}
