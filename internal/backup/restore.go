// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
restore.go - Restore Transaction

Restore replaces the live data root with an archive using rename-aside:

 1. Start takes the read lock and renames every live top-level entry that
    the restore will replace to "<name>.backup".
 2. The archive is copied into the data root.
 3. Commit deletes the ".backup" entries.
 4. Rollback deletes whatever the copy produced and renames the ".backup"
    entries back, leaving the data root as it was before the restore.

Entries excluded by the archive's include flags are never touched.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tomtom215/confvault/internal/configlock"
	"github.com/tomtom215/confvault/internal/logging"
)

// asideSuffix marks a live entry renamed out of the way by a restore.
const asideSuffix = ".backup"

type restoreTransaction struct {
	txBase

	// renamed lists the top-level names moved aside by Start, in order.
	renamed []string
	// copied is set once the archive copy may have written to the live root.
	copied bool
}

// topLevelEntries returns the names in the live root that take part in the
// restore. The filter skips leftover aside entries.
func (tx *restoreTransaction) topLevelEntries() ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(tx.fs, tx.dst)
	if err != nil {
		return nil, err
	}
	var out []os.FileInfo
	for _, e := range entries {
		if !tx.filter.Accept(e.Name(), e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (tx *restoreTransaction) Start(ctx context.Context) error {
	if err := tx.acquire(ctx, configlock.ModeRead); err != nil {
		return err
	}
	tx.task.setState(StateStarting)
	tx.task.markStarted()

	entries, err := tx.topLevelEntries()
	if err != nil {
		return txError(tx.task.kind, PhaseStart, fmt.Errorf("list data root: %w", err))
	}

	for _, e := range entries {
		live := filepath.Join(tx.dst, e.Name())
		aside := live + asideSuffix
		if err := tx.fs.RemoveAll(aside); err != nil {
			return txError(tx.task.kind, PhaseStart, fmt.Errorf("clear %s: %w", aside, err))
		}
		if err := tx.fs.Rename(live, aside); err != nil {
			return txError(tx.task.kind, PhaseStart, fmt.Errorf("move %s aside: %w", live, err))
		}
		tx.renamed = append(tx.renamed, e.Name())
	}

	logging.Ctx(ctx).Info().
		Str("src", tx.src).
		Str("dst", tx.dst).
		Strs("moved_aside", tx.renamed).
		Msg("Restore transaction started")
	return nil
}

func (tx *restoreTransaction) Commit() error {
	for _, name := range tx.renamed {
		aside := filepath.Join(tx.dst, name) + asideSuffix
		if err := tx.fs.RemoveAll(aside); err != nil {
			cause := txError(tx.task.kind, PhaseCommit, fmt.Errorf("remove %s: %w", aside, err))
			tx.task.finish(StateFailed, cause)
			tx.release()
			return cause
		}
	}
	tx.task.finish(StateCompleted, nil)
	tx.release()
	return nil
}

func (tx *restoreTransaction) Rollback(final State, cause error) {
	tx.logRollback(cause)

	moved := make(map[string]bool, len(tx.renamed))
	for _, name := range tx.renamed {
		moved[name] = true
	}

	if tx.copied {
		// Every accepted top-level entry now present came from the archive.
		entries, err := tx.topLevelEntries()
		if err != nil {
			logging.Error().Err(err).Str("task_id", tx.task.id).Msg("Failed to list data root during rollback")
		}
		for _, e := range entries {
			path := filepath.Join(tx.dst, e.Name())
			if err := tx.fs.RemoveAll(path); err != nil {
				logging.Error().Err(err).Str("task_id", tx.task.id).Str("path", path).Msg("Failed to remove restored entry")
			}
		}
	}

	if !moved[DescriptorFile] {
		descriptor := filepath.Join(tx.dst, DescriptorFile)
		if err := tx.fs.Remove(descriptor); err != nil && !os.IsNotExist(err) {
			logging.Error().Err(err).Str("task_id", tx.task.id).Str("path", descriptor).Msg("Failed to remove descriptor")
		}
	}

	for _, name := range tx.renamed {
		live := filepath.Join(tx.dst, name)
		if err := tx.fs.RemoveAll(live); err != nil {
			logging.Error().Err(err).Str("task_id", tx.task.id).Str("path", live).Msg("Failed to clear restored entry")
		}
		if err := tx.fs.Rename(live+asideSuffix, live); err != nil {
			logging.Error().Err(err).Str("task_id", tx.task.id).Str("path", live).Msg("Failed to move entry back")
		}
	}

	tx.task.finish(final, cause)
	tx.release()
}

func (t *Task) runRestore(ctx context.Context) {
	d, err := ReadDescriptor(t.env.fs, t.path)
	if err != nil {
		t.finish(StateFailed, txError(t.kind, PhaseDescriptor, err))
		return
	}
	t.setOptions(d.Options())

	tx := &restoreTransaction{txBase: txBase{
		task:   t,
		fs:     t.env.fs,
		src:    t.path,
		dst:    t.env.cfg.DataRoot,
		filter: NewExclusionFilter(d.Options()),
	}}
	t.setTx(tx)

	if err := t.restore(ctx, tx); err != nil {
		// A halted restore cannot be left half applied.
		tx.Rollback(StateFailed, err)
		return
	}
	if err := tx.Commit(); err != nil {
		return
	}

	if t.env.reloader != nil {
		if err := t.env.reloader.Reload(ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Configuration reload after restore failed")
		}
	}
}

// restore performs everything up to the commit.
func (t *Task) restore(ctx context.Context, tx *restoreTransaction) error {
	if err := tx.Start(ctx); err != nil {
		return err
	}
	if t.checkForHalt(ctx) {
		return ErrHaltRequested
	}
	tx.copied = true
	return t.copyTree(ctx, tx.src, tx.dst, tx.filter.RestoreFilter(), t.markStarted)
}
