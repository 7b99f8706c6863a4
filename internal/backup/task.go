// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
task.go - Task State and Halt Protocol

A Task is created QUEUED, wired to a Manager by AddTask, and then driven
by the manager's single worker. All observable fields are guarded by the
task mutex; Views are copied out under it.

Halt protocol:
  - The worker claims a task in begin(), which also takes the task's
    single-permit semaphore. The permit is released only after the run has
    reached a terminal state.
  - stop() raises the halt flag. A task still waiting in the queue is
    claimed by stop() itself and finished STOPPED; the worker then skips
    it. Otherwise stop() blocks on the semaphore until the worker lets go.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

// Task is one backup or restore job.
type Task struct {
	id   string
	kind Kind
	path string

	env *Manager

	mu         sync.RWMutex
	state      State
	opts       BackupOptions
	submitted  time.Time
	startTime  time.Time
	endTime    time.Time
	progress   float64
	errMsg     string
	dispatched bool
	tx         transaction

	halt     atomic.Bool
	haltCh   chan struct{}
	haltOnce sync.Once
	running  *semaphore.Weighted
}

func newTask(id string, kind Kind, path string, opts BackupOptions) *Task {
	return &Task{
		id:      id,
		kind:    kind,
		path:    path,
		state:   StateQueued,
		opts:    opts,
		haltCh:  make(chan struct{}),
		running: semaphore.NewWeighted(1),
	}
}

// NewBackupTask creates a queued backup of the data root into path.
func NewBackupTask(id, path string, opts BackupOptions) *Task {
	return newTask(id, KindBackup, path, opts)
}

// NewRestoreTask creates a queued restore of the archive at path. Its
// include flags are taken from the archive descriptor when it runs.
func NewRestoreTask(id, path string) *Task {
	return newTask(id, KindRestore, path, BackupOptions{})
}

// taskFromView rebuilds a finished task from a snapshot. The task is
// marked dispatched so it can never be run.
func taskFromView(v TaskView) *Task {
	t := newTask(v.ID, v.Kind, v.Path, v.BackupOptions)
	t.state = v.State
	t.submitted = v.Submitted
	t.progress = v.Progress
	t.errMsg = v.Error
	t.dispatched = true
	if v.StartTime != nil {
		t.startTime = *v.StartTime
	}
	if v.EndTime != nil {
		t.endTime = *v.EndTime
	}
	return t
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// Kind returns whether this is a backup or a restore.
func (t *Task) Kind() Kind { return t.kind }

// Path returns the archive directory.
func (t *Task) Path() string { return t.path }

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Progress returns the copied fraction in [0,1].
func (t *Task) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// StartTime returns when the task started, or the zero time.
func (t *Task) StartTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startTime
}

// EndTime returns when the task reached a terminal state, or the zero time.
func (t *Task) EndTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endTime
}

// View returns a snapshot of the task.
func (t *Task) View() TaskView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.viewLocked()
}

func (t *Task) viewLocked() TaskView {
	v := TaskView{
		ID:            t.id,
		Kind:          t.kind,
		State:         t.state,
		Path:          t.path,
		Progress:      t.progress,
		Submitted:     t.submitted,
		Error:         t.errMsg,
		BackupOptions: t.opts,
	}
	if !t.startTime.IsZero() {
		start := t.startTime
		v.StartTime = &start
	}
	if !t.endTime.IsZero() {
		end := t.endTime
		v.EndTime = &end
	}
	return v
}

func (t *Task) now() time.Time {
	if t.env != nil {
		return t.env.now()
	}
	return time.Now()
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = s
}

func (t *Task) markStarted() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = now
}

func (t *Task) setProgress(p float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p > t.progress {
		t.progress = p
	}
}

func (t *Task) setOptions(opts BackupOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts = opts
}

func (t *Task) options() BackupOptions {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.opts
}

func (t *Task) setTx(tx transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tx = tx
}

func (t *Task) currentTx() transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tx
}

// finish moves the task to a terminal state. It reports false if the task
// was already terminal.
func (t *Task) finish(state State, cause error) bool {
	now := t.now()

	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	t.state = state
	t.endTime = now
	if state == StateFailed && cause != nil {
		t.errMsg = cause.Error()
	}
	view := t.viewLocked()
	t.mu.Unlock()

	metrics.RecordTaskFinished(string(t.kind), string(state), view.Duration())

	event := logging.Info()
	if state == StateFailed {
		event = logging.Error().Err(cause)
	}
	event.
		Str("task_id", t.id).
		Str("kind", string(t.kind)).
		Str("state", string(state)).
		Str("path", t.path).
		Dur("duration", view.Duration()).
		Msg("Task finished")

	if t.env != nil {
		t.env.persist(view)
	}
	return true
}

// requestHalt raises the halt flag and wakes a worker waiting on copies.
func (t *Task) requestHalt() {
	t.halt.Store(true)
	t.haltOnce.Do(func() { close(t.haltCh) })
}

// checkForHalt reports whether the run should stop: either a halt was
// requested or the worker is shutting down.
func (t *Task) checkForHalt(ctx context.Context) bool {
	return t.halt.Load() || ctx.Err() != nil
}

// begin claims the task for the worker. It reports false if the task was
// stopped while queued.
func (t *Task) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dispatched || t.state != StateQueued {
		return false
	}
	t.dispatched = true
	// Only the worker ever takes the permit, so this cannot fail.
	t.running.TryAcquire(1)
	return true
}

// end returns the permit taken by begin.
func (t *Task) end() {
	t.running.Release(1)
}

// stop halts the task and returns once it is terminal.
func (t *Task) stop(ctx context.Context) error {
	t.requestHalt()

	t.mu.Lock()
	queued := !t.dispatched && t.state == StateQueued
	if queued {
		t.dispatched = true
	}
	t.mu.Unlock()

	if queued {
		t.finish(StateStopped, ErrHaltRequested)
		return nil
	}

	if err := t.running.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for task %s to halt: %w", t.id, err)
	}
	t.running.Release(1)
	return nil
}

// run executes the task on the calling goroutine. It never panics and
// always leaves the task terminal.
func (t *Task) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := txError(t.kind, PhaseRun, fmt.Errorf("panic: %v", r))
			logging.Error().Str("task_id", t.id).Interface("panic", r).Msg("Task run panicked")
			t.abandon(err)
			t.finish(StateFailed, err)
		}
	}()

	ctx = logging.ContextWithTaskID(ctx, t.id)
	switch t.kind {
	case KindBackup:
		t.runBackup(ctx)
	case KindRestore:
		t.runRestore(ctx)
	default:
		t.finish(StateFailed, txError(t.kind, PhaseRun, fmt.Errorf("unknown task kind %q", t.kind)))
	}

	if !t.State().IsTerminal() {
		t.finish(StateFailed, txError(t.kind, PhaseRun, errors.New("run ended without reaching a terminal state")))
	}
}

// abandon undoes the transaction of a panicked run. A task that already
// reached a terminal state only gives up the lock. A panic inside Rollback
// is logged and the lock is still released.
func (t *Task) abandon(cause error) {
	tx := t.currentTx()
	if tx == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("task_id", t.id).Interface("panic", r).Msg("Rollback after panic failed")
		}
		tx.release()
	}()
	if !t.State().IsTerminal() {
		tx.Rollback(StateFailed, cause)
	}
}
