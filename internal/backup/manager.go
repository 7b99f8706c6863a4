// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
manager.go - Task Manager

The Manager owns the task registry and the single worker that executes
tasks in submission order. It is constructed explicitly and handed to
whatever needs it; there is no package-level instance.

Worker:
Serve implements suture.Service. It drains the FIFO queue one task at a
time and waits on a notification channel when the queue is empty. When its
context is canceled the in-flight task is halted and Serve returns; queued
tasks stay queued.

Registry:
Tasks stay visible until they have been terminal for longer than the
retention window. Expired tasks are removed lazily on AddTask, GetTask,
StopTask and CleanupTasks.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tomtom215/confvault/internal/configlock"
	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

// Reloader asks the configuration server to reload the live tree.
type Reloader interface {
	Reload(ctx context.Context) error
}

// HistoryStore persists task snapshots across restarts.
type HistoryStore interface {
	Save(v TaskView) error
	Delete(id string) error
	LoadAll() ([]TaskView, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem the engine operates on. Defaults to the OS.
func WithFs(fsys afero.Fs) Option {
	return func(m *Manager) { m.fs = fsys }
}

// WithReloader sets the hook called after a successful restore.
func WithReloader(r Reloader) Option {
	return func(m *Manager) { m.reloader = r }
}

// WithHistory persists task snapshots in store.
func WithHistory(store HistoryStore) Option {
	return func(m *Manager) { m.history = store }
}

// WithClock replaces time.Now for task timestamps and retention.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager schedules and tracks backup and restore tasks.
type Manager struct {
	cfg      Config
	fs       afero.Fs
	lock     *configlock.Lock
	reloader Reloader
	history  HistoryStore
	now      func() time.Time

	mu    sync.RWMutex
	tasks []*Task

	queueMu sync.Mutex
	queue   []*Task
	notify  chan struct{}
}

// NewManager creates a Manager for the data root in cfg. A nil lock gets a
// private one.
func NewManager(cfg Config, lock *configlock.Lock, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if lock == nil {
		lock = configlock.New()
	}

	m := &Manager{
		cfg:    cfg.withDefaults(),
		fs:     afero.NewOsFs(),
		lock:   lock,
		now:    time.Now,
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.history != nil {
		if err := m.loadHistory(); err != nil {
			return nil, fmt.Errorf("load task history: %w", err)
		}
	}

	return m, nil
}

// String implements fmt.Stringer for supervisor logging.
func (m *Manager) String() string {
	return "task-worker"
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// ConfigLock returns the configuration lock tasks acquire.
func (m *Manager) ConfigLock() *configlock.Lock {
	return m.lock
}

// GenerateID returns a fresh task identifier.
func (m *Manager) GenerateID() string {
	return uuid.New().String()
}

// Serve runs the worker until ctx is canceled.
func (m *Manager) Serve(ctx context.Context) error {
	logging.Info().Str("component", "backup").Str("data_root", m.cfg.DataRoot).Msg("Task worker started")
	defer logging.Info().Str("component", "backup").Msg("Task worker stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t := m.dequeue(); t != nil {
			m.execute(ctx, t)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.notify:
		}
	}
}

func (m *Manager) execute(ctx context.Context, t *Task) {
	if !t.begin() {
		logging.Debug().Str("task_id", t.id).Msg("Skipping task stopped while queued")
		return
	}
	defer t.end()

	logging.Info().
		Str("task_id", t.id).
		Str("kind", string(t.kind)).
		Str("path", t.path).
		Msg("Task started")
	t.run(ctx)
}

func (m *Manager) enqueue(t *Task) {
	m.queueMu.Lock()
	m.queue = append(m.queue, t)
	metrics.TaskQueueDepth.Set(float64(len(m.queue)))
	m.queueMu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Manager) dequeue() *Task {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	t := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	metrics.TaskQueueDepth.Set(float64(len(m.queue)))
	return t
}

// persist saves a snapshot to the history store, if any.
func (m *Manager) persist(v TaskView) {
	if m.history == nil {
		return
	}
	if err := m.history.Save(v); err != nil {
		logging.Warn().Err(err).Str("task_id", v.ID).Msg("Failed to persist task history")
	}
}

// loadHistory registers stored tasks. Tasks that were not terminal when
// the process stopped are marked FAILED.
func (m *Manager) loadHistory() error {
	views, err := m.history.LoadAll()
	if err != nil {
		return err
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Submitted.Before(views[j].Submitted)
	})

	now := m.now()
	for _, v := range views {
		if !v.State.IsTerminal() {
			v.State = StateFailed
			v.Error = "interrupted by shutdown"
			end := now
			v.EndTime = &end
			m.persist(v)
		}
		t := taskFromView(v)
		t.env = m
		m.tasks = append(m.tasks, t)
	}
	metrics.TasksRetained.Set(float64(len(m.tasks)))

	if len(views) > 0 {
		logging.Info().Int("tasks", len(views)).Msg("Loaded task history")
	}
	return nil
}
