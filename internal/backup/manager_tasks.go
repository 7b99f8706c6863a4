// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"context"
	"fmt"

	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

// AddTask registers t, queues it for the worker and returns its ID.
func (m *Manager) AddTask(t *Task) string {
	m.CleanupTasks()

	now := m.now()
	t.mu.Lock()
	t.env = m
	t.submitted = now
	view := t.viewLocked()
	t.mu.Unlock()

	// The QUEUED snapshot is saved before the task can be found, so a
	// concurrent stop always persists after it.
	m.persist(view)

	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	metrics.TasksRetained.Set(float64(len(m.tasks)))
	m.mu.Unlock()
	metrics.TasksSubmitted.WithLabelValues(string(t.kind)).Inc()
	logging.Info().
		Str("task_id", t.id).
		Str("kind", string(t.kind)).
		Str("path", t.path).
		Msg("Task queued")

	m.enqueue(t)
	return t.id
}

// SubmitBackup queues a backup of the data root into path.
func (m *Manager) SubmitBackup(path string, opts BackupOptions) string {
	return m.AddTask(NewBackupTask(m.GenerateID(), path, opts))
}

// SubmitRestore queues a restore of the archive at path.
func (m *Manager) SubmitRestore(path string) string {
	return m.AddTask(NewRestoreTask(m.GenerateID(), path))
}

// StopTask halts a backup and returns once it is terminal. Restores cannot
// be stopped.
func (m *Manager) StopTask(ctx context.Context, id string) error {
	t := m.find(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if t.kind == KindRestore {
		return fmt.Errorf("%w: %s", ErrUnallowedOperation, id)
	}

	m.CleanupTasks()
	logging.Info().Str("task_id", id).Msg("Stop requested")
	return t.stop(ctx)
}

// GetTask returns the task with the given ID.
func (m *Manager) GetTask(id string) (*Task, error) {
	m.CleanupTasks()
	if t := m.find(id); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// GetAllTasks returns every retained task in submission order.
func (m *Manager) GetAllTasks() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// TaskView returns a snapshot of the task with the given ID.
func (m *Manager) TaskView(id string) (TaskView, error) {
	t, err := m.GetTask(id)
	if err != nil {
		return TaskView{}, err
	}
	return t.View(), nil
}

// TaskViews returns snapshots of every retained task in submission order.
func (m *Manager) TaskViews() []TaskView {
	m.CleanupTasks()
	tasks := m.GetAllTasks()
	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = t.View()
	}
	return views
}

func (m *Manager) find(id string) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.id == id {
			return t
		}
	}
	return nil
}

// CleanupTasks drops tasks that have been terminal for longer than the
// retention window.
func (m *Manager) CleanupTasks() {
	now := m.now()

	m.mu.Lock()
	kept := make([]*Task, 0, len(m.tasks))
	var expired []*Task
	for _, t := range m.tasks {
		t.mu.RLock()
		gone := t.state.IsTerminal() && !t.endTime.IsZero() && now.Sub(t.endTime) > m.cfg.Retention
		t.mu.RUnlock()
		if gone {
			expired = append(expired, t)
			continue
		}
		kept = append(kept, t)
	}
	m.tasks = kept
	metrics.TasksRetained.Set(float64(len(kept)))
	m.mu.Unlock()

	for _, t := range expired {
		logging.Debug().Str("task_id", t.id).Msg("Task expired")
		if m.history != nil {
			if err := m.history.Delete(t.id); err != nil {
				logging.Warn().Err(err).Str("task_id", t.id).Msg("Failed to delete task history")
			}
		}
	}
}

// ToXML renders a task in descriptor form.
func (m *Manager) ToXML(t *Task) ([]byte, error) {
	return EncodeDescriptor(DescriptorFromView(t.View()))
}

// FromXML rebuilds a task from its descriptor form. The task is not
// registered and cannot be run.
func (m *Manager) FromXML(data []byte) (*Task, error) {
	d, err := DecodeDescriptor(data)
	if err != nil {
		return nil, err
	}
	t := taskFromView(d.View())
	t.env = m
	return t, nil
}
