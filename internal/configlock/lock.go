// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package configlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

// Mode is the kind of exclusion a guard imposes on configuration traffic.
type Mode int

const (
	// ModeWrite rejects configuration writes and admits reads.
	ModeWrite Mode = iota + 1

	// ModeRead rejects all configuration traffic.
	ModeRead
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeRead:
		return "read"
	default:
		return "none"
	}
}

// EventType identifies a lock transition reported to an Observer.
type EventType string

const (
	EventAcquired EventType = "acquired"
	EventReleased EventType = "released"
)

// Event describes one lock transition.
type Event struct {
	Type   EventType
	Mode   Mode
	Holder string
	At     time.Time
}

// Observer receives lock transitions synchronously, in order.
type Observer func(Event)

// Status is a point-in-time snapshot of the lock.
type Status struct {
	Enabled bool       `json:"enabled"`
	Mode    string     `json:"mode"`
	Holder  string     `json:"holder,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

// Lock is the configuration lock. The zero value is not usable; call New.
type Lock struct {
	sem *semaphore.Weighted

	mu       sync.RWMutex
	enabled  bool
	mode     Mode
	holder   string
	since    time.Time
	observer Observer
}

// New creates an unlocked Lock.
func New() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// SetObserver installs fn as the transition observer. Pass nil to remove it.
func (l *Lock) SetObserver(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = fn
}

// Acquire blocks until the lock is free, then enables it in the given mode
// on behalf of holder. The returned guard must be released.
func (l *Lock) Acquire(ctx context.Context, mode Mode, holder string) (*Guard, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid lock mode %d", mode)
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire config lock: %w", err)
	}

	return l.enable(mode, holder), nil
}

// TryAcquire is Acquire without waiting. It reports false if the lock is held.
func (l *Lock) TryAcquire(mode Mode, holder string) (*Guard, bool) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, false
	}
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	return l.enable(mode, holder), true
}

// enable records the new holder. The caller owns the semaphore permit.
func (l *Lock) enable(mode Mode, holder string) *Guard {
	now := time.Now()
	l.mu.Lock()
	l.enabled = true
	l.mode = mode
	l.holder = holder
	l.since = now
	observer := l.observer
	l.mu.Unlock()

	metrics.ConfigLockHeld.WithLabelValues(mode.String()).Set(1)
	logging.Debug().
		Str("component", "configlock").
		Str("mode", mode.String()).
		Str("holder", holder).
		Msg("Configuration lock acquired")
	if observer != nil {
		observer(Event{Type: EventAcquired, Mode: mode, Holder: holder, At: now})
	}

	return &Guard{lock: l, mode: mode, holder: holder}
}

func (l *Lock) release(mode Mode, holder string) {
	now := time.Now()
	l.mu.Lock()
	l.enabled = false
	l.mode = 0
	l.holder = ""
	l.since = time.Time{}
	observer := l.observer
	l.mu.Unlock()

	metrics.ConfigLockHeld.WithLabelValues(mode.String()).Set(0)
	logging.Debug().
		Str("component", "configlock").
		Str("mode", mode.String()).
		Str("holder", holder).
		Msg("Configuration lock released")
	if observer != nil {
		observer(Event{Type: EventReleased, Mode: mode, Holder: holder, At: now})
	}

	l.sem.Release(1)
}

// Status returns a snapshot of the lock state.
func (l *Lock) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := Status{
		Enabled: l.enabled,
		Mode:    l.mode.String(),
		Holder:  l.holder,
	}
	if l.enabled {
		since := l.since
		st.Since = &since
	}
	return st
}

// Admits reports whether a request of the given class may proceed right now.
func (l *Lock) Admits(write bool) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.enabled {
		return true
	}
	if l.mode == ModeRead {
		return false
	}
	return !write
}

// Guard is the proof of holding the lock.
type Guard struct {
	lock   *Lock
	mode   Mode
	holder string
	once   sync.Once
}

// Mode returns the mode the guard was acquired in.
func (g *Guard) Mode() Mode {
	return g.mode
}

// Release disables the lock. Only the first call has any effect, and calling
// it on a nil guard is a no-op.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.lock.release(g.mode, g.holder)
	})
}
