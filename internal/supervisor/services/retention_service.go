// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package services

import (
	"context"
	"time"

	"github.com/tomtom215/confvault/internal/logging"
)

// TaskCleaner expires finished tasks past their retention window.
type TaskCleaner interface {
	CleanupTasks()
}

// GarbageCollector reclaims storage. Implemented by *history.Store.
type GarbageCollector interface {
	RunGC() error
}

// RetentionService expires finished tasks on a timer, so history entries
// are deleted even when nobody calls the API. Task lookups also expire
// tasks lazily. This service only bounds how long an idle engine keeps them.
type RetentionService struct {
	cleaner  TaskCleaner
	gc       GarbageCollector
	interval time.Duration
}

// NewRetentionService creates the sweeper. gc may be nil. A non-positive
// interval means one minute.
func NewRetentionService(cleaner TaskCleaner, gc GarbageCollector, interval time.Duration) *RetentionService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RetentionService{cleaner: cleaner, gc: gc, interval: interval}
}

// Serve implements suture.Service.
func (s *RetentionService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *RetentionService) sweep() {
	s.cleaner.CleanupTasks()
	if s.gc == nil {
		return
	}
	if err := s.gc.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Task history GC failed")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *RetentionService) String() string {
	return "retention-sweeper"
}
