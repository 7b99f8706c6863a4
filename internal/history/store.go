// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

// Package history persists task snapshots in BadgerDB so that recently
// finished tasks survive a restart of the engine.
//
// Each task is stored under "task:<id>" as a JSON-encoded backup.TaskView.
// The store is only written through backup.Manager, which saves a snapshot
// on submission and on every terminal transition, and deletes it when the
// task expires.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/logging"
)

const keyPrefix = "task:"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Config configures the store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the store in memory only.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("history path is required")
	}
	return nil
}

// Store is a BadgerDB-backed backup.HistoryStore.
type Store struct {
	db       *badger.DB
	inMemory bool

	mu     sync.RWMutex
	closed bool
}

var _ backup.HistoryStore = (*Store)(nil)

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("component", "history").
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Task history store opened")

	return &Store{db: db, inMemory: cfg.InMemory}, nil
}

func taskKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func (s *Store) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Save stores or replaces the snapshot for v.ID.
func (s *Store) Save(v backup.TaskView) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", v.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(taskKey(v.ID), data))
	})
	if err != nil {
		return fmt.Errorf("save task %s: %w", v.ID, err)
	}
	return nil
}

// Delete removes the snapshot for id. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(taskKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// Get returns the snapshot for id.
func (s *Store) Get(id string) (backup.TaskView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return backup.TaskView{}, err
	}

	var v backup.TaskView
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(taskKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return backup.TaskView{}, fmt.Errorf("%w: %s", backup.ErrTaskNotFound, id)
	}
	if err != nil {
		return backup.TaskView{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return v, nil
}

// LoadAll returns every stored snapshot. Entries that fail to decode are
// logged and skipped.
func (s *Store) LoadAll() ([]backup.TaskView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var views []backup.TaskView
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var v backup.TaskView
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable task history entry")
				continue
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate task history: %w", err)
	}
	return views, nil
}

// RunGC reclaims value log space left by deleted and overwritten tasks.
// Having nothing to collect is not an error.
func (s *Store) RunGC() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.inMemory {
		return nil
	}

	err := s.db.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("value log GC: %w", err)
	}
	return nil
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
