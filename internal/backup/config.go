// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/tomtom215/confvault/internal/treecopy"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultRetention   = 10 * time.Minute
	DefaultHaltTimeout = 5 * time.Second
)

// Config holds the engine settings.
type Config struct {
	// DataRoot is the live configuration directory.
	DataRoot string

	// Retention is how long a terminal task stays visible after it ended.
	Retention time.Duration

	// CopyWorkers is the size of the per-task copy pool.
	CopyWorkers int

	// HaltTimeout bounds the wait for copy workers after a halt.
	HaltTimeout time.Duration
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return errors.New("data root is required")
	}
	if !filepath.IsAbs(c.DataRoot) {
		return errors.New("data root must be an absolute path")
	}
	if c.Retention < 0 {
		return errors.New("retention must not be negative")
	}
	if c.CopyWorkers < 0 {
		return errors.New("copy workers must not be negative")
	}
	if c.HaltTimeout < 0 {
		return errors.New("halt timeout must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	c.DataRoot = filepath.Clean(c.DataRoot)
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.CopyWorkers == 0 {
		c.CopyWorkers = treecopy.DefaultWorkers
	}
	if c.HaltTimeout == 0 {
		c.HaltTimeout = DefaultHaltTimeout
	}
	return c
}
