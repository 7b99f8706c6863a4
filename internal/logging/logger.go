// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

// Package logging provides the process-wide zerolog logger for Confvault.
//
// Every package logs through this one logger so that task lifecycle events,
// lock transitions, HTTP access logs and supervisor events end up in the same
// stream with the same field names.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("task_id", id).Msg("Task queued")
//	logging.Error().Err(err).Msg("Rollback failed")
//
// # File Output
//
// When Config.File is set, output is written to that file and rotated by
// lumberjack according to MaxSizeMB, MaxBackups and MaxAgeDays. Console format
// is ignored for file output.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error or
	// disabled. Default: info
	Level string

	// Format is the output format: json or console.
	// Default: json
	Format string

	// Caller includes caller file and line number in logs.
	Caller bool

	// Timestamp enables timestamps in log output.
	// Default: true
	Timestamp bool

	// File, when non-empty, sends output to a rotated log file instead of Output.
	File string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// MaxAgeDays is the number of days rotated files are kept.
	MaxAgeDays int

	// Output is the writer for log output.
	// Default: os.Stderr
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		Timestamp:  true,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Output:     os.Stderr,
	}
}

var (
	mu      sync.RWMutex
	log     zerolog.Logger
	rotator *lumberjack.Logger
)

//nolint:gochecknoinits // the logger must work before Init is called
func init() {
	initLogger(DefaultConfig())
}

// Init replaces the global logger. It may be called again to reconfigure;
// a previously opened log file is closed.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if rotator != nil {
		rotator.Close() //nolint:errcheck // Best effort close of previous log file
	}
	var w io.Writer
	w, rotator = newWriter(cfg)

	zc := zerolog.New(w).With()
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if cfg.Caller {
		zc = zc.Caller()
	}
	log = zc.Logger()
}

// newWriter picks the output for cfg. The rotator is nil unless a log file
// is configured.
func newWriter(cfg Config) (io.Writer, *lumberjack.Logger) {
	if cfg.File != "" {
		r := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		return r, r
	}
	if strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}, nil
	}
	return cfg.Output, nil
}

// parseLevel accepts zerolog level names plus "warning". Empty or unknown
// names mean info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger. Tests use it with NewTestLogger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func current() *zerolog.Logger {
	l := Logger()
	return &l
}

// Debug starts a debug level event.
func Debug() *zerolog.Event { return current().Debug() }

// Info starts an info level event.
func Info() *zerolog.Event { return current().Info() }

// Warn starts a warn level event.
func Warn() *zerolog.Event { return current().Warn() }

// Error starts an error level event.
func Error() *zerolog.Event { return current().Error() }

// NewTestLogger returns a JSON logger writing to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
