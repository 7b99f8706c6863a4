// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/confvault/internal/audit"
	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/reload"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Engine  EngineConfig  `koanf:"engine"`
	Reload  ReloadConfig  `koanf:"reload"`
	Proxy   ProxyConfig   `koanf:"proxy"`
	Audit   AuditConfig   `koanf:"audit"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EngineConfig configures the backup/restore task engine.
type EngineConfig struct {
	DataRoot      string        `koanf:"data_root"`
	TaskRetention time.Duration `koanf:"task_retention"`
	CopyWorkers   int           `koanf:"copy_workers"`
	HaltTimeout   time.Duration `koanf:"halt_timeout"`
	HistoryPath   string        `koanf:"history_path"`
}

// ReloadConfig configures the hook called after a successful restore.
type ReloadConfig struct {
	URL             string        `koanf:"url"`
	Method          string        `koanf:"method"`
	Timeout         time.Duration `koanf:"timeout"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	MinInterval     time.Duration `koanf:"min_interval"`
}

// ProxyConfig configures the lock-gated reverse proxy.
type ProxyConfig struct {
	// Upstream is the configuration server base URL. Empty disables the proxy.
	Upstream string `koanf:"upstream"`
}

// AuditConfig configures the in-memory audit trail.
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxEvents   int           `koanf:"max_events"`
	Retention   time.Duration `koanf:"retention"`
	LogToStdout bool          `koanf:"log_to_stdout"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// BackupConfig converts the engine section for backup.NewManager.
func (c *Config) BackupConfig() backup.Config {
	return backup.Config{
		DataRoot:    c.Engine.DataRoot,
		Retention:   c.Engine.TaskRetention,
		CopyWorkers: c.Engine.CopyWorkers,
		HaltTimeout: c.Engine.HaltTimeout,
	}
}

// ReloadHookConfig converts the reload section for reload.New.
func (c *Config) ReloadHookConfig() reload.Config {
	return reload.Config{
		URL:             c.Reload.URL,
		Method:          c.Reload.Method,
		Timeout:         c.Reload.Timeout,
		Username:        c.Reload.Username,
		Password:        c.Reload.Password,
		BreakerFailures: uint32(c.Reload.BreakerFailures), //nolint:gosec // bounded by Validate
		BreakerTimeout:  c.Reload.BreakerTimeout,
		MinInterval:     c.Reload.MinInterval,
	}
}

// AuditLoggerConfig converts the audit section for audit.NewLogger.
func (c *Config) AuditLoggerConfig() audit.Config {
	return audit.Config{
		MinSeverity: audit.SeverityInfo,
		Retention:   c.Audit.Retention,
		LogToStdout: c.Audit.LogToStdout,
	}
}

// LoggerConfig converts the logging section for logging.Init.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Caller:     c.Logging.Caller,
		Timestamp:  true,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// String returns a summary safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf("server=%s data_root=%s history=%q reload=%t proxy=%q",
		c.Server.Addr(), c.Engine.DataRoot, c.Engine.HistoryPath, c.Reload.URL != "", c.Proxy.Upstream)
}
