// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"confvault.yaml",
	"confvault.yml",
	"/etc/confvault/config.yaml",
	"/etc/confvault/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config file path.
const ConfigPathEnvVar = "CONFVAULT_CONFIG"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8585,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
		Engine: EngineConfig{
			DataRoot:      "",
			TaskRetention: 10 * time.Minute,
			CopyWorkers:   2,
			HaltTimeout:   5 * time.Second,
			HistoryPath:   "",
		},
		Reload: ReloadConfig{
			Method:          "POST",
			Timeout:         30 * time.Second,
			BreakerFailures: 3,
			BreakerTimeout:  time.Minute,
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxEvents: 10000,
			Retention: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load loads configuration using the Koanf v2 layered approach.
//
// Precedence: ENV > File > Defaults.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile loads configuration with an explicit YAML file. An empty path
// behaves like Load.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists keys that arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok {
			continue
		}

		trimmed := []string{}
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"confvault_host":                "server.host",
	"confvault_port":                "server.port",
	"confvault_read_timeout":        "server.read_timeout",
	"confvault_write_timeout":       "server.write_timeout",
	"confvault_shutdown_timeout":    "server.shutdown_timeout",
	"confvault_rate_limit_requests": "server.rate_limit_requests",
	"confvault_rate_limit_window":   "server.rate_limit_window",
	"confvault_cors_origins":        "server.cors_origins",

	"confvault_data_root":      "engine.data_root",
	"confvault_task_retention": "engine.task_retention",
	"confvault_copy_workers":   "engine.copy_workers",
	"confvault_halt_timeout":   "engine.halt_timeout",
	"confvault_history_path":   "engine.history_path",

	"confvault_reload_url":              "reload.url",
	"confvault_reload_method":           "reload.method",
	"confvault_reload_timeout":          "reload.timeout",
	"confvault_reload_username":         "reload.username",
	"confvault_reload_password":         "reload.password",
	"confvault_reload_breaker_failures": "reload.breaker_failures",
	"confvault_reload_breaker_timeout":  "reload.breaker_timeout",
	"confvault_reload_min_interval":     "reload.min_interval",

	"confvault_proxy_upstream": "proxy.upstream",

	"confvault_audit_enabled":       "audit.enabled",
	"confvault_audit_max_events":    "audit.max_events",
	"confvault_audit_retention":     "audit.retention",
	"confvault_audit_log_to_stdout": "audit.log_to_stdout",

	"log_level":        "logging.level",
	"log_format":       "logging.format",
	"log_caller":       "logging.caller",
	"log_file":         "logging.file",
	"log_max_size_mb":  "logging.max_size_mb",
	"log_max_backups":  "logging.max_backups",
	"log_max_age_days": "logging.max_age_days",
}

// envTransformFunc maps environment variable names to koanf paths. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// envNameFor returns the environment variable for a koanf path, for error messages.
func envNameFor(path string) string {
	for name, p := range envMappings {
		if p == path {
			return strings.ToUpper(name)
		}
	}
	return path
}
