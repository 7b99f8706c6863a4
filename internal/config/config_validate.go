// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
}

var validLogFormats = map[string]bool{"json": true, "console": true}

// Validate checks the configuration and reports every invalid setting.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateServer(),
		c.validateEngine(),
		c.validateReload(),
		c.validateProxy(),
		c.validateAudit(),
		c.validateLogging(),
	)
}

func invalid(path, format string, args ...interface{}) error {
	return fmt.Errorf("%s %s", envNameFor(path), fmt.Sprintf(format, args...))
}

func (c *Config) validateServer() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, invalid("server.port", "must be between 1 and 65535"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, invalid("server.shutdown_timeout", "must be positive"))
	}
	if c.Server.RateLimitRequests < minRateLimitRequests || c.Server.RateLimitRequests > maxRateLimitRequests {
		errs = append(errs, invalid("server.rate_limit_requests", "must be between %d and %d",
			minRateLimitRequests, maxRateLimitRequests))
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		errs = append(errs, invalid("server.rate_limit_window", "must be between %v and %v",
			minRateLimitWindow, maxRateLimitWindow))
	}
	return errors.Join(errs...)
}

func (c *Config) validateEngine() error {
	var errs []error
	switch {
	case c.Engine.DataRoot == "":
		errs = append(errs, invalid("engine.data_root", "is required"))
	case !filepath.IsAbs(c.Engine.DataRoot):
		errs = append(errs, invalid("engine.data_root", "must be an absolute path, got: %s", c.Engine.DataRoot))
	}
	if c.Engine.TaskRetention <= 0 {
		errs = append(errs, invalid("engine.task_retention", "must be positive"))
	}
	if c.Engine.CopyWorkers < 1 || c.Engine.CopyWorkers > 64 {
		errs = append(errs, invalid("engine.copy_workers", "must be between 1 and 64"))
	}
	if c.Engine.HaltTimeout <= 0 {
		errs = append(errs, invalid("engine.halt_timeout", "must be positive"))
	}
	if c.Engine.HistoryPath != "" && c.Engine.DataRoot != "" && isWithin(c.Engine.HistoryPath, c.Engine.DataRoot) {
		errs = append(errs, invalid("engine.history_path", "must not be inside the data root"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateReload() error {
	if c.Reload.URL == "" {
		return nil
	}
	var errs []error
	if err := validateHTTPURL(c.Reload.URL); err != nil {
		errs = append(errs, invalid("reload.url", "%v", err))
	}
	if c.Reload.Timeout <= 0 {
		errs = append(errs, invalid("reload.timeout", "must be positive"))
	}
	if c.Reload.BreakerFailures < 1 || c.Reload.BreakerFailures > 1000 {
		errs = append(errs, invalid("reload.breaker_failures", "must be between 1 and 1000"))
	}
	if c.Reload.BreakerTimeout <= 0 {
		errs = append(errs, invalid("reload.breaker_timeout", "must be positive"))
	}
	if c.Reload.MinInterval < 0 {
		errs = append(errs, invalid("reload.min_interval", "must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	var errs []error
	if c.Audit.MaxEvents < 1 || c.Audit.MaxEvents > 1000000 {
		errs = append(errs, invalid("audit.max_events", "must be between 1 and 1000000"))
	}
	if c.Audit.Retention < 0 {
		errs = append(errs, invalid("audit.retention", "must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateProxy() error {
	if c.Proxy.Upstream == "" {
		return nil
	}
	if err := validateHTTPURL(c.Proxy.Upstream); err != nil {
		return invalid("proxy.upstream", "%v", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	var errs []error
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, invalid("logging.level", "must be one of: trace, debug, info, warn, error, fatal, panic"))
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, invalid("logging.format", "must be one of: json, console"))
	}
	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
