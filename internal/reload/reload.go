// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

// Package reload notifies the configuration server that its on-disk tree
// changed after a restore.
//
// The hook is a single HTTP request guarded by a circuit breaker, so a
// server that stays down does not make every restore wait on a timeout.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

const breakerName = "config-reload"

// Config configures the HTTP reload hook.
type Config struct {
	URL      string
	Method   string
	Timeout  time.Duration
	Username string
	Password string

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit.
	BreakerFailures uint32

	// BreakerTimeout is how long the circuit stays open before a probe.
	BreakerTimeout time.Duration

	// MinInterval spaces consecutive reloads. Zero disables spacing.
	MinInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = http.MethodPost
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = time.Minute
	}
	return c
}

// Func adapts a plain function to backup.Reloader.
type Func func(ctx context.Context) error

// Reload calls f.
func (f Func) Reload(ctx context.Context) error { return f(ctx) }

// Nop is a Reloader that does nothing. It is used when no reload URL is
// configured.
var Nop backup.Reloader = Func(func(context.Context) error { return nil })

// HTTPReloader calls the configuration server's reload endpoint.
type HTTPReloader struct {
	cfg    Config
	client *http.Client
	cb     *gobreaker.CircuitBreaker[interface{}]

	// limiter is nil when MinInterval is zero.
	limiter *rate.Limiter
}

var _ backup.Reloader = (*HTTPReloader)(nil)

// New returns a backup.Reloader for cfg. An empty URL yields Nop.
func New(cfg Config) (backup.Reloader, error) {
	if cfg.URL == "" {
		return Nop, nil
	}
	return NewHTTPReloader(cfg, nil)
}

// NewHTTPReloader creates an HTTP reload hook. A nil client uses a new
// http.Client with the configured timeout.
func NewHTTPReloader(cfg Config, client *http.Client) (*HTTPReloader, error) {
	cfg = cfg.withDefaults()
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("reload url must be http or https, got %q", cfg.URL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	metrics.ReloadCircuitState.Set(0)
	failures := cfg.BreakerFailures

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.ReloadCircuitState.Set(stateToFloat(to))
		},
	})

	r := &HTTPReloader{cfg: cfg, client: client, cb: cb}
	if cfg.MinInterval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return r, nil
}

// Reload sends the reload request. It fails fast while the circuit is open
// and waits out MinInterval since the previous reload.
func (r *HTTPReloader) Reload(ctx context.Context) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			metrics.ReloadAttempts.WithLabelValues("error").Inc()
			return fmt.Errorf("reload throttled: %w", err)
		}
	}

	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.do(ctx)
	})
	switch {
	case err == nil:
		metrics.ReloadAttempts.WithLabelValues("success").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ReloadAttempts.WithLabelValues("circuit_open").Inc()
		return fmt.Errorf("reload skipped: %w", err)
	default:
		metrics.ReloadAttempts.WithLabelValues("error").Inc()
		return err
	}
}

// State returns the current circuit breaker state.
func (r *HTTPReloader) State() gobreaker.State {
	return r.cb.State()
}

func (r *HTTPReloader) do(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.cfg.Method, r.cfg.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build reload request: %w", err)
	}
	if r.cfg.Username != "" {
		req.SetBasicAuth(r.cfg.Username, r.cfg.Password)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reload request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // Drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reload returned status %d", resp.StatusCode)
	}

	logging.Debug().
		Str("url", r.cfg.URL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Configuration reload succeeded")
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
