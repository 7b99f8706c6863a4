// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
serve.go - Server Command

Wires the task engine, HTTP API and supervisor tree:

 1. Configuration: config.Load or config.LoadFile (Koanf v2)
 2. Logging: zerolog with optional lumberjack rotation
 3. History (optional): BadgerDB task history at engine.history_path
 4. Reload hook (optional): HTTP call after each restore, behind gobreaker
 5. Audit trail (optional): submissions, stops and lock transitions
 6. Engine: configlock + backup.Manager
 7. API: chi router, optionally proxying to the configuration server
 8. Supervisor: engine layer (worker, sweeper, audit writer), api layer (HTTP)
*/

//nolint:staticcheck // File documentation, not package doc
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tomtom215/confvault/internal/api"
	"github.com/tomtom215/confvault/internal/audit"
	"github.com/tomtom215/confvault/internal/backup"
	"github.com/tomtom215/confvault/internal/config"
	"github.com/tomtom215/confvault/internal/configlock"
	"github.com/tomtom215/confvault/internal/history"
	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/reload"
	"github.com/tomtom215/confvault/internal/supervisor"
	"github.com/tomtom215/confvault/internal/supervisor/services"
)

// maxSweepInterval caps the retention sweeper period.
const maxSweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task engine and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logging.Init(cfg.LoggerConfig())
			logging.Info().Str("config", cfg.String()).Msg("Starting Confvault")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return a.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	return cmd
}

// app is a fully wired server.
type app struct {
	cfg     *config.Config
	lock    *configlock.Lock
	manager *backup.Manager
	history *history.Store
	audit   *audit.Logger
	http    *services.HTTPServerService
	tree    *supervisor.SupervisorTree
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, lock: configlock.New()}
	if cfg.Audit.Enabled {
		a.audit = audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), cfg.AuditLoggerConfig())
	}
	a.lock.SetObserver(func(ev configlock.Event) {
		logging.Debug().
			Str("event", string(ev.Type)).
			Str("mode", ev.Mode.String()).
			Str("holder", ev.Holder).
			Msg("Config lock transition")
		a.audit.LockChanged(ev)
	})

	reloader, err := reload.New(cfg.ReloadHookConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create reload hook: %w", err)
	}
	opts := []backup.Option{backup.WithReloader(reloader)}

	if cfg.Engine.HistoryPath != "" {
		store, err := history.Open(history.Config{Path: cfg.Engine.HistoryPath, SyncWrites: true})
		if err != nil {
			return nil, fmt.Errorf("failed to open task history: %w", err)
		}
		a.history = store
		opts = append(opts, backup.WithHistory(store))
		logging.Info().Str("path", cfg.Engine.HistoryPath).Msg("Task history enabled")
	}

	a.manager, err = backup.NewManager(cfg.BackupConfig(), a.lock, opts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create task manager: %w", err)
	}

	router, err := a.newRouter()
	if err != nil {
		a.close()
		return nil, err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	a.http = services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout)

	a.tree, err = supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	var gc services.GarbageCollector
	if a.history != nil {
		gc = a.history
	}
	a.tree.AddEngineService(a.manager)
	a.tree.AddEngineService(services.NewRetentionService(a.manager, gc, sweepInterval(a.manager.Config().Retention)))
	if a.audit != nil {
		a.tree.AddEngineService(a.audit)
	}
	a.tree.AddAPIService(a.http)

	return a, nil
}

func (a *app) newRouter() (*api.Router, error) {
	cfg := a.cfg
	dataRoot := a.manager.Config().DataRoot

	handler := api.NewHandler(a.manager, a.lock, dataRoot,
		api.WithReadinessCheck(dataRootReady(afero.NewOsFs(), dataRoot)),
		api.WithAudit(a.audit),
	)
	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitRequests <= 0,
	})

	var routerOpts []api.RouterOption
	if cfg.Proxy.Upstream != "" {
		proxy, err := api.NewConfigProxy(cfg.Proxy.Upstream)
		if err != nil {
			return nil, fmt.Errorf("failed to create config proxy: %w", err)
		}
		routerOpts = append(routerOpts, api.WithProxy(proxy))
		logging.Info().Str("upstream", cfg.Proxy.Upstream).Msg("Config server proxy enabled")
	}

	return api.NewRouter(handler, mw, routerOpts...), nil
}

// run serves until ctx is canceled or the tree gives up.
func (a *app) run(ctx context.Context) error {
	logging.Info().Str("addr", a.cfg.Server.Addr()).Msg("Starting supervisor tree")

	err := <-a.tree.ServeBackground(ctx)

	if unstopped, _ := a.tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree stopped: %w", err)
	}
	logging.Info().Msg("Confvault stopped gracefully")
	return nil
}

func (a *app) close() {
	if a.history == nil {
		return
	}
	if err := a.history.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing task history")
	}
}

// dataRootReady fails readiness while the data root is missing, since
// every task would fail.
func dataRootReady(fsys afero.Fs, root string) func(context.Context) error {
	return func(context.Context) error {
		ok, err := afero.DirExists(fsys, root)
		if err != nil {
			return fmt.Errorf("data root %s: %w", root, err)
		}
		if !ok {
			return fmt.Errorf("data root %s: %w", root, os.ErrNotExist)
		}
		return nil
	}
}

func sweepInterval(retention time.Duration) time.Duration {
	interval := retention / 2
	if interval <= 0 || interval > maxSweepInterval {
		return maxSweepInterval
	}
	return interval
}
