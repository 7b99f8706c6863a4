// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/confvault/internal/configlock"
	"github.com/tomtom215/confvault/internal/middleware"
)

// APIPrefix is the root of the task API. It is exempt from the lock gate.
const APIPrefix = "/api/v1/bkprst"

// Router wires handlers, middleware and the optional configuration proxy.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	proxy         http.Handler
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithProxy mounts proxy as the catch-all route behind the lock gate.
func WithProxy(proxy http.Handler) RouterOption {
	return func(r *Router) { r.proxy = proxy }
}

// NewRouter creates a router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware, opts ...RouterOption) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	router := &Router{handler: handler, chiMiddleware: mw}
	for _, opt := range opts {
		opt(router)
	}
	return router
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/", router.handler.ListTasks)
		r.Get("/lock", router.handler.LockStatus)
		r.Get("/audit", router.handler.AuditLog)
		r.Get("/{id}", router.handler.GetTask)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitSubmit())
			r.Post("/backup", router.handler.CreateBackup)
			r.Post("/restore", router.handler.CreateRestore)
			r.Delete("/backup/{id}", router.handler.StopBackup)
			r.Delete("/restore/{id}", router.handler.StopRestore)
			r.Delete("/{id}", router.handler.StopTask)
		})
	})

	if router.proxy != nil {
		gate := configlock.Middleware(router.handler.lock, APIPrefix, "/api/v1/health", "/metrics")
		r.With(middleware.PrometheusMetrics, gate).Handle("/*", router.proxy)
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusNotFound, "NOT_FOUND", "No route for "+sanitizeLogValue(r.URL.Path), nil)
		})
	}

	return r
}
