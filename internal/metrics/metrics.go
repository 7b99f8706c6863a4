// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task engine metrics
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_tasks_submitted_total",
			Help: "Total number of backup and restore tasks submitted",
		},
		[]string{"kind"}, // "backup", "restore"
	)

	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"kind", "state"}, // state: "COMPLETED", "FAILED", "STOPPED"
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confvault_task_duration_seconds",
			Help:    "Wall-clock duration of tasks from start to terminal state",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"kind", "state"},
	)

	TaskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confvault_task_queue_depth",
			Help: "Number of tasks waiting for the worker",
		},
	)

	TasksRetained = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confvault_tasks_retained",
			Help: "Number of tasks currently tracked by the manager",
		},
	)

	FilesCopied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_files_copied_total",
			Help: "Total number of files copied by tree copies",
		},
		[]string{"result"}, // "ok", "error", "canceled"
	)

	BytesCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "confvault_bytes_copied_total",
			Help: "Total number of bytes copied by tree copies",
		},
	)

	TransactionRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_transaction_rollbacks_total",
			Help: "Total number of transaction rollbacks",
		},
		[]string{"kind"},
	)

	// Configuration lock metrics
	ConfigLockHeld = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confvault_config_lock_held",
			Help: "Whether the configuration lock is held (1) in the given mode",
		},
		[]string{"mode"}, // "read", "write"
	)

	ConfigLockRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_config_lock_rejections_total",
			Help: "Total number of requests rejected while the configuration lock was held",
		},
		[]string{"mode"},
	)

	// Reload hook metrics
	ReloadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_reload_attempts_total",
			Help: "Total number of configuration reload calls",
		},
		[]string{"result"}, // "success", "error", "circuit_open"
	)

	ReloadCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confvault_reload_circuit_state",
			Help: "Reload circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confvault_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confvault_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordTaskFinished records a task reaching a terminal state.
func RecordTaskFinished(kind, state string, duration time.Duration) {
	TasksFinished.WithLabelValues(kind, state).Inc()
	if duration > 0 {
		TaskDuration.WithLabelValues(kind, state).Observe(duration.Seconds())
	}
}

// RecordFileCopied records the outcome of a single file copy.
func RecordFileCopied(bytes int64, err error, canceled bool) {
	switch {
	case canceled:
		FilesCopied.WithLabelValues("canceled").Inc()
	case err != nil:
		FilesCopied.WithLabelValues("error").Inc()
	default:
		FilesCopied.WithLabelValues("ok").Inc()
		BytesCopied.Add(float64(bytes))
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
