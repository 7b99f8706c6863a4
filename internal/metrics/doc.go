// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package metrics provides Prometheus instrumentation for Confvault.

Metrics are registered on the default registry at package init and exposed
at /metrics by the API server:

	curl http://localhost:8600/metrics

Task metrics:
  - confvault_tasks_submitted_total{kind}
  - confvault_tasks_finished_total{kind,state}
  - confvault_task_duration_seconds{kind,state}
  - confvault_task_queue_depth, confvault_tasks_retained
  - confvault_files_copied_total{result}, confvault_bytes_copied_total
  - confvault_transaction_rollbacks_total{kind}

Lock metrics:
  - confvault_config_lock_held{mode}
  - confvault_config_lock_rejections_total{mode}

Reload metrics:
  - confvault_reload_attempts_total{result}
  - confvault_reload_circuit_state
*/
package metrics
