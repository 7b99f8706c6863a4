// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTaskFinished(t *testing.T) {
	before := testutil.ToFloat64(TasksFinished.WithLabelValues("backup", "COMPLETED"))

	RecordTaskFinished("backup", "COMPLETED", 2*time.Second)

	after := testutil.ToFloat64(TasksFinished.WithLabelValues("backup", "COMPLETED"))
	if after-before != 1 {
		t.Errorf("expected finished counter to increase by 1, got %f", after-before)
	}
}

func TestRecordFileCopied(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		err      error
		canceled bool
		label    string
	}{
		{"ok", 10, nil, false, "ok"},
		{"error", 0, errors.New("disk full"), false, "error"},
		{"canceled", 0, nil, true, "canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(FilesCopied.WithLabelValues(tt.label))
			bytesBefore := testutil.ToFloat64(BytesCopied)

			RecordFileCopied(tt.bytes, tt.err, tt.canceled)

			if got := testutil.ToFloat64(FilesCopied.WithLabelValues(tt.label)) - before; got != 1 {
				t.Errorf("expected %s counter +1, got %f", tt.label, got)
			}
			wantBytes := float64(0)
			if tt.label == "ok" {
				wantBytes = float64(tt.bytes)
			}
			if got := testutil.ToFloat64(BytesCopied) - bytesBefore; got != wantBytes {
				t.Errorf("expected bytes +%f, got %f", wantBytes, got)
			}
		})
	}
}

func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/bkprst", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}
