// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestExclusionFilter(t *testing.T) {
	tests := []struct {
		name string
		opts BackupOptions
		rel  string
		want bool
	}{
		{"plain file", BackupOptions{}, "global.xml", true},
		{"nested file", BackupOptions{}, "workspaces/ws/ws.xml", true},
		{"data excluded", BackupOptions{}, "data", false},
		{"data subtree excluded", BackupOptions{}, "data/roads.shp", false},
		{"data included", BackupOptions{IncludeData: true}, "data/roads.shp", true},
		{"gwc excluded", BackupOptions{}, "gwc", false},
		{"gwc included", BackupOptions{IncludeGWC: true}, "gwc/layer/0.png", true},
		{"logs excluded", BackupOptions{}, "logs/app.log", false},
		{"logs included", BackupOptions{IncludeLog: true}, "logs/app.log", true},
		{"case insensitive", BackupOptions{}, "GWC/x", false},
		{"mixed case", BackupOptions{}, "Logs", false},
		{"only top level matched", BackupOptions{}, "workspaces/data/x.xml", true},
		{"prefix is not a match", BackupOptions{}, "database.xml", true},
		{"aside file excluded", BackupOptions{}, "global.xml.backup", false},
		{"aside subtree excluded", BackupOptions{IncludeData: true}, "data.backup/roads.shp", false},
		{"aside suffix case insensitive", BackupOptions{}, "Styles.BACKUP", false},
		{"nested aside name kept", BackupOptions{}, "workspaces/ws.backup/ws.xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewExclusionFilter(tt.opts)
			if got := f.Accept(tt.rel, nil); got != tt.want {
				t.Errorf("Accept(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestExclusionFilter_RestoreSkipsDescriptor(t *testing.T) {
	f := NewExclusionFilter(BackupOptions{}).RestoreFilter()
	if f(DescriptorFile, nil) {
		t.Error("restore filter must skip the descriptor")
	}
	if !f("global.xml", nil) {
		t.Error("restore filter must accept regular entries")
	}
	if f("data/x", nil) {
		t.Error("restore filter must keep exclusions")
	}
	if f("global.xml.backup", nil) {
		t.Error("restore filter must skip aside entries")
	}
}

func TestDescriptor_RoundTrip(t *testing.T) {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	d := Descriptor{
		ID:          "4f1c6c8e-7d1b-4c8e-9a55-0f3e1b2a3c4d",
		State:       StateCompleted,
		StartTime:   &start,
		EndTime:     &end,
		Path:        "/archives/nightly",
		Progress:    0.5,
		IncludeData: true,
		IncludeLog:  true,
	}

	data, err := EncodeDescriptor(d)
	if err != nil {
		t.Fatalf("EncodeDescriptor failed: %v", err)
	}
	for _, want := range []string{"<?xml", "<backup>", "<includeGwc>false</includeGwc>", "<state>COMPLETED</state>"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in %s", want, data)
		}
	}

	got, err := DecodeDescriptor(data)
	if err != nil {
		t.Fatalf("DecodeDescriptor failed: %v", err)
	}
	if got.ID != d.ID || got.State != d.State || got.Path != d.Path || got.Progress != d.Progress {
		t.Errorf("mismatch: want %+v, got %+v", d, got)
	}
	if !got.StartTime.Equal(start) || !got.EndTime.Equal(end) {
		t.Errorf("time mismatch: got %v-%v", got.StartTime, got.EndTime)
	}
	if got.Options() != d.Options() {
		t.Errorf("flags mismatch: want %+v, got %+v", d.Options(), got.Options())
	}
	if got.View().Kind != KindBackup {
		t.Errorf("expected backup kind from descriptor view")
	}
}

func TestDescriptor_OmitsUnsetTimes(t *testing.T) {
	data, err := EncodeDescriptor(Descriptor{ID: "x", State: StateQueued})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "startTime") || strings.Contains(string(data), "endTime") {
		t.Errorf("expected unset times to be omitted, got %s", data)
	}
}

func TestDecodeDescriptor_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", "hello"},
		{"missing id", "<backup><state>COMPLETED</state></backup>"},
		{"unknown state", "<backup><id>x</id><state>EXPLODED</state></backup>"},
		{"wrong root", "<restore><id>x</id></restore>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDescriptor([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadDescriptor_Missing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/archive", 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadDescriptor(fsys, "/archive"); !errors.Is(err, ErrDescriptorMissing) {
		t.Errorf("expected ErrDescriptorMissing, got %v", err)
	}
}

func TestWriteDescriptor(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/archive", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteDescriptor(fsys, "/archive", Descriptor{ID: "abc", State: StateRunning}); err != nil {
		t.Fatalf("WriteDescriptor failed: %v", err)
	}
	if exists, _ := afero.Exists(fsys, "/archive/"+DescriptorFile+".tmp"); exists {
		t.Error("temporary descriptor left behind")
	}
	d, err := ReadDescriptor(fsys, "/archive")
	if err != nil {
		t.Fatalf("ReadDescriptor failed: %v", err)
	}
	if d.ID != "abc" || d.State != StateRunning {
		t.Errorf("unexpected descriptor %+v", d)
	}
}
