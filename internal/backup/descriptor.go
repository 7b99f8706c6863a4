// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
descriptor.go - Archive Descriptor

Every completed backup archive carries a backup.xml file at its root that
records the task which produced it. Restore reads the descriptor before
touching the live tree: an archive without one is rejected, and the include
flags stored in it decide which subtrees are replaced.

	<?xml version="1.0" encoding="UTF-8"?>
	<backup>
	  <id>4f1c...</id>
	  <state>RUNNING</state>
	  <startTime>2026-10-16T09:00:00Z</startTime>
	  <path>/archives/nightly</path>
	  <progress>1</progress>
	  <includeData>false</includeData>
	  <includeGwc>false</includeGwc>
	  <includeLog>true</includeLog>
	</backup>
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// DescriptorFile is the descriptor's file name inside an archive.
const DescriptorFile = "backup.xml"

// Descriptor is the XML form of a backup task.
type Descriptor struct {
	XMLName   xml.Name   `xml:"backup"`
	ID        string     `xml:"id"`
	State     State      `xml:"state"`
	StartTime *time.Time `xml:"startTime,omitempty"`
	EndTime   *time.Time `xml:"endTime,omitempty"`
	Path      string     `xml:"path"`
	Progress  float64    `xml:"progress"`

	IncludeData bool `xml:"includeData"`
	IncludeGWC  bool `xml:"includeGwc"`
	IncludeLog  bool `xml:"includeLog"`
}

// DescriptorFromView builds the descriptor for a task snapshot.
func DescriptorFromView(v TaskView) Descriptor {
	return Descriptor{
		ID:          v.ID,
		State:       v.State,
		StartTime:   v.StartTime,
		EndTime:     v.EndTime,
		Path:        v.Path,
		Progress:    v.Progress,
		IncludeData: v.IncludeData,
		IncludeGWC:  v.IncludeGWC,
		IncludeLog:  v.IncludeLog,
	}
}

// Options returns the include flags recorded in the descriptor.
func (d Descriptor) Options() BackupOptions {
	return BackupOptions{
		IncludeData: d.IncludeData,
		IncludeGWC:  d.IncludeGWC,
		IncludeLog:  d.IncludeLog,
	}
}

// View converts the descriptor back into a backup task snapshot.
func (d Descriptor) View() TaskView {
	return TaskView{
		ID:            d.ID,
		Kind:          KindBackup,
		State:         d.State,
		Path:          d.Path,
		Progress:      d.Progress,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		BackupOptions: d.Options(),
	}
}

// EncodeDescriptor renders d as an indented XML document.
func EncodeDescriptor(d Descriptor) ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}

// DecodeDescriptor parses a descriptor document.
func DecodeDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decode descriptor: %w", err)
	}
	if d.ID == "" {
		return Descriptor{}, errors.New("decode descriptor: missing id")
	}
	if d.State != "" && !d.State.Valid() {
		return Descriptor{}, fmt.Errorf("decode descriptor: unknown state %q", d.State)
	}
	return d, nil
}

// WriteDescriptor writes d as DescriptorFile inside dir. The file is
// written under a temporary name and renamed into place.
func WriteDescriptor(fsys afero.Fs, dir string, d Descriptor) error {
	data, err := EncodeDescriptor(d)
	if err != nil {
		return err
	}

	target := filepath.Join(dir, DescriptorFile)
	tmp := target + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := fsys.Rename(tmp, target); err != nil {
		fsys.Remove(tmp) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("install descriptor: %w", err)
	}
	return nil
}

// ReadDescriptor loads DescriptorFile from dir. A missing file is reported
// as ErrDescriptorMissing.
func ReadDescriptor(fsys afero.Fs, dir string) (Descriptor, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(dir, DescriptorFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Descriptor{}, fmt.Errorf("%w in %s", ErrDescriptorMissing, dir)
		}
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	return DecodeDescriptor(data)
}
