// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/confvault/internal/treecopy"
)

// Optional top-level subtrees of a data root.
const (
	DataDir = "data"
	GWCDir  = "gwc"
	LogsDir = "logs"
)

// ExclusionFilter decides which top-level entries of the data root take
// part in a backup or restore. Names are matched case-insensitively.
type ExclusionFilter struct {
	opts BackupOptions
}

// NewExclusionFilter builds the filter for the given include flags.
func NewExclusionFilter(opts BackupOptions) ExclusionFilter {
	return ExclusionFilter{opts: opts}
}

// Excludes reports whether a top-level entry name is left out. Entries a
// restore moved aside are always excluded, so an archive can never carry
// one back over a live aside copy.
//
// Only top-level names are matched: a "data" directory inside a workspace
// is configuration and is kept.
func (f ExclusionFilter) Excludes(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, asideSuffix) {
		return true
	}
	switch lower {
	case DataDir:
		return !f.opts.IncludeData
	case GWCDir:
		return !f.opts.IncludeGWC
	case LogsDir:
		return !f.opts.IncludeLog
	default:
		return false
	}
}

// Accept is a treecopy.Filter over paths relative to the data root.
// Only the first path element is checked.
func (f ExclusionFilter) Accept(rel string, _ os.FileInfo) bool {
	top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return !f.Excludes(top)
}

// RestoreFilter is Accept without the archive descriptor, which never
// belongs in the live tree.
func (f ExclusionFilter) RestoreFilter() treecopy.Filter {
	return func(rel string, info os.FileInfo) bool {
		if filepath.ToSlash(rel) == DescriptorFile {
			return false
		}
		return f.Accept(rel, info)
	}
}
