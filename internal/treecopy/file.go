// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package treecopy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/tomtom215/confvault/internal/logging"
	"github.com/tomtom215/confvault/internal/metrics"
)

const copyBufferSize = 256 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, copyBufferSize)
		return &b
	},
}

// contextReader fails reads once ctx is done so a canceled copy of a large
// file stops at the next chunk.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func (c *Copier) copyOne(ctx context.Context, f fileEntry) Result {
	res := Result{Path: f.rel}
	if err := ctx.Err(); err != nil {
		res.Err = err
		metrics.RecordFileCopied(0, nil, true)
		return res
	}

	src := filepath.Join(c.src, f.rel)
	dst := filepath.Join(c.dst, f.rel)
	res.Bytes, res.Err = CopyFile(ctx, c.fs, src, dst, f.info)

	canceled := errors.Is(res.Err, context.Canceled)
	metrics.RecordFileCopied(res.Bytes, res.Err, canceled)
	if res.Err == nil {
		logging.Debug().Str("component", "treecopy").Str("file", f.rel).Int64("bytes", res.Bytes).Msg("File copied")
	}
	return res
}

// CopyFile copies a single regular file, preserving its permission bits and
// modification time. A partially written destination is removed on error.
func CopyFile(ctx context.Context, fsys afero.Fs, src, dst string, info os.FileInfo) (int64, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only file

	if info == nil {
		if info, err = in.Stat(); err != nil {
			return 0, fmt.Errorf("stat source: %w", err)
		}
	}

	if err := fsys.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	out, err := fsys.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	bufp := bufferPool.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
	defer bufferPool.Put(bufp)

	n, err := io.CopyBuffer(out, contextReader{ctx: ctx, r: in}, *bufp)
	if err != nil {
		out.Close()      //nolint:errcheck // Best effort cleanup
		fsys.Remove(dst) //nolint:errcheck // Best effort cleanup
		return n, fmt.Errorf("copy data: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()      //nolint:errcheck // Best effort cleanup
		fsys.Remove(dst) //nolint:errcheck // Best effort cleanup
		return n, fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		fsys.Remove(dst) //nolint:errcheck // Best effort cleanup
		return n, fmt.Errorf("close destination: %w", err)
	}

	fsys.Chtimes(dst, info.ModTime(), info.ModTime()) //nolint:errcheck // mtime is informational
	return n, nil
}
