// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package treecopy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/confvault/internal/logging"
)

// DefaultWorkers is the copy pool size when WithWorkers is not given.
const DefaultWorkers = 2

// ErrShutdownTimeout is returned by Shutdown when workers are still running
// after the timeout.
var ErrShutdownTimeout = errors.New("copy workers did not stop within the shutdown timeout")

// ErrAlreadyStarted is returned by Start when called more than once.
var ErrAlreadyStarted = errors.New("copy already started")

// Filter decides whether an entry is copied. rel is the entry's path relative
// to the source root. Returning false for a directory skips its subtree.
type Filter func(rel string, info os.FileInfo) bool

// AcceptAll copies every entry.
func AcceptAll(string, os.FileInfo) bool { return true }

// Result is the outcome of copying one file.
type Result struct {
	// Path is relative to the source root.
	Path  string
	Bytes int64
	Err   error
}

// Option configures a Copier.
type Option func(*Copier)

// WithWorkers sets the worker pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *Copier) {
		if n > 0 {
			c.workers = n
		}
	}
}

type fileEntry struct {
	rel  string
	info os.FileInfo
}

// Copier copies one tree once.
type Copier struct {
	fs      afero.Fs
	src     string
	dst     string
	filter  Filter
	workers int

	progressMu sync.Mutex
	progress   func(float64)
	completed  int
	total      int

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	results chan Result
	done    chan struct{}
}

// New creates a Copier from src to dst on fsys. A nil filter copies everything.
func New(fsys afero.Fs, src, dst string, filter Filter, opts ...Option) *Copier {
	if filter == nil {
		filter = AcceptAll
	}
	c := &Copier{
		fs:      fsys,
		src:     filepath.Clean(src),
		dst:     filepath.Clean(dst),
		filter:  filter,
		workers: DefaultWorkers,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnProgress registers fn to receive the completed fraction in [0,1] after
// each file. Calls are serialized and the reported value never decreases.
// Must be called before Start.
func (c *Copier) OnProgress(fn func(float64)) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.progress = fn
}

// Start plans the copy, creates the destination directories and dispatches
// every file to the worker pool. It returns the number of results that will
// be delivered on Results. Start does not wait for the copies to finish.
func (c *Copier) Start(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return 0, ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	dirs, files, err := c.plan()
	if err != nil {
		close(c.done)
		return 0, err
	}

	if err := c.fs.MkdirAll(c.dst, 0o750); err != nil {
		close(c.done)
		return 0, fmt.Errorf("create destination %s: %w", c.dst, err)
	}
	for _, d := range dirs {
		if err := c.fs.MkdirAll(filepath.Join(c.dst, d.rel), d.info.Mode().Perm()|0o700); err != nil {
			close(c.done)
			return 0, fmt.Errorf("create directory %s: %w", d.rel, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.results = make(chan Result, len(files))
	c.mu.Unlock()

	c.progressMu.Lock()
	c.total = len(files)
	if c.total == 0 && c.progress != nil {
		c.progress(1)
	}
	c.progressMu.Unlock()

	logging.Debug().
		Str("component", "treecopy").
		Str("src", c.src).
		Str("dst", c.dst).
		Int("files", len(files)).
		Int("dirs", len(dirs)).
		Int("workers", c.workers).
		Msg("Tree copy dispatched")

	go c.dispatch(runCtx, files)

	return len(files), nil
}

// dispatch feeds the worker pool and closes Results once every file has
// reported.
func (c *Copier) dispatch(ctx context.Context, files []fileEntry) {
	defer close(c.done)

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for _, f := range files {
		g.Go(func() error {
			res := c.copyOne(ctx, f)
			c.results <- res
			c.reportProgress()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers report through Results, never through the group

	close(c.results)
}

func (c *Copier) reportProgress() {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.completed++
	if c.progress != nil && c.total > 0 {
		c.progress(float64(c.completed) / float64(c.total))
	}
}

// Results delivers one Result per file dispatched by Start. It is nil before
// Start succeeds and is closed after the last result.
func (c *Copier) Results() <-chan Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Cancel stops the copy. Files not yet copied report context.Canceled.
func (c *Copier) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown cancels the copy and waits up to timeout for the workers to exit.
func (c *Copier) Shutdown(timeout time.Duration) error {
	c.Cancel()

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

// Done is closed once every worker has exited.
func (c *Copier) Done() <-chan struct{} {
	return c.done
}

// Run starts the copy and waits for it, returning the first file error.
func (c *Copier) Run(ctx context.Context) error {
	n, err := c.Start(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	results := c.Results()
	for i := 0; i < n; i++ {
		res := <-results
		if res.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("copy %s: %w", res.Path, res.Err)
			c.Cancel()
		}
	}
	return firstErr
}

// plan walks the source tree and returns the directories and regular files
// accepted by the filter.
func (c *Copier) plan() (dirs, files []fileEntry, err error) {
	info, err := c.fs.Stat(c.src)
	if err != nil {
		return nil, nil, fmt.Errorf("stat source %s: %w", c.src, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("source %s is not a directory", c.src)
	}

	err = afero.Walk(c.fs, c.src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(c.src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if !c.filter(rel, info) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case info.IsDir():
			dirs = append(dirs, fileEntry{rel: rel, info: info})
		case info.Mode().IsRegular():
			files = append(files, fileEntry{rel: rel, info: info})
		default:
			logging.Debug().Str("component", "treecopy").Str("path", rel).Msg("Skipping non-regular file")
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", c.src, err)
	}
	return dirs, files, nil
}
