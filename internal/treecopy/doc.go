// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

/*
Package treecopy copies a directory tree in parallel.

A Copier walks the source tree once, creates the destination directories,
and then hands every regular file to a bounded pool of workers. Each copied
file produces exactly one Result on the Results channel, so a caller that
knows the file count returned by Start can consume completions one by one
and decide between them whether to keep going.

	c := treecopy.New(fs, src, dst, filter, treecopy.WithWorkers(2))
	c.OnProgress(func(p float64) { task.SetProgress(p) })
	n, err := c.Start(ctx)
	for i := 0; i < n; i++ {
	    res := <-c.Results()
	    ...
	}

Cancel stops dispatching and makes in-flight copies fail fast. Shutdown
cancels and then waits up to a timeout for the workers to exit, returning
ErrShutdownTimeout if they do not.
*/
package treecopy
