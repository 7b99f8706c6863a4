// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/tomtom215/confvault/internal/configlock"
)

// testEnv holds a data root, an archive area and a running manager.
type testEnv struct {
	fs       afero.Fs
	dataRoot string
	archives string
	lock     *configlock.Lock
	mgr      *Manager
	cancel   context.CancelFunc
	done     chan struct{}
}

// newTestEnv creates temp directories and starts a manager worker that is
// shut down when the test ends. wrap decorates the OS filesystem when non-nil.
func newTestEnv(t *testing.T, wrap func(afero.Fs) afero.Fs, opts ...Option) *testEnv {
	t.Helper()

	tempDir := t.TempDir()
	env := &testEnv{
		fs:       afero.NewOsFs(),
		dataRoot: filepath.Join(tempDir, "data_dir"),
		archives: filepath.Join(tempDir, "archives"),
		lock:     configlock.New(),
	}
	if wrap != nil {
		env.fs = wrap(env.fs)
	}
	for _, dir := range []string{env.dataRoot, env.archives} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	allOpts := append([]Option{WithFs(env.fs)}, opts...)
	mgr, err := NewManager(Config{
		DataRoot:    env.dataRoot,
		Retention:   time.Hour,
		CopyWorkers: 2,
		HaltTimeout: 5 * time.Second,
	}, env.lock, allOpts...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	env.mgr = mgr
	env.start()
	t.Cleanup(env.stop)
	return env
}

func (e *testEnv) start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go func() {
		defer close(e.done)
		_ = e.mgr.Serve(ctx) //nolint:errcheck // returns ctx.Err on shutdown
	}()
}

func (e *testEnv) stop() {
	e.cancel()
	<-e.done
}

func (e *testEnv) archive(name string) string {
	return filepath.Join(e.archives, name)
}

// writeFiles creates files under root from a rel path → content map.
func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

// readTree returns every regular file under root as rel path → content.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func assertTree(t *testing.T, root string, want map[string]string) {
	t.Helper()
	got := readTree(t, root)
	if strings.Join(sortedKeys(got), ",") != strings.Join(sortedKeys(want), ",") {
		t.Fatalf("tree %s: expected files %v, got %v", root, sortedKeys(want), sortedKeys(got))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("tree %s: file %s expected %q, got %q", root, k, v, got[k])
		}
	}
}

// waitForState polls until the task reaches want or the timeout expires.
func waitForState(t *testing.T, task *Task, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if task.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s: expected state %s, got %s (error %q)", task.ID(), want, task.State(), task.View().Error)
}

// waitForTerminal polls until the task is terminal and returns its state.
func waitForTerminal(t *testing.T, task *Task, timeout time.Duration) State {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s := task.State(); s.IsTerminal() {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish, state %s", task.ID(), task.State())
	return ""
}

// waitForUnlock polls until the configuration lock is free.
func waitForUnlock(t *testing.T, l *configlock.Lock, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !l.Status().Enabled {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("configuration lock still held: %+v", l.Status())
}

func mustGetTask(t *testing.T, m *Manager, id string) *Task {
	t.Helper()
	task, err := m.GetTask(id)
	if err != nil {
		t.Fatalf("GetTask(%s) failed: %v", id, err)
	}
	return task
}

// slowFs delays Open for files whose path matches.
type slowFs struct {
	afero.Fs
	delay time.Duration
	match func(name string) bool
}

func (s slowFs) Open(name string) (afero.File, error) {
	if s.match(name) {
		time.Sleep(s.delay)
	}
	return s.Fs.Open(name)
}

func underDir(dir string) func(string) bool {
	marker := string(filepath.Separator) + dir + string(filepath.Separator)
	return func(name string) bool {
		return strings.Contains(name, marker)
	}
}

// failingFs refuses to create files whose base name is in fail. The
// optional predicates inject Rename and RemoveAll failures by path.
type failingFs struct {
	afero.Fs
	fail      map[string]bool
	rename    func(oldname string) bool
	removeAll func(path string) bool
}

func (f failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 && f.fail[filepath.Base(name)] {
		return nil, fmt.Errorf("injected failure creating %s", name)
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f failingFs) Rename(oldname, newname string) error {
	if f.rename != nil && f.rename(oldname) {
		return fmt.Errorf("injected failure renaming %s", oldname)
	}
	return f.Fs.Rename(oldname, newname)
}

func (f failingFs) RemoveAll(path string) error {
	if f.removeAll != nil && f.removeAll(path) {
		return fmt.Errorf("injected failure removing %s", path)
	}
	return f.Fs.RemoveAll(path)
}

// nthCall matches base on its nth call, counting from 1.
func nthCall(base string, n int32) func(string) bool {
	var calls atomic.Int32
	return func(path string) bool {
		if filepath.Base(path) != base {
			return false
		}
		return calls.Add(1) == n
	}
}

// bulkFiles returns n small files under dir.
func bulkFiles(dir string, n int) map[string]string {
	files := make(map[string]string, n)
	for i := 0; i < n; i++ {
		files[fmt.Sprintf("%s/f%03d.xml", dir, i)] = fmt.Sprintf("<f n=%q/>", fmt.Sprint(i))
	}
	return files
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingReloader counts reload calls.
type recordingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *recordingReloader) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *recordingReloader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// waitForReloads polls until the reloader has been called n times.
func waitForReloads(t *testing.T, r *recordingReloader, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.Calls() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// memHistory is an in-memory HistoryStore.
type memHistory struct {
	mu    sync.Mutex
	views map[string]TaskView
}

func newMemHistory() *memHistory {
	return &memHistory{views: map[string]TaskView{}}
}

func (h *memHistory) Save(v TaskView) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views[v.ID] = v
	return nil
}

func (h *memHistory) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.views, id)
	return nil
}

func (h *memHistory) LoadAll() ([]TaskView, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TaskView, 0, len(h.views))
	for _, v := range h.views {
		out = append(out, v)
	}
	return out, nil
}

func (h *memHistory) Get(id string) (TaskView, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.views[id]
	return v, ok
}
