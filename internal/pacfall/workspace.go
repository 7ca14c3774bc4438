package pacfall

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Workspace is a disposable per-operation build directory. Exactly one
// exists per orchestration and it must be removed on every exit path,
// so callers defer Remove immediately after a successful New.
type Workspace struct {
	Path    string
	lock    *os.File
	removed bool
}

// newWorkspace creates a fresh directory under tmpDir and takes the global
// build lock so two pacfall invocations cannot drive the package manager at
// the same time. The lock blocks until the other invocation finishes.
func newWorkspace(tmpDir string) (*Workspace, error) {
	dir, err := os.MkdirTemp(tmpDir, "pacfall-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	lockPath := filepath.Join(tmpDir, "pacfall.lock")
	lFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		lFile.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to acquire build lock: %w", err)
	}

	return &Workspace{Path: dir, lock: lFile}, nil
}

// Join returns a path inside the workspace.
func (w *Workspace) Join(elem ...string) string {
	return filepath.Join(append([]string{w.Path}, elem...)...)
}

// Remove deletes the workspace and releases the build lock. Safe to call
// more than once.
func (w *Workspace) Remove() {
	if w == nil || w.removed {
		return
	}
	w.removed = true

	if err := os.RemoveAll(w.Path); err != nil {
		colWarn.Printf("Warning: failed to remove workspace %s: %v\n", w.Path, err)
	}
	if w.lock != nil {
		_ = unix.Flock(int(w.lock.Fd()), unix.LOCK_UN)
		w.lock.Close()
		w.lock = nil
	}
}
