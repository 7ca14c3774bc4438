package pacfall

import (
	"io"
	"os/exec"
)

// URLOpener opens a URL in an external viewer. The call is best-effort
// and must never block the pipeline; failures are silently ignored.
type URLOpener interface {
	Open(url string)
}

// xdgOpener launches xdg-open and does not wait for it.
type xdgOpener struct{}

func (xdgOpener) Open(url string) {
	cmd := exec.Command("xdg-open", url)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		debugf("xdg-open failed: %v\n", err)
		return
	}
	// Reap the child in the background; we never care about the result.
	go func() { _ = cmd.Wait() }()
}

// nopOpener disables viewer launching (tests, non-graphical sessions).
type nopOpener struct{}

func (nopOpener) Open(string) {}
