package pacfall

import (
	"os/exec"
	"strings"
	"sync"
)

// fakeRunner records every command and delegates behaviour to an optional
// handler, so component tests never spawn real processes.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	handler func(cmd *exec.Cmd) error
}

func (f *fakeRunner) record(cmd *exec.Cmd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{}, cmd.Args...))
}

func (f *fakeRunner) Run(cmd *exec.Cmd) error {
	f.record(cmd)
	if f.handler != nil {
		return f.handler(cmd)
	}
	return nil
}

func (f *fakeRunner) Output(cmd *exec.Cmd) ([]byte, error) {
	f.record(cmd)
	if f.handler != nil {
		if err := f.handler(cmd); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// callsWith returns the recorded invocations whose argv starts with prefix.
func (f *fakeRunner) callsWith(prefix ...string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, call := range f.calls {
		if len(call) < len(prefix) {
			continue
		}
		match := true
		for i, p := range prefix {
			if call[i] != p {
				match = false
				break
			}
		}
		if match {
			out = append(out, call)
		}
	}
	return out
}

func argvContains(argv []string, want string) bool {
	for _, a := range argv {
		if a == want {
			return true
		}
	}
	return false
}

func argvIs(argv []string, want string) bool {
	return strings.Join(argv, " ") == want
}

// recordingOpener captures viewer launches.
type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingOpener) Open(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
}

func (r *recordingOpener) opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.urls...)
}

// noReview skips the recipe pager in tests.
func noReview(string, []string) error { return nil }
