package pacfall

import (
	"context"
	"os/exec"
)

// Helper wraps the AUR-aware community helper (paru or yay). A nil *Helper
// means no helper is installed; callers degrade with a warning instead of
// failing.
type Helper struct {
	Name string
	Exec Runner
}

// helperCandidates in preference order.
var helperCandidates = []string{"paru", "yay"}

// detectHelper probes for a community helper. PACFALL_HELPER forces a
// specific binary name. lookPath is injectable for tests.
func detectHelper(cfg *Config, run Runner, lookPath func(string) (string, error)) *Helper {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	candidates := helperCandidates
	if cfg.HelperName != "" {
		candidates = []string{cfg.HelperName}
	}
	for _, name := range candidates {
		if _, err := lookPath(name); err == nil {
			return &Helper{Name: name, Exec: run}
		}
	}
	return nil
}

// Install installs packages, resolving AUR targets as needed.
func (h *Helper) Install(ctx context.Context, noConfirm bool, pkgs ...string) error {
	args := []string{"-S"}
	if noConfirm {
		args = append(args, "--noconfirm")
	}
	args = append(args, pkgs...)
	return h.Exec.Run(exec.CommandContext(ctx, h.Name, args...))
}

// InstallDeps batch-installs build and runtime dependencies without
// confirmation, marked as dependencies.
func (h *Helper) InstallDeps(ctx context.Context, pkgs ...string) error {
	args := []string{"-S", "--noconfirm", "--asdeps", "--needed"}
	args = append(args, pkgs...)
	return h.Exec.Run(exec.CommandContext(ctx, h.Name, args...))
}

// Search searches repositories and the AUR.
func (h *Helper) Search(ctx context.Context, term string) error {
	return h.Exec.Run(exec.CommandContext(ctx, h.Name, "-Ss", term))
}

// FullUpgrade upgrades repo and AUR packages.
func (h *Helper) FullUpgrade(ctx context.Context, noConfirm bool) error {
	args := []string{"-Syu"}
	if noConfirm {
		args = append(args, "--noconfirm")
	}
	return h.Exec.Run(exec.CommandContext(ctx, h.Name, args...))
}

// Remove uninstalls packages through the helper.
func (h *Helper) Remove(ctx context.Context, recursive, noConfirm bool, pkgs ...string) error {
	op := "-R"
	if recursive {
		op = "-Rs"
	}
	args := []string{op}
	if noConfirm {
		args = append(args, "--noconfirm")
	}
	args = append(args, pkgs...)
	return h.Exec.Run(exec.CommandContext(ctx, h.Name, args...))
}
