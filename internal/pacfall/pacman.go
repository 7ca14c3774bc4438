package pacfall

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Pacman wraps the system package manager. Mutating operations go through
// the root executor, queries run as the invoking user.
type Pacman struct {
	Root      Runner
	User      Runner
	SyncDBDir string
}

func newPacman(cfg *Config, root, user Runner) *Pacman {
	return &Pacman{Root: root, User: user, SyncDBDir: cfg.SyncDBDir}
}

func pacmanArgs(op string, noConfirm bool, extra ...string) []string {
	args := []string{op}
	if noConfirm {
		args = append(args, "--noconfirm")
	}
	return append(args, extra...)
}

// Install installs prebuilt packages from the binary repositories.
func (p *Pacman) Install(ctx context.Context, noConfirm bool, pkgs ...string) error {
	cmd := exec.CommandContext(ctx, "pacman", pacmanArgs("-S", noConfirm, pkgs...)...)
	return p.Root.Run(cmd)
}

// InstallDeps installs packages marked as dependencies.
func (p *Pacman) InstallDeps(ctx context.Context, pkgs ...string) error {
	args := pacmanArgs("-S", true, "--asdeps", "--needed")
	args = append(args, pkgs...)
	cmd := exec.CommandContext(ctx, "pacman", args...)
	return p.Root.Run(cmd)
}

// Remove uninstalls packages, optionally with their dependency subtree.
func (p *Pacman) Remove(ctx context.Context, recursive, noConfirm bool, pkgs ...string) error {
	op := "-R"
	if recursive {
		op = "-Rs"
	}
	cmd := exec.CommandContext(ctx, "pacman", pacmanArgs(op, noConfirm, pkgs...)...)
	return p.Root.Run(cmd)
}

// Query lists installed packages, or a single one when pkg is non-empty.
func (p *Pacman) Query(ctx context.Context, pkg string) error {
	args := []string{"-Q"}
	if pkg != "" {
		args = append(args, pkg)
	}
	return p.User.Run(exec.CommandContext(ctx, "pacman", args...))
}

// QueryInfo prints detailed information for an installed package.
func (p *Pacman) QueryInfo(ctx context.Context, pkg string) error {
	return p.User.Run(exec.CommandContext(ctx, "pacman", "-Qi", pkg))
}

// Search searches the binary repositories.
func (p *Pacman) Search(ctx context.Context, term string) error {
	return p.User.Run(exec.CommandContext(ctx, "pacman", "-Ss", term))
}

// Refresh syncs the package databases.
func (p *Pacman) Refresh(ctx context.Context, noConfirm bool) error {
	cmd := exec.CommandContext(ctx, "pacman", pacmanArgs("-Sy", noConfirm)...)
	return p.Root.Run(cmd)
}

// FullUpgrade refreshes databases and upgrades the whole system.
func (p *Pacman) FullUpgrade(ctx context.Context, noConfirm bool) error {
	cmd := exec.CommandContext(ctx, "pacman", pacmanArgs("-Syu", noConfirm)...)
	return p.Root.Run(cmd)
}

// IsInstalled reports whether name is currently installed.
func (p *Pacman) IsInstalled(ctx context.Context, name string) bool {
	cmd := exec.CommandContext(ctx, "pacman", "-Qq", name)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	_, err := p.User.Output(cmd)
	return err == nil
}

// RepoHasPackage reports whether a prebuilt binary for name exists in any
// sync database. The databases are zstd-compressed tar archives whose
// entries look like "name-version-release/desc". Best-effort: unreadable
// databases are skipped.
func (p *Pacman) RepoHasPackage(name string) bool {
	dbs, err := filepath.Glob(filepath.Join(p.SyncDBDir, "*.db"))
	if err != nil {
		return false
	}
	for _, db := range dbs {
		if syncDBContains(db, name) {
			return true
		}
	}
	return false
}

func syncDBContains(dbPath, name string) bool {
	f, err := os.Open(dbPath)
	if err != nil {
		return false
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return false
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) || err != nil {
			return false
		}
		dir := strings.SplitN(hdr.Name, "/", 2)[0]
		if pkgNameFromEntry(dir) == name {
			return true
		}
	}
}

// pkgNameFromEntry strips the "-version-release" suffix from a database
// entry directory, e.g. "zlib-1.3-2" -> "zlib".
func pkgNameFromEntry(entry string) string {
	parts := strings.Split(entry, "-")
	if len(parts) < 3 {
		return entry
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
