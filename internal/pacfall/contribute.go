package pacfall

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Publisher pushes a local recipe file to the shared contribution
// repository. Independent of the build pipeline; any failing step aborts
// with a step-specific message and the workspace is always removed.
type Publisher struct {
	Cfg  *Config
	Exec Runner
	In   io.Reader
}

// Publish clones the contribution repository, copies the recipe in,
// commits with a prompted (or default) message and pushes. Push failures
// are reported, never retried.
func (p *Publisher) Publish(ctx context.Context, recipePath string) error {
	info, err := os.Stat(recipePath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("recipe file %s does not exist", recipePath)
	}

	ws, err := newWorkspace(p.Cfg.TmpDir)
	if err != nil {
		return err
	}
	defer ws.Remove()

	arrow()
	colSuccess.Printf("Cloning contribution repository %s\n", p.Cfg.ContribRepo)
	cloneDir := ws.Join("recipes")
	clone := exec.CommandContext(ctx, "git", "clone", "--depth=1", p.Cfg.ContribRepo, cloneDir)
	if err := p.Exec.Run(clone); err != nil {
		return fmt.Errorf("failed to clone contribution repository: %w", err)
	}

	name := filepath.Base(recipePath)
	if err := copyFile(recipePath, filepath.Join(cloneDir, name)); err != nil {
		return fmt.Errorf("failed to copy recipe into the repository: %w", err)
	}

	add := exec.CommandContext(ctx, "git", "add", name)
	add.Dir = cloneDir
	if err := p.Exec.Run(add); err != nil {
		return fmt.Errorf("failed to stage recipe: %w", err)
	}

	message := promptLine(p.In, "Commit message", fmt.Sprintf("Add recipe: %s", name))
	commit := exec.CommandContext(ctx, "git", "commit", "-m", message)
	commit.Dir = cloneDir
	if err := p.Exec.Run(commit); err != nil {
		return fmt.Errorf("failed to commit recipe: %w", err)
	}

	push := exec.CommandContext(ctx, "git", "push")
	push.Dir = cloneDir
	if err := p.Exec.Run(push); err != nil {
		return fmt.Errorf("failed to push to contribution repository: %w", err)
	}

	arrow()
	colSuccess.Printf("Published %s\n", name)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
