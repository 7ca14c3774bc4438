package pacfall

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gitFake simulates the publish flow: clone creates the target directory,
// everything else just records. pushErr fails the final step.
func gitFake(t *testing.T, pushErr error) *fakeRunner {
	t.Helper()
	return &fakeRunner{handler: func(cmd *exec.Cmd) error {
		if cmd.Args[0] != "git" {
			return nil
		}
		switch cmd.Args[1] {
		case "clone":
			return os.MkdirAll(cmd.Args[len(cmd.Args)-1], 0o755)
		case "push":
			return pushErr
		}
		return nil
	}}
}

func stagedRecipe(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), recipeFileName)
	require.NoError(t, os.WriteFile(path, []byte("pkgname=widget\n"), 0o644))
	return path
}

func TestPublishMissingFile(t *testing.T) {
	cfg := testConfig(t)
	run := gitFake(t, nil)
	p := &Publisher{Cfg: cfg, Exec: run, In: strings.NewReader("")}

	err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "absent"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.Empty(t, run.calls, "nothing cloned for a missing recipe")
}

func TestPublishDefaultCommitMessage(t *testing.T) {
	cfg := testConfig(t)
	run := gitFake(t, nil)
	p := &Publisher{Cfg: cfg, Exec: run, In: strings.NewReader("\n")}

	require.NoError(t, p.Publish(context.Background(), stagedRecipe(t)))

	commits := run.callsWith("git", "commit")
	require.Len(t, commits, 1)
	assert.True(t, argvContains(commits[0], "Add recipe: "+recipeFileName))
	assert.Len(t, run.callsWith("git", "push"), 1)
	assert.Zero(t, workspacesLeft(t, cfg.TmpDir))
}

func TestPublishCustomCommitMessage(t *testing.T) {
	cfg := testConfig(t)
	run := gitFake(t, nil)
	p := &Publisher{Cfg: cfg, Exec: run, In: strings.NewReader("Update widget to 1.3\n")}

	require.NoError(t, p.Publish(context.Background(), stagedRecipe(t)))

	commits := run.callsWith("git", "commit")
	require.Len(t, commits, 1)
	assert.True(t, argvContains(commits[0], "Update widget to 1.3"))
}

func TestPublishCopiesRecipeIntoClone(t *testing.T) {
	cfg := testConfig(t)

	var cloneDir string
	run := &fakeRunner{handler: func(cmd *exec.Cmd) error {
		if cmd.Args[0] == "git" && cmd.Args[1] == "clone" {
			cloneDir = cmd.Args[len(cmd.Args)-1]
			return os.MkdirAll(cloneDir, 0o755)
		}
		if cmd.Args[0] == "git" && cmd.Args[1] == "add" {
			// The recipe must be in place before staging.
			_, err := os.Stat(filepath.Join(cloneDir, recipeFileName))
			assert.NoError(t, err)
		}
		return nil
	}}
	p := &Publisher{Cfg: cfg, Exec: run, In: strings.NewReader("\n")}

	require.NoError(t, p.Publish(context.Background(), stagedRecipe(t)))
	require.NotEmpty(t, cloneDir)
}

func TestPublishPushFailure(t *testing.T) {
	cfg := testConfig(t)
	run := gitFake(t, os.ErrPermission)
	p := &Publisher{Cfg: cfg, Exec: run, In: strings.NewReader("\n")}

	err := p.Publish(context.Background(), stagedRecipe(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push")
	assert.Zero(t, workspacesLeft(t, cfg.TmpDir), "workspace removed even when the push fails")
}
