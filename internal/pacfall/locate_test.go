package pacfall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plantRecipe makes dir look like a checkout containing a recipe.
func plantRecipe(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, recipeFileName), []byte("pkgname=widget\n"), 0o644))
}

// checkoutFake simulates asp and git by creating the directories their
// real counterparts would leave behind.
func checkoutFake(t *testing.T, aspLayout string) *fakeRunner {
	t.Helper()
	return &fakeRunner{handler: func(cmd *exec.Cmd) error {
		switch cmd.Args[0] {
		case "asp":
			pkg := cmd.Args[len(cmd.Args)-1]
			plantRecipe(t, filepath.Join(cmd.Dir, pkg, aspLayout))
			return nil
		case "git":
			plantRecipe(t, cmd.Args[len(cmd.Args)-1])
			return nil
		}
		return nil
	}}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{Values: map[string]string{}}
	initConfig(cfg)
	cfg.TmpDir = t.TempDir()
	cfg.SyncDBDir = t.TempDir()
	return cfg
}

func notInstalledPacman(cfg *Config) *Pacman {
	failing := &fakeRunner{handler: func(*exec.Cmd) error { return errors.New("not installed") }}
	return newPacman(cfg, failing, failing)
}

func TestLocateOfficialTierWinsFirst(t *testing.T) {
	cfg := testConfig(t)
	run := checkoutFake(t, "repos/core-x86_64")
	open := &recordingOpener{}
	loc := &Locator{
		Cfg: cfg, Exec: run, Pac: notInstalledPacman(cfg), Open: open,
		LookPath: func(string) (string, error) { return "/usr/bin/asp", nil },
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	req, err := loc.Locate(context.Background(), ws, "widget", TierOfficial)
	require.NoError(t, err)

	assert.Equal(t, TierOfficial, req.Tier)
	assert.True(t, strings.HasSuffix(req.Dir, filepath.Join("widget", "repos/core-x86_64")))
	assert.Len(t, run.callsWith("asp"), 1)
	assert.Empty(t, run.callsWith("git"), "later tiers must not run once official succeeds")
}

func TestLocateOfficialSubPathPriority(t *testing.T) {
	cfg := testConfig(t)
	run := &fakeRunner{handler: func(cmd *exec.Cmd) error {
		if cmd.Args[0] == "asp" {
			pkg := cmd.Args[len(cmd.Args)-1]
			// Both extra and trunk exist; extra must win.
			plantRecipe(t, filepath.Join(cmd.Dir, pkg, "repos/extra-x86_64"))
			plantRecipe(t, filepath.Join(cmd.Dir, pkg, "trunk"))
		}
		return nil
	}}
	loc := &Locator{
		Cfg: cfg, Exec: run, Pac: notInstalledPacman(cfg), Open: &recordingOpener{},
		LookPath: func(string) (string, error) { return "/usr/bin/asp", nil },
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	req, err := loc.Locate(context.Background(), ws, "widget", TierOfficial)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(req.Dir, "repos/extra-x86_64"))
}

func TestLocateFallsToAURWhenAspMissing(t *testing.T) {
	cfg := testConfig(t)
	run := checkoutFake(t, "trunk")
	loc := &Locator{
		Cfg: cfg, Exec: run, Pac: notInstalledPacman(cfg), Open: &recordingOpener{},
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	req, err := loc.Locate(context.Background(), ws, "widget", TierOfficial)
	require.NoError(t, err)

	assert.Equal(t, TierAUR, req.Tier)
	assert.Empty(t, run.callsWith("asp"))
	clones := run.callsWith("git", "clone")
	require.Len(t, clones, 1)
	assert.True(t, argvContains(clones[0], cfg.AURURL+"/widget.git"))
}

func TestLocateSearchTierAfterBothMiss(t *testing.T) {
	cfg := testConfig(t)
	gitFailedOnce := false
	run := &fakeRunner{handler: func(cmd *exec.Cmd) error {
		if cmd.Args[0] == "git" && !gitFailedOnce {
			gitFailedOnce = true // the AUR clone fails
			return errors.New("repository not found")
		}
		if cmd.Args[0] == "git" {
			plantRecipe(t, cmd.Args[len(cmd.Args)-1])
		}
		return nil
	}}

	searcher := newTestSearcher(t,
		serve(githubPayload("alice/widget")),
		serve(gitlabPayload()),
		serve(bitbucketPayload()),
	)
	searcher.In = strings.NewReader("1\n")

	// Keep the snapshot fallback off the network.
	notFound := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(notFound.Close)
	cfg.SnapshotURL = notFound.URL

	open := &recordingOpener{}
	loc := &Locator{
		Cfg: cfg, Exec: run, Client: searcher.Client, Searcher: searcher,
		Pac: notInstalledPacman(cfg), Open: open,
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	req, err := loc.Locate(context.Background(), ws, "widget", TierOfficial)
	require.NoError(t, err)

	assert.Equal(t, TierSearch, req.Tier)
	assert.Contains(t, open.opened(), "https://github.com/alice/widget",
		"selected repository page is opened")
}

func TestSearchTierAlreadyInstalledShortCircuits(t *testing.T) {
	cfg := testConfig(t)
	run := &fakeRunner{}

	searcher := newTestSearcher(t,
		serve(githubPayload("alice/widget")),
		serve(gitlabPayload()),
		serve(bitbucketPayload()),
	)
	searcher.In = strings.NewReader("1\n")

	installedPacman := newPacman(cfg, &fakeRunner{}, &fakeRunner{}) // Output succeeds => installed
	loc := &Locator{
		Cfg: cfg, Exec: run, Client: searcher.Client, Searcher: searcher,
		Pac: installedPacman, Open: &recordingOpener{},
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	_, err = loc.Locate(context.Background(), ws, "widget", TierSearch)
	assert.ErrorIs(t, err, errAlreadyInstalled)
	assert.Empty(t, run.callsWith("git"), "no clone after the short-circuit")
}

func TestSearchTierCancelDoesNotClone(t *testing.T) {
	cfg := testConfig(t)
	run := &fakeRunner{}

	searcher := newTestSearcher(t,
		serve(githubPayload("alice/widget")),
		serve(gitlabPayload()),
		serve(bitbucketPayload()),
	)
	searcher.In = strings.NewReader("q\n")

	loc := &Locator{
		Cfg: cfg, Exec: run, Client: searcher.Client, Searcher: searcher,
		Pac: notInstalledPacman(cfg), Open: &recordingOpener{},
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	_, err = loc.Locate(context.Background(), ws, "widget", TierSearch)
	assert.ErrorIs(t, err, errCancelled)
	assert.Empty(t, run.callsWith("git"))
}

func TestSearchTierCloneWithoutRecipeIsNoOp(t *testing.T) {
	cfg := testConfig(t)
	run := &fakeRunner{handler: func(cmd *exec.Cmd) error {
		if cmd.Args[0] == "git" {
			// Clone succeeds but leaves no recipe behind.
			return os.MkdirAll(cmd.Args[len(cmd.Args)-1], 0o755)
		}
		return nil
	}}

	searcher := newTestSearcher(t,
		serve(githubPayload("alice/widget")),
		serve(gitlabPayload()),
		serve(bitbucketPayload()),
	)
	searcher.In = strings.NewReader("1\n")

	open := &recordingOpener{}
	loc := &Locator{
		Cfg: cfg, Exec: run, Client: searcher.Client, Searcher: searcher,
		Pac: notInstalledPacman(cfg), Open: open,
	}

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	_, err = loc.Locate(context.Background(), ws, "widget", TierSearch)
	assert.ErrorIs(t, err, errNoRecipe)
	assert.NotEmpty(t, open.opened())
}

func TestCloneOrReuseExistingDirectory(t *testing.T) {
	cfg := testConfig(t)
	run := &fakeRunner{}
	loc := &Locator{Cfg: cfg, Exec: run}

	work := t.TempDir()
	prevWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(work))
	t.Cleanup(func() { _ = os.Chdir(prevWD) })
	plantRecipe(t, filepath.Join(work, "widget"))

	ws, err := newWorkspace(cfg.TmpDir)
	require.NoError(t, err)
	defer ws.Remove()

	dir, err := loc.cloneOrReuse(context.Background(), ws, "https://example.org/widget.git", "widget")
	require.NoError(t, err)
	assert.Empty(t, run.callsWith("git"), "existing directory is reused without cloning")
	assert.Equal(t, filepath.Join(work, "widget"), dir)
}

func TestDeriveRepoName(t *testing.T) {
	assert.Equal(t, "widget", deriveRepoName("https://github.com/alice/widget"))
	assert.Equal(t, "widget", deriveRepoName("https://aur.archlinux.org/widget.git"))
	assert.Equal(t, "widget", deriveRepoName("https://gitlab.com/a/widget/"))
}
