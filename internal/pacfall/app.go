package pacfall

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// App bundles the collaborators behind the CLI so the dispatch code and
// the tests construct them the same way.
type App struct {
	Cfg       *Config
	User      Runner
	Root      Runner
	Pac       *Pacman
	Helper    *Helper
	Keys      *KeyResolver
	Searcher  *RepoSearcher
	Locator   *Locator
	Publisher *Publisher
	Open      URLOpener
	In        io.Reader
}

func newApp(cfg *Config, user, root Runner) *App {
	client := newHTTPClient()
	opener := xdgOpener{}
	in := io.Reader(os.Stdin)

	pac := newPacman(cfg, root, user)
	searcher := newRepoSearcher(client, in)

	return &App{
		Cfg:      cfg,
		User:     user,
		Root:     root,
		Pac:      pac,
		Helper:   detectHelper(cfg, user, nil),
		Keys:     newKeyResolver(cfg, user),
		Searcher: searcher,
		Locator: &Locator{
			Cfg:      cfg,
			Exec:     user,
			Client:   client,
			Searcher: searcher,
			Pac:      pac,
			Open:     opener,
		},
		Publisher: &Publisher{Cfg: cfg, Exec: user, In: in},
		Open:      opener,
		In:        in,
	}
}

func (a *App) orchestrator(useHelper bool) *Orchestrator {
	return &Orchestrator{
		Exec:      a.User,
		Helper:    a.Helper,
		Pac:       a.Pac,
		Keys:      a.Keys,
		In:        a.In,
		UseHelper: useHelper,
	}
}

// BuildFromSource is the full fallback pipeline: locate a recipe starting
// at startTier, then orchestrate the build. The disposable workspace is
// removed on every exit path, including NotFound and Cancelled.
func (a *App) BuildFromSource(ctx context.Context, pkg string, startTier SourceTier, useHelper bool) (BuildOutcome, error) {
	var outcome BuildOutcome

	if a.Pac.RepoHasPackage(pkg) {
		arrow()
		colNote.Printf("%s is available as a prebuilt binary; building from source anyway\n", pkg)
	}

	ws, err := newWorkspace(a.Cfg.TmpDir)
	if err != nil {
		return outcome, err
	}
	defer ws.Remove()

	req, err := a.Locator.Locate(ctx, ws, pkg, startTier)
	if err != nil {
		switch {
		case errors.Is(err, errAlreadyInstalled):
			return outcome, err
		case errors.Is(err, errNoRecipe):
			// No-op outcome: a selected repository without a recipe is
			// not an error.
			outcome.Reason = ReasonRecipeMissing
			return outcome, nil
		default:
			return outcome, err
		}
	}

	arrow()
	colSuccess.Printf("Found %s recipe in %s\n", req.Tier, req.Dir)
	return a.orchestrator(useHelper).Build(ctx, req)
}

// BuildLocal orchestrates a build of an existing recipe directory. No
// workspace is created and the directory is left untouched.
func (a *App) BuildLocal(ctx context.Context, dir string, useHelper bool) (BuildOutcome, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return BuildOutcome{}, err
	}
	req := &BuildRequest{
		Package: filepath.Base(abs),
		Tier:    TierLocal,
		Dir:     abs,
	}
	return a.orchestrator(useHelper).Build(ctx, req)
}
