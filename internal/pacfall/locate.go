package pacfall

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// SourceTier identifies where a build recipe was found.
type SourceTier int

const (
	TierOfficial SourceTier = iota // official repository checkout
	TierAUR                        // community recipe repository
	TierSearch                     // generic code-hosting search
	TierLocal                      // recipe directory supplied by the user
)

func (t SourceTier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	case TierAUR:
		return "community"
	case TierSearch:
		return "search"
	default:
		return "local"
	}
}

// BuildRequest is a located recipe ready to be handed to the build
// orchestrator. Dir always contains the recipe file.
type BuildRequest struct {
	Package string
	Tier    SourceTier
	Dir     string
}

// officialSubPaths are the checkout layout subdirectories inspected after
// an official-tier checkout, in priority order.
var officialSubPaths = []string{
	"repos/core-x86_64",
	"repos/extra-x86_64",
	"trunk",
}

// Locator finds a build recipe for a package, trying the official
// repository first, then the community recipe repository, then a generic
// repository search. The first tier that yields a recipe wins.
type Locator struct {
	Cfg      *Config
	Exec     Runner
	Client   *http.Client
	Searcher *RepoSearcher
	Pac      *Pacman
	Open     URLOpener
	LookPath func(string) (string, error)
}

func (l *Locator) openURL(url string) {
	if l.Open != nil {
		l.Open.Open(url)
	}
}

func (l *Locator) lookPath(name string) (string, error) {
	if l.LookPath != nil {
		return l.LookPath(name)
	}
	return exec.LookPath(name)
}

// Locate runs the tiers in order starting at startTier. Recipe material is
// fetched into ws; the caller owns the workspace lifetime.
func (l *Locator) Locate(ctx context.Context, ws *Workspace, pkg string, startTier SourceTier) (*BuildRequest, error) {
	if startTier <= TierOfficial {
		dir, err := l.officialTier(ctx, ws, pkg)
		if err == nil {
			return &BuildRequest{Package: pkg, Tier: TierOfficial, Dir: dir}, nil
		}
		debugf("official tier: %v\n", err)
	}

	if startTier <= TierAUR {
		dir, err := l.aurTier(ctx, ws, pkg)
		if err == nil {
			return &BuildRequest{Package: pkg, Tier: TierAUR, Dir: dir}, nil
		}
		debugf("community tier: %v\n", err)
	}

	dir, err := l.searchTier(ctx, ws, pkg)
	if err != nil {
		return nil, err
	}
	return &BuildRequest{Package: pkg, Tier: TierSearch, Dir: dir}, nil
}

// officialTier checks the package out of the official repository with asp
// and inspects the known checkout subpaths for a recipe.
func (l *Locator) officialTier(ctx context.Context, ws *Workspace, pkg string) (string, error) {
	if _, err := l.lookPath("asp"); err != nil {
		arrow()
		colWarn.Println("asp not found, skipping official repository")
		return "", fmt.Errorf("asp unavailable: %w", err)
	}

	arrow()
	colSuccess.Printf("Checking official repository for %s\n", pkg)
	cmd := exec.CommandContext(ctx, "asp", "checkout", pkg)
	cmd.Dir = ws.Path
	if err := l.Exec.Run(cmd); err != nil {
		return "", fmt.Errorf("asp checkout failed: %w", err)
	}

	for _, sub := range officialSubPaths {
		dir := ws.Join(pkg, sub)
		if _, err := findRecipe(dir); err == nil {
			return dir, nil
		}
	}

	// Checkout exists but carries no recipe: surface the package page as a
	// diagnostic aid, then fail this tier.
	l.openURL(fmt.Sprintf("https://gitlab.archlinux.org/archlinux/packaging/packages/%s", pkg))
	return "", fmt.Errorf("official checkout of %s: %w", pkg, errNoRecipe)
}

// aurTier clones the conventionally-named community repository, falling
// back to the HTTP snapshot tarball when the clone fails.
func (l *Locator) aurTier(ctx context.Context, ws *Workspace, pkg string) (string, error) {
	arrow()
	colSuccess.Printf("Checking community recipe repository for %s\n", pkg)

	cloneURL := fmt.Sprintf("%s/%s.git", l.Cfg.AURURL, pkg)
	dir, err := l.cloneOrReuse(ctx, ws, cloneURL, pkg)
	if err != nil {
		// Snapshot fallback: the recipe repository also serves tarballs.
		debugf("clone failed (%v), trying snapshot tarball\n", err)
		if snapErr := l.fetchSnapshot(ctx, ws, pkg); snapErr != nil {
			return "", fmt.Errorf("community recipe unavailable: %w", err)
		}
		dir = ws.Join(pkg)
	}

	if _, err := findRecipe(dir); err != nil {
		l.openURL(fmt.Sprintf("%s/packages/%s", l.Cfg.AURURL, pkg))
		return "", err
	}
	return dir, nil
}

func (l *Locator) fetchSnapshot(ctx context.Context, ws *Workspace, pkg string) error {
	tarball := ws.Join(pkg + ".tar.gz")
	url := fmt.Sprintf("%s/%s.tar.gz", l.Cfg.SnapshotURL, pkg)
	if err := downloadFile(ctx, l.Client, url, tarball); err != nil {
		return err
	}
	defer os.Remove(tarball)
	// Snapshot tarballs unpack to a directory named after the package.
	return extractTarGz(tarball, ws.Path)
}

// searchTier asks the hosting platforms, lets the user pick a repository
// and clones it.
func (l *Locator) searchTier(ctx context.Context, ws *Workspace, pkg string) (string, error) {
	arrow()
	colSuccess.Printf("Searching code-hosting platforms for %s\n", pkg)

	results := l.Searcher.Search(ctx, pkg)
	if len(results) == 0 {
		return "", fmt.Errorf("%w: no repository matches %q", errRecipeNotFound, pkg)
	}

	sel, err := l.Searcher.Select(results)
	if err != nil {
		return "", err
	}

	// Best-effort preview of what was picked, regardless of what happens next.
	l.openURL(sel.URL)

	name := deriveRepoName(sel.URL)
	if l.Pac.IsInstalled(ctx, name) {
		arrow()
		colNote.Printf("%s is already installed\n", name)
		return "", errAlreadyInstalled
	}

	dir, err := l.cloneOrReuse(ctx, ws, sel.URL, name)
	if err != nil {
		return "", fmt.Errorf("clone of %s failed: %w", sel.URL, err)
	}

	if _, err := findRecipe(dir); err != nil {
		// Not an error: the repository simply is not buildable this way.
		arrow()
		colNote.Printf("No %s in %s; opened the repository page instead\n", recipeFileName, sel.URL)
		return "", err
	}
	return dir, nil
}

// cloneOrReuse reuses an existing local checkout named after the
// repository when present, otherwise clones into the workspace.
func (l *Locator) cloneOrReuse(ctx context.Context, ws *Workspace, url, name string) (string, error) {
	if info, err := os.Stat(name); err == nil && info.IsDir() {
		abs, err := filepath.Abs(name)
		if err == nil {
			arrow()
			colNote.Printf("Reusing existing directory %s\n", abs)
			return abs, nil
		}
	}

	dest := ws.Join(name)
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth=1", url, dest)
	if err := l.Exec.Run(cmd); err != nil {
		return "", err
	}
	return dest, nil
}

// deriveRepoName extracts the package/repository name from a source URL.
func deriveRepoName(url string) string {
	return strings.TrimSuffix(path.Base(strings.TrimRight(url, "/")), ".git")
}
