package pacfall

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// buildLogName is the makepkg output capture inside the recipe directory,
// scanned for signature failure markers after a failed build.
const buildLogName = ".pacfall-build.log"

// FailureReason classifies why a build did not complete.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonSignature
	ReasonRecipeMissing
	ReasonDepInstall
	ReasonCancelled
)

// BuildOutcome is the result of one orchestration.
type BuildOutcome struct {
	Succeeded bool
	Retried   bool
	Reason    FailureReason
}

// signatureMarkers are the makepkg log lines that indicate a PGP
// verification failure. Detection is best-effort: the markers are plain
// text and may change between tool versions, so their absence only means
// no retry is attempted.
var signatureMarkers = []string{
	"PGP signatures could not be verified",
	"FAILED (unknown public key",
	"invalid or corrupted package (PGP signature)",
}

// Orchestrator drives a located recipe through confirmation, dependency
// installation, key import and the build itself, with one bounded retry
// when the failure looks signature-related.
type Orchestrator struct {
	Exec   Runner
	Helper *Helper
	Pac    *Pacman
	Keys   *KeyResolver
	In     io.Reader

	// UseHelper selects the community helper for dependency
	// installation; otherwise the system package manager is used.
	UseHelper bool

	// Review displays the recipe before confirmation. Defaults to the
	// scrollable pager; injectable so tests never open a TUI.
	Review func(title string, lines []string) error
}

// Build runs the state machine. A user's "no" at the confirmation gate is
// not an error: the outcome carries ReasonCancelled and err is nil.
// Workspace removal is the caller's obligation and happens on every exit
// path of this function.
func (o *Orchestrator) Build(ctx context.Context, req *BuildRequest) (BuildOutcome, error) {
	var outcome BuildOutcome

	recipePath, err := findRecipe(req.Dir)
	if err != nil {
		outcome.Reason = ReasonRecipeMissing
		return outcome, err
	}
	data, err := os.ReadFile(recipePath)
	if err != nil {
		outcome.Reason = ReasonRecipeMissing
		return outcome, fmt.Errorf("failed to read recipe: %w", err)
	}

	// AwaitConfirmation: show the full recipe, then prompt. Empty input
	// means yes.
	review := o.Review
	if review == nil {
		review = runPager
	}
	title := fmt.Sprintf("%s: %s (b3 %s)", req.Package, recipeFileName, recipeDigest(data))
	if err := review(title, strings.Split(string(data), "\n")); err != nil {
		colWarn.Printf("Warning: could not display recipe: %v\n", err)
	}
	arrow()
	if !askForConfirmation(o.In, colSuccess, "Build and install %s (%s tier)?", req.Package, req.Tier) {
		outcome.Reason = ReasonCancelled
		arrow()
		colNote.Println("Build cancelled.")
		return outcome, nil
	}

	recipe := parseRecipe(string(data))
	o.installDependencies(ctx, recipe.AllDepends())
	o.Keys.ImportKeys(ctx, recipe.ValidPGPKeys)

	logPath := filepath.Join(req.Dir, buildLogName)
	if err := o.runBuild(ctx, req, logPath); err == nil {
		outcome.Succeeded = true
		return outcome, nil
	} else if !logHasSignatureFailure(logPath) {
		return outcome, fmt.Errorf("build of %s failed: %w", req.Package, err)
	}

	// RetryOnce: the log shows a signature failure. Re-import the keys and
	// re-run the build exactly once, whatever the root cause was.
	arrow()
	colWarn.Println("Signature verification failure detected; importing keys and retrying once")
	outcome.Retried = true

	// The recipe is static, but re-parse it for safety before the retry.
	if fresh, err := parseRecipeFile(req.Dir); err == nil {
		recipe = fresh
	}
	o.Keys.ImportKeys(ctx, recipe.ValidPGPKeys)

	if err := o.runBuild(ctx, req, logPath); err != nil {
		outcome.Reason = ReasonSignature
		return outcome, fmt.Errorf("build of %s failed after retry: %w", req.Package, err)
	}
	outcome.Succeeded = true
	return outcome, nil
}

// installDependencies batch-installs build and runtime dependencies.
// Failures are reported and the build proceeds anyway; an actually
// missing dependency will fail the build with a clearer message.
func (o *Orchestrator) installDependencies(ctx context.Context, deps []string) {
	if len(deps) == 0 {
		return
	}

	arrow()
	colSuccess.Printf("Installing %d dependencies\n", len(deps))

	var err error
	switch {
	case o.UseHelper && o.Helper == nil:
		colWarn.Printf("Warning: no community helper found; install manually if the build fails: %s\n",
			strings.Join(deps, " "))
		return
	case o.UseHelper:
		err = o.Helper.InstallDeps(ctx, deps...)
	default:
		err = o.Pac.InstallDeps(ctx, deps...)
	}
	if err != nil {
		colWarn.Printf("Warning: dependency installation failed (%v); attempting the build anyway\n", err)
	}
}

// runBuild invokes the local build tool in install mode. All output is
// teed into the log file for the signature scan.
func (o *Orchestrator) runBuild(ctx context.Context, req *BuildRequest, logPath string) error {
	arrow()
	colSuccess.Printf("Building %s in %s\n", req.Package, req.Dir)

	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create build log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, "makepkg", "-si", "--noconfirm")
	cmd.Dir = req.Dir
	out := io.MultiWriter(os.Stdout, logFile)
	cmd.Stdout = out
	cmd.Stderr = out
	return o.Exec.Run(cmd)
}

// logHasSignatureFailure scans the captured build log for the failure
// markers. Pre-compressed logs (path or path.xz) are handled too.
func logHasSignatureFailure(logPath string) bool {
	data, err := readBuildLog(logPath)
	if err != nil {
		debugf("cannot read build log %s: %v\n", logPath, err)
		return false
	}
	text := string(data)
	for _, marker := range signatureMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// readBuildLog reads a build log, transparently decompressing .xz logs.
func readBuildLog(path string) ([]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path += ".xz"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz log: %w", err)
		}
		return io.ReadAll(xr)
	}
	return io.ReadAll(f)
}
