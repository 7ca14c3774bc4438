package pacfall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: pacfall <operation> [arguments]")
	colSuccess.Println("Operations ending in 'c' go through the community helper")
	fmt.Println()
	colInfo.Println("Available Operations:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"-S", "<pkg...>", "Install prebuilt package(s)"},
		{"-Sc", "<pkg...>", "Install package(s) via the community helper"},
		{"-Ss", "<term>", "Search the binary repositories (and AUR when a helper exists)"},
		{"-Bfs", "<pkg>", "Build from source: official repo, then community recipes, then repo search"},
		{"-Bfsc", "<pkg>", "Build from source starting at the community recipe repository"},
		{"-SR", "<term>", "Search GitHub/GitLab/Bitbucket for a recipe repository and build it"},
		{"-SRc", "<term>", "Same as -SR with dependencies installed via the community helper"},
		{"-PKG", "[dir]", "Build the recipe in dir (default: current directory)"},
		{"-PKGc", "[dir]", "Same as -PKG with dependencies installed via the community helper"},
		{"-Syu", "", "Full system upgrade"},
		{"-Syuc", "", "Full system upgrade including AUR packages"},
		{"-R", "<pkg...>", "Remove package(s)"},
		{"-Rc", "<pkg...>", "Remove package(s) via the community helper"},
		{"-Rs", "<pkg...>", "Remove package(s) with unneeded dependencies"},
		{"-Rsc", "<pkg...>", "Recursive removal via the community helper"},
		{"-Q", "[pkg]", "List installed packages, or query one"},
		{"-Qi", "<pkg>", "Show detailed information for an installed package"},
		{"--contribute", "<file>", "Publish a recipe file to the shared contribution repository"},
		{"version", "", "Version information"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		colInfo.Println(c.Desc)
	}
	fmt.Println()
}

// rootOperations are the flags whose pacman legs need elevated privileges
// up front. Helper-routed operations escalate on their own.
var rootOperations = map[string]bool{
	"-S": true, "-Syu": true,
	"-R": true, "-Rs": true,
	"-Bfs": true, "-SR": true, "-PKG": true,
}

// authenticateOnce primes the sudo ticket at program start and keeps it
// alive so later steps do not stall on a password prompt mid-build.
func authenticateOnce(ctx context.Context) error {
	if os.Geteuid() == 0 {
		return nil
	}

	cmd := exec.Command("sudo", "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo authentication failed: %w", err)
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = exec.Command("sudo", "-nv").Run()
			}
		}
	}()
	return nil
}

// Main is the CLI entrypoint for cmd root main.go.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			arrow()
			color.Danger.Printf("Received %v. Cancelling gracefully\n", sig)
			cancel()

			// A second signal forces an immediate exit.
			select {
			case <-sigs:
				color.Danger.Println("Second interrupt received. Forcing immediate exit.")
				os.Exit(130)
			case <-time.After(2 * time.Second):
				color.Danger.Println("Graceful shutdown timeout. Exiting.")
				os.Exit(130)
			}
		case <-ctx.Done():
		}
	}()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	configPath := ConfigFile
	if root := os.Getenv("PACFALL_ROOT"); root != "" {
		configPath = root + ConfigFile
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read %s: %v\n", configPath, err)
	}
	initConfig(cfg)

	if rootOperations[os.Args[1]] {
		if err := authenticateOnce(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
			os.Exit(1)
		}
	}

	UserExec = &Executor{Context: ctx, ShouldRunAsRoot: false}
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	app := newApp(cfg, UserExec, RootExec)
	os.Exit(dispatch(ctx, app, os.Args[1], os.Args[2:]))
}

// dispatch routes one operation and returns the process exit code:
// 0 on success or user cancel, 1 on missing arguments or any
// unrecoverable failure.
func dispatch(ctx context.Context, app *App, op string, args []string) int {
	needArgs := func(n int) bool {
		if len(args) < n {
			colError.Printf("Error: %s requires an argument\n\n", op)
			printHelp()
			return false
		}
		return true
	}

	switch op {
	case "-h", "--help":
		printHelp()
		return 0

	case "version", "--version":
		fmt.Printf("pacfall %s (%s)\n", version, buildDate)
		return 0

	case "-S":
		if !needArgs(1) {
			return 1
		}
		return report(app.Pac.Install(ctx, false, args...))

	case "-Sc":
		if !needArgs(1) {
			return 1
		}
		if app.Helper == nil {
			colWarn.Println("Warning: no community helper found, falling back to pacman")
			return report(app.Pac.Install(ctx, false, args...))
		}
		return report(app.Helper.Install(ctx, false, args...))

	case "-Ss":
		if !needArgs(1) {
			return 1
		}
		if app.Helper != nil {
			return report(app.Helper.Search(ctx, args[0]))
		}
		return report(app.Pac.Search(ctx, args[0]))

	case "-Bfs", "-Bfsc", "-SR", "-SRc":
		if !needArgs(1) {
			return 1
		}
		start := TierOfficial
		if op == "-Bfsc" {
			start = TierAUR
		} else if op == "-SR" || op == "-SRc" {
			start = TierSearch
		}
		useHelper := strings.HasSuffix(op, "c")
		outcome, err := app.BuildFromSource(ctx, args[0], start, useHelper)
		return reportBuild(args[0], outcome, err)

	case "-PKG", "-PKGc":
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		outcome, err := app.BuildLocal(ctx, dir, op == "-PKGc")
		return reportBuild(dir, outcome, err)

	case "-Syu":
		return report(app.Pac.FullUpgrade(ctx, false))

	case "-Syuc":
		if app.Helper == nil {
			colWarn.Println("Warning: no community helper found, falling back to pacman")
			return report(app.Pac.FullUpgrade(ctx, false))
		}
		return report(app.Helper.FullUpgrade(ctx, false))

	case "-R", "-Rs", "-Rc", "-Rsc":
		if !needArgs(1) {
			return 1
		}
		recursive := strings.HasPrefix(op, "-Rs")
		if strings.HasSuffix(op, "c") && app.Helper != nil {
			return report(app.Helper.Remove(ctx, recursive, false, args...))
		}
		return report(app.Pac.Remove(ctx, recursive, false, args...))

	case "-Q":
		pkg := ""
		if len(args) > 0 {
			pkg = args[0]
		}
		return report(app.Pac.Query(ctx, pkg))

	case "-Qi":
		if !needArgs(1) {
			return 1
		}
		return report(app.Pac.QueryInfo(ctx, args[0]))

	case "--contribute":
		if !needArgs(1) {
			return 1
		}
		return report(app.Publisher.Publish(ctx, args[0]))

	default:
		colError.Printf("Error: unknown operation %s\n\n", op)
		printHelp()
		return 1
	}
}

func report(err error) int {
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

// reportBuild maps a build outcome to an exit code. User choices
// (cancel, already installed, recipe-less repository) exit 0.
func reportBuild(target string, outcome BuildOutcome, err error) int {
	if err != nil {
		switch {
		case errors.Is(err, errAlreadyInstalled):
			return 0
		case errors.Is(err, errCancelled):
			arrow()
			colNote.Println("Cancelled.")
			return 0
		case errors.Is(err, errInvalidChoice):
			return 1
		default:
			colError.Printf("Error: %v\n", err)
			return 1
		}
	}

	switch {
	case outcome.Succeeded:
		arrow()
		colSuccess.Printf("%s built and installed", target)
		if outcome.Retried {
			colSuccess.Printf(" (after one signature retry)")
		}
		fmt.Println()
		return 0
	case outcome.Reason == ReasonCancelled, outcome.Reason == ReasonRecipeMissing:
		return 0
	default:
		return 1
	}
}
