package pacfall

import (
	"errors"

	"github.com/gookit/color"
)

// Global variables
var (
	Debug      bool
	Verbose    bool
	ConfigFile = "/etc/pacfall.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time

	// Global executors (assigned in Main)
	UserExec Runner
	RootExec Runner

	errRecipeNotFound   = errors.New("no build recipe found")
	errCancelled        = errors.New("cancelled by user")
	errInvalidChoice    = errors.New("invalid selection")
	errAlreadyInstalled = errors.New("package already installed")
	errNoRecipe         = errors.New("repository contains no recipe")
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
