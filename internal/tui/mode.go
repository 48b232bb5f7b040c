package tui

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// OutputMode describes how render progress should be presented.
type OutputMode int

const (
	// ModeTUI uses bubbletea for interactive stage rendering.
	ModeTUI OutputMode = iota
	// ModePlain writes log-style lines as stages complete.
	ModePlain
	// ModeJSON writes the structured result as JSON.
	ModeJSON
)

// DetectMode determines the appropriate output mode for the given writer.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if noProgress {
		return ModePlain
	}
	file, ok := out.(*os.File)
	if !ok {
		return ModePlain
	}
	if !isatty.IsTerminal(file.Fd()) && !isatty.IsCygwinTerminal(file.Fd()) {
		return ModePlain
	}
	term := os.Getenv("TERM")
	if term == "" || strings.EqualFold(term, "dumb") {
		return ModePlain
	}
	return ModeTUI
}
