package ui

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/deptexhq/deptex/internal/model"
)

// ANSI256 color codes matching the dashboard palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray

	colorCritical = 196 // red
	colorHigh     = 208 // orange
	colorMedium   = 178 // gold
	colorLow      = 74  // blue
	colorHealthy  = 78  // green
)

var noColor bool

// colorize wraps s in a 256-color foreground escape, or returns it
// untouched when color is disabled.
func colorize(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return colorize(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return colorize(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return colorize(colorCmd, s) }

// RenderSeverity returns s colored by vulnerability severity.
func RenderSeverity(sev model.Severity, s string) string {
	switch sev {
	case model.SeverityCritical:
		return colorize(colorCritical, s)
	case model.SeverityHigh:
		return colorize(colorHigh, s)
	case model.SeverityMedium:
		return colorize(colorMedium, s)
	case model.SeverityLow:
		return colorize(colorLow, s)
	default:
		return colorize(colorMuted, s)
	}
}

// RenderBracket returns s colored by depscore bracket.
func RenderBracket(b model.ScoreBracket, s string) string {
	switch b {
	case model.BracketHealthy:
		return colorize(colorHealthy, s)
	case model.BracketLow:
		return colorize(colorLow, s)
	case model.BracketModerate:
		return colorize(colorMedium, s)
	case model.BracketUrgent:
		return colorize(colorCritical, s)
	default:
		return colorize(colorMuted, s)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// ShouldUseColor reports whether stdout should receive ANSI colors. NO_COLOR
// wins over everything, CLICOLOR_FORCE=1 overrides the TTY check, and
// CLICOLOR=0 opts out. Otherwise color follows terminal detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" { // https://no-color.org
		return false
	}
	switch {
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
