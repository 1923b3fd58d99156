package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/deptexhq/deptex/internal/ui"
	"github.com/spf13/cobra"
)

// Cobra emits plain-text help; these patterns pick out the pieces worth
// tinting. "Usage:" is left alone on purpose.
var (
	// Unindented section headers such as "Browse:" or "Flags:".
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)

	// Command names: two-space indent, the name, then the description gap.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)

	// Flag type annotations, e.g. "--url string", "--limit int".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(string|int|int32|duration|stringSlice|stringArray)`)

	// Quoted defaults only, so [command] and [flags] stay untouched.
	reDefault = regexp.MustCompile(`\(default "[^"]*"\)`)
)

// colorizedHelpFunc returns a cobra help function that tints the generated
// help text when stdout wants color, and prints it untouched otherwise.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			cmd.SetOut(out)
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)

		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput tints section headers, command names, flag types, and
// quoted defaults in cobra's help text. The Render helpers return their
// input unchanged when color is off, so every template degrades to the
// identity replacement.
func colorizeHelpOutput(s string) string {
	s = reGroupHeader.ReplaceAllStringFunc(s, func(m string) string {
		return ui.RenderAccent(strings.TrimSpace(m))
	})
	s = reCommand.ReplaceAllString(s, "$1"+ui.RenderCommand("$2")+"$3")
	s = reFlagType.ReplaceAllString(s, "$1"+ui.RenderMuted("$2"))
	return reDefault.ReplaceAllString(s, ui.RenderMuted("$0"))
}
