package printer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/dyluth/ctfboard/pkg/board"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Out and ErrOut are where messages go. Tests swap them for buffers.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(Out, msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(Out, format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(ErrOut, msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a formatted error with title, explanation and suggestions to
// ErrOut and returns a plain error carrying the title for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(ErrOut, "%s\n\n", title)
	fmt.Fprintf(ErrOut, "%s\n", explanation)

	if len(suggestions) > 0 {
		fmt.Fprintf(ErrOut, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(ErrOut, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(ErrOut, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(ErrOut, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// ParseReport writes a per-category summary of a parsed board followed by
// any lines the parser skipped.
func ParseReport(w io.Writer, res *board.ParseResult) error {
	snap := res.Competition.Snapshot()

	table := tablewriter.NewWriter(w)
	table.Header("Category", "Challenges", "Solved", "Assigned", "Vulns")
	for _, cat := range snap.Categories {
		var solved, assigned, vulns int
		for _, ch := range cat.Challenges {
			if ch.Solved {
				solved++
			}
			if len(ch.Assigned) > 0 {
				assigned++
			}
			vulns += len(ch.Vulns)
		}
		row := []string{
			cat.Name,
			strconv.Itoa(len(cat.Challenges)),
			strconv.Itoa(solved),
			strconv.Itoa(assigned),
			strconv.Itoa(vulns),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if len(res.Skipped) == 0 {
		green.Fprintf(w, "✓ %s board, %d categories, no skipped lines\n", snap.Mode, len(snap.Categories))
		return nil
	}
	yellow.Fprintf(w, "⚠️  %d skipped lines:\n", len(res.Skipped))
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "  line %d: %q\n", s.Line, s.Text)
	}
	return nil
}
