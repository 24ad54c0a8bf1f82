package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/ctfboard/internal/printer"
	"github.com/dyluth/ctfboard/pkg/board"
)

var (
	parseFile   string
	parseMode   string
	parseRender bool
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a status board and report what it contains",
	Long: `Parse a status board as the bot would when seeding a new CTF, and
print a per-category summary plus any lines it had to skip.

Reads from stdin unless --file is given.

Examples:
  # Check a board copied out of Discord
  ctfboard parse --file board.txt --mode ad

  # Print the canonical rendering of a hand-edited board
  ctfboard parse --render < board.txt`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFile, "file", "f", "", "Board file (default: stdin)")
	parseCmd.Flags().StringVarP(&parseMode, "mode", "m", "jeopardy", "Competition mode: jeopardy or ad")
	parseCmd.Flags().BoolVar(&parseRender, "render", false, "Print the parsed board rendered again")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	mode, err := board.ParseMode(parseMode)
	if err != nil {
		return printer.Error(
			"invalid mode",
			err.Error(),
			[]string{"Valid modes: jeopardy, ad"},
		)
	}

	var in io.Reader = cmd.InOrStdin()
	if parseFile != "" {
		f, err := os.Open(parseFile)
		if err != nil {
			return printer.Error(
				"cannot read board",
				fmt.Sprintf("Error: %v", err),
				[]string{"Check the path passed to --file"},
			)
		}
		defer f.Close()
		in = f
	}

	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read board: %w", err)
	}

	res := board.Parse(string(text), mode)
	out := cmd.OutOrStdout()
	if err := printer.ParseReport(out, res); err != nil {
		return err
	}
	if parseRender {
		fmt.Fprintln(out)
		fmt.Fprintln(out, res.Competition.Render())
	}
	return nil
}
