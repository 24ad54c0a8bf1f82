package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/ctfboard/internal/scaffold"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration",
	Long: `Write a starter ctfboard.yml and a .env.example listing the secrets
serve reads from the environment.

Use --force to overwrite an existing configuration.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing ctfboard.yml and .env.example")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write the configuration to")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(initDir, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	scaffold.PrintSuccess()
	return nil
}
