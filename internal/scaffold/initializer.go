package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/ctfboard/internal/config"
	"github.com/dyluth/ctfboard/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Names of the files init writes.
const (
	ConfigFile = "ctfboard.yml"
	EnvFile    = ".env.example"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes a starter configuration into dir.
// If force is true, existing files are overwritten.
func Initialize(dir string, force bool) error {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		if force {
			if _, err := os.Stat(path); err == nil {
				printer.Warning("Overwriting existing %s...\n", file.Path)
			}
		}
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return validateCreatedConfig(filepath.Join(dir, ConfigFile))
}

// getTemplateFiles reads all template files
func getTemplateFiles() ([]FileInfo, error) {
	cfg, err := templatesFS.ReadFile("templates/ctfboard.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", ConfigFile, err)
	}
	env, err := templatesFS.ReadFile("templates/env.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", EnvFile, err)
	}

	return []FileInfo{
		{Path: ConfigFile, Content: cfg, Permissions: 0644},
		// Holds secrets once filled in.
		{Path: EnvFile, Content: env, Permissions: 0600},
	}, nil
}

// validateCreatedConfig checks the written file passes the same validation
// serve applies.
func validateCreatedConfig(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ConfigFile, err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", ConfigFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}
	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	printer.Success("Initialized ctfboard configuration\n")
	printer.Info("\nCreated:\n")
	printer.Info("  ✓ %s\n", ConfigFile)
	printer.Info("  ✓ %s\n", EnvFile)
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Fill in the guild, role and channel IDs in %s\n", ConfigFile)
	printer.Info("  2. Export CTFBOARD_BOT_TOKEN (see %s)\n", EnvFile)
	printer.Info("  3. Run 'ctfboard serve'\n")
}
