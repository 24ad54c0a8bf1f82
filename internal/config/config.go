package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when a field is left empty.
const (
	DefaultRenderInterval = 15 * time.Second
	DefaultSolvedPrefix   = "✓-"
	DefaultHealthAddr     = ":8080"
	DefaultExportDir      = "exports"
	DefaultLogLevel       = "info"
)

// Config represents the top-level ctfboard.yml configuration
type Config struct {
	Version string         `yaml:"version"`
	Bot     BotConfig      `yaml:"bot"`
	Mgmt    MgmtConfig     `yaml:"mgmt"`
	CTFNote *CTFNoteConfig `yaml:"ctfnote,omitempty"`
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
	Health  *HealthConfig  `yaml:"health,omitempty"`
	Export  *ExportConfig  `yaml:"export,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`

	// Secrets are never read from the file.
	Secrets Secrets `yaml:"-"`
}

// BotConfig identifies the Discord application and the guild it serves
type BotConfig struct {
	ClientID string `yaml:"client_id"`
	Guild    string `yaml:"guild"`
}

// MgmtConfig holds the competition management settings
type MgmtConfig struct {
	Categories        []string      `yaml:"categories"`
	PlayerRole        string        `yaml:"player_role"`
	AdminRole         string        `yaml:"admin_role"`
	TranscriptChannel string        `yaml:"transcript_channel"`
	LoadingEmoji      string        `yaml:"loading_emoji,omitempty"`
	RenderInterval    time.Duration `yaml:"render_interval,omitempty"` // Default: 15s
	SolvedPrefix      string        `yaml:"solved_prefix,omitempty"`   // Default: "✓-"
}

// CTFNoteConfig configures the note-service mirror
type CTFNoteConfig struct {
	URL        string `yaml:"url"`
	AdminLogin string `yaml:"admin_login"`
	Enabled    bool   `yaml:"enabled"`
}

// RedisConfig points at the optional board mirror
type RedisConfig struct {
	URL string `yaml:"url"`
}

// HealthConfig configures the health and metrics listener
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// ExportConfig configures where channel transcripts are written
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// Secrets are loaded from the environment only.
type Secrets struct {
	BotToken         string `env:"CTFBOARD_BOT_TOKEN"`
	CTFNoteAdminPass string `env:"CTFNOTE_ADMIN_PASS"`
	RedisURL         string `env:"REDIS_URL"`
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Bot.Guild == "" {
		return fmt.Errorf("bot.guild is required")
	}

	if err := c.Mgmt.Validate(); err != nil {
		return err
	}

	if c.CTFNote != nil && c.CTFNote.Enabled {
		if c.CTFNote.URL == "" {
			return fmt.Errorf("ctfnote.url is required when ctfnote is enabled")
		}
		c.CTFNote.URL = strings.TrimRight(c.CTFNote.URL, "/")
	}

	if c.Health == nil {
		c.Health = &HealthConfig{}
	}
	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}

	if c.Export == nil {
		c.Export = &ExportConfig{}
	}
	if c.Export.Dir == "" {
		c.Export.Dir = DefaultExportDir
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	return nil
}

// Validate checks the management section and applies its defaults
func (m *MgmtConfig) Validate() error {
	if len(m.Categories) == 0 {
		return fmt.Errorf("mgmt.categories must list at least one category")
	}

	seen := make(map[string]bool)
	for _, cat := range m.Categories {
		if cat == "" {
			return fmt.Errorf("mgmt.categories contains an empty name")
		}
		// The board upper-cases category headers and the parser lower-cases
		// them again, so only lowercase names survive a restart.
		if strings.ToLower(cat) != cat {
			return fmt.Errorf("category '%s' must be lowercase", cat)
		}
		if strings.TrimSpace(cat) != cat {
			return fmt.Errorf("category '%s' has surrounding whitespace", cat)
		}
		if strings.ContainsAny(cat, "|\n\r") {
			return fmt.Errorf("category '%s' contains a board delimiter", cat)
		}
		if seen[cat] {
			return fmt.Errorf("duplicate category '%s'", cat)
		}
		seen[cat] = true
	}

	if m.PlayerRole == "" {
		return fmt.Errorf("mgmt.player_role is required")
	}
	if m.AdminRole == "" {
		return fmt.Errorf("mgmt.admin_role is required")
	}
	if m.TranscriptChannel == "" {
		return fmt.Errorf("mgmt.transcript_channel is required")
	}

	if m.RenderInterval == 0 {
		m.RenderInterval = DefaultRenderInterval
	}
	if m.RenderInterval < time.Second {
		return fmt.Errorf("mgmt.render_interval must be >= 1s, got %s", m.RenderInterval)
	}
	if m.SolvedPrefix == "" {
		m.SolvedPrefix = DefaultSolvedPrefix
	}

	return nil
}

// RedisURL returns the effective Redis URL; the environment wins over the file.
// An empty result means the mirror is disabled.
func (c *Config) RedisURL() string {
	if c.Secrets.RedisURL != "" {
		return c.Secrets.RedisURL
	}
	if c.Redis != nil {
		return c.Redis.URL
	}
	return ""
}

// NotesEnabled reports whether the note-service mirror should run
func (c *Config) NotesEnabled() bool {
	return c.CTFNote != nil && c.CTFNote.Enabled
}

// Load reads and validates ctfboard.yml from the specified path, then overlays
// secrets from the environment
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := env.Parse(&config.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return &config, nil
}
