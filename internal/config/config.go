// Package config provides configuration types and defaults for towncrier.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/towncrier/internal/log"
)

// Config is the top-level towncrier configuration.
type Config struct {
	// Token is the Discord bot token. The DISCORD_BOT_TOKEN environment
	// variable takes precedence over the config file.
	Token string `mapstructure:"token"`

	// GuildID is the single guild (server) whose channels are managed.
	GuildID string `mapstructure:"guild_id"`

	// MappingsFile is the JSON file holding rig -> channel ID mappings.
	MappingsFile string `mapstructure:"mappings_file"`

	// DefaultRig routes events that carry no rig of their own.
	DefaultRig string `mapstructure:"default_rig"`

	Debug   bool   `mapstructure:"debug"`
	LogPath string `mapstructure:"log_path"`

	Cache   CacheConfig   `mapstructure:"cache"`
	History HistoryConfig `mapstructure:"history"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// CacheConfig controls the channel-name lookup cache used by the
// send_discord_message tool path.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ChannelTTL bounds how long a name -> channel lookup stays cached.
	ChannelTTL time.Duration `mapstructure:"channel_ttl"`
}

// HistoryConfig controls the SQLite delivery log.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig configures the OpenTelemetry tracing subsystem.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // "none", "stdout", "otlp"
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		MappingsFile: "channel_mappings.json",
		DefaultRig:   "gastown",
		LogPath:      "towncrier.log",
		Cache: CacheConfig{
			Enabled:    true,
			ChannelTTL: 30 * time.Second,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "towncrier_history.db",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "stdout",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "towncrier",
		},
	}
}

// Validate checks the configuration for errors. Token and guild are only
// required when the relay actually runs; commands like preview and
// rigs:list work without them.
func Validate(cfg Config) error {
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	if cfg.Cache.ChannelTTL < 0 {
		return fmt.Errorf("cache.channel_ttl must not be negative, got %v", cfg.Cache.ChannelTTL)
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// ValidateRelay checks the extra fields the relay daemon needs.
func ValidateRelay(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if cfg.Token == "" {
		return fmt.Errorf("discord token is required (set DISCORD_BOT_TOKEN or token in the config file)")
	}
	if cfg.GuildID == "" {
		return fmt.Errorf("guild_id is required")
	}
	if cfg.MappingsFile == "" {
		return fmt.Errorf("mappings_file is required")
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}

	return nil
}

// DefaultConfigTemplate returns the commented YAML written on first run.
func DefaultConfigTemplate() string {
	return `# towncrier configuration
# Discord bot token. Prefer the DISCORD_BOT_TOKEN environment variable.
# token: ""

# The guild (server) whose channels receive Gas Town notifications.
guild_id: ""

# JSON file holding rig -> channel ID mappings.
mappings_file: channel_mappings.json

# Rig used when an event carries none.
default_rig: gastown

# Structured debug log (enable with --debug or TOWNCRIER_DEBUG=1).
log_path: towncrier.log

cache:
  enabled: true
  channel_ttl: 30s

history:
  enabled: false
  path: towncrier_history.db

tracing:
  enabled: false
  exporter: stdout # none, stdout, otlp
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: towncrier
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
