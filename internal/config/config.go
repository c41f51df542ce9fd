// Package config provides the configuration schema, loader, and LLM provider
// registry for the Elsie assistant.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/daedalus-fleet/elsie/internal/fleet"
)

// LogLevel controls log verbosity for the Elsie server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Elsie.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	Wiki     WikiConfig     `yaml:"wiki"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Prompt   PromptConfig   `yaml:"prompt"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Fleet    fleet.Config   `yaml:"fleet"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address for the Prometheus /metrics endpoint
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DiscordConfig holds the Discord bot connection settings.
type DiscordConfig struct {
	// Token is the Discord bot token. Usually supplied via the DISCORD_TOKEN
	// environment variable rather than the YAML file.
	Token string `yaml:"token"`

	// BotName is the display name the bot answers to. Default: "Elsie".
	BotName string `yaml:"bot_name"`

	// DGMRoleID is the Discord role ID allowed to use [DGM] scene control
	// tags. Empty allows everyone.
	DGMRoleID string `yaml:"dgm_role_id"`

	// AllowedChannels restricts the bot to the listed channel IDs.
	// Empty means all channels the bot can read.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// WikiConfig holds the MediaWiki API settings for the crawler.
type WikiConfig struct {
	// APIURL is the MediaWiki api.php endpoint
	// (e.g., "https://wiki.example.org/api.php").
	APIURL string `yaml:"api_url"`

	// UserAgent identifies the crawler to the wiki. MediaWiki installations
	// commonly reject requests without one.
	UserAgent string `yaml:"user_agent"`
}

// ArchiveConfig holds the external Federation Archives fallback settings.
type ArchiveConfig struct {
	// APIURL is the archive's MediaWiki api.php endpoint. Empty disables the
	// archive fallback.
	APIURL string `yaml:"api_url"`
}

// DatabaseConfig holds PostgreSQL connection settings. All fields can be
// overridden by DB_* environment variables (see [ApplyEnv]).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN assembles the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	host := d.Host
	if host == "" {
		host = "localhost"
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), host, port, d.Name, sslMode)
}

// LLMConfig selects and configures the LLM backend.
type LLMConfig struct {
	// Provider selects the registered provider implementation
	// (e.g., "openai", "anthropic", "ollama").
	Provider string `yaml:"provider"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// APIKey is the authentication key for the provider's API if any.
	// Usually supplied via the provider's environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Temperature controls output randomness. Zero uses the provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps completion length. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// Fallbacks lists backends tried in order when the primary fails.
	// Nested fallbacks are ignored.
	Fallbacks []LLMConfig `yaml:"fallbacks"`
}

// PromptConfig tunes prompt assembly.
type PromptConfig struct {
	// TokenBudget caps the flattened prompt size. Zero uses the built-in
	// default.
	TokenBudget int `yaml:"token_budget"`

	// PersonalityMode selects a canned-reply personality variant set
	// (e.g., "counselor"). Empty uses the default bartender voice.
	PersonalityMode string `yaml:"personality_mode"`

	// MeetingSchedulePattern is a regexp for out-of-world scheduling lines
	// to scrub from in-character replies. Empty uses the built-in default.
	MeetingSchedulePattern string `yaml:"meeting_schedule_pattern"`
}

// IngestConfig tunes the wiki crawler.
type IngestConfig struct {
	// Workers is the number of concurrent page crawlers. Zero uses the
	// built-in default.
	Workers int `yaml:"workers"`

	// PageDelay is the politeness delay between page fetches per worker.
	PageDelay time.Duration `yaml:"page_delay"`

	// MaxContentLength is the character threshold above which pages are
	// split into parts. Zero uses the built-in default.
	MaxContentLength int `yaml:"max_content_length"`
}
