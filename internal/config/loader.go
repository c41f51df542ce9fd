package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidLLMProviders lists known LLM provider names. Used by [Validate] to
// warn about unrecognised provider names.
var ValidLLMProviders = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment if it exists.
// A missing file is not an error; a malformed one is.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Environment values win
// over the YAML file so secrets stay out of checked-in configs.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		} else {
			slog.Warn("ignoring non-numeric DB_PORT", "value", v)
		}
	}

	setString(&cfg.Discord.Token, "DISCORD_TOKEN")
	setString(&cfg.LLM.APIKey, "ELSIE_LLM_API_KEY")
	setString(&cfg.LLM.Provider, "ELSIE_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "ELSIE_LLM_MODEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.LLM.Provider != "" && !slices.Contains(ValidLLMProviders, cfg.LLM.Provider) {
		slog.Warn("unknown LLM provider name — may be a typo or third-party provider",
			"name", cfg.LLM.Provider,
			"known", ValidLLMProviders,
		)
	}
	if cfg.LLM.Provider != "" && cfg.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required when llm.provider is set"))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0.0, 2.0]", cfg.LLM.Temperature))
	}
	for i, fb := range cfg.LLM.Fallbacks {
		if fb.Provider == "" {
			errs = append(errs, fmt.Errorf("llm.fallbacks[%d].provider is required", i))
		}
		if fb.Model == "" {
			errs = append(errs, fmt.Errorf("llm.fallbacks[%d].model is required", i))
		}
	}

	if cfg.Wiki.APIURL == "" {
		slog.Warn("wiki.api_url is empty; the ingest pipeline will not be able to crawl")
	}
	if cfg.Database.Name == "" {
		slog.Warn("database.name is empty; the knowledge store will not be available")
	}

	if cfg.Ingest.Workers < 0 {
		errs = append(errs, fmt.Errorf("ingest.workers %d must not be negative", cfg.Ingest.Workers))
	}
	if cfg.Ingest.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("ingest.page_delay %s must not be negative", cfg.Ingest.PageDelay))
	}
	if cfg.Prompt.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("prompt.token_budget %d must not be negative", cfg.Prompt.TokenBudget))
	}
	if p := cfg.Prompt.MeetingSchedulePattern; p != "" {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("prompt.meeting_schedule_pattern: %w", err))
		}
	}

	return errors.Join(errs...)
}
