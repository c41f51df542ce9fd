package config

import (
	"strings"
	"testing"
)

const sampleYAML = `
server:
  log_level: info
  metrics_addr: ":9090"
discord:
  bot_name: Elsie
wiki:
  api_url: https://wiki.example.org/api.php
  user_agent: elsie-crawler/1.0
database:
  host: db.example.org
  port: 5433
  name: elsie
  user: elsie
  password: secret
llm:
  provider: openai
  model: gpt-4o
  temperature: 0.7
prompt:
  token_budget: 6000
fleet:
  ships:
    - Stardancer
    - Adagio
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("llm model = %q", cfg.LLM.Model)
	}
	if len(cfg.Fleet.Ships) != 2 {
		t.Errorf("fleet ships = %v", cfg.Fleet.Ships)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("serverr:\n  log_level: info\n"))
	if err == nil {
		t.Error("expected error for unknown top-level field")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.LLM.Provider = "openai"
	cfg.LLM.Temperature = 3.5
	cfg.Ingest.Workers = -1
	cfg.Prompt.MeetingSchedulePattern = "("

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"server.log_level", "llm.model", "llm.temperature", "ingest.workers", "prompt.meeting_schedule_pattern"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q:\n%v", want, err)
		}
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Name: "elsie", User: "elsie", Password: "p@ss word"}
	dsn := d.DSN()
	if !strings.HasPrefix(dsn, "postgres://elsie:") {
		t.Errorf("DSN = %q", dsn)
	}
	if !strings.Contains(dsn, "@localhost:5432/elsie?sslmode=disable") {
		t.Errorf("defaults not applied: %q", dsn)
	}
	if strings.Contains(dsn, "p@ss word") {
		t.Errorf("password must be escaped: %q", dsn)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_PORT", "6000")
	t.Setenv("DISCORD_TOKEN", "tok-123")

	cfg := &Config{}
	cfg.Database.Host = "filehost"
	ApplyEnv(cfg)

	if cfg.Database.Host != "envhost" {
		t.Errorf("env must win over file: %q", cfg.Database.Host)
	}
	if cfg.Database.Port != 6000 {
		t.Errorf("port = %d", cfg.Database.Port)
	}
	if cfg.Discord.Token != "tok-123" {
		t.Errorf("token = %q", cfg.Discord.Token)
	}
}

func TestDiff(t *testing.T) {
	old := &Config{}
	old.Server.LogLevel = LogInfo
	old.Prompt.PersonalityMode = ""
	old.Fleet.Ships = []string{"Stardancer"}

	new := &Config{}
	new.Server.LogLevel = LogDebug
	new.Prompt.PersonalityMode = "counselor"
	new.Fleet.Ships = []string{"Stardancer", "Adagio"}

	d := Diff(old, new)
	if !d.Changed() {
		t.Fatal("expected changes")
	}
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Error("log level change not detected")
	}
	if !d.PersonalityModeChanged || d.NewPersonalityMode != "counselor" {
		t.Error("personality mode change not detected")
	}
	if !d.FleetChanged {
		t.Error("fleet change not detected")
	}

	if Diff(old, old).Changed() {
		t.Error("identical configs must not diff")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.CreateLLM(LLMConfig{Provider: "openai"}); err == nil {
		t.Error("expected ErrProviderNotRegistered")
	}

	r = DefaultRegistry()
	// Every documented provider name must resolve to a factory. Constructor
	// errors (missing key) are fine; unregistered names are not.
	for _, name := range ValidLLMProviders {
		_, err := r.CreateLLM(LLMConfig{Provider: name, Model: "m", APIKey: "k"})
		if err != nil && strings.Contains(err.Error(), "not registered") {
			t.Errorf("provider %q has no factory", name)
		}
	}
}
