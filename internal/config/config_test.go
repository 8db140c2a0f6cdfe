package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/axontrace/replayer/internal/models"
)

func TestLoad_DefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.LLM.DefaultModel != "gpt-4o-mini" {
		t.Fatalf("LLM.DefaultModel = %q, want gpt-4o-mini", cfg.LLM.DefaultModel)
	}
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := "server:\n  host: 127.0.0.1\n  port: 9999\ndatabase:\n  driver: sqlite\n  dsn: file:test.db\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 || cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file:test.db" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
}

func TestLoad_RejectsNonMemoryDriverWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for postgres driver without a dsn")
	}
}

func TestApplyEnvOverlay_ToolProvidersJSON(t *testing.T) {
	t.Setenv("TOOL_PROVIDERS", `{"geocode":{"url":"https://example.com/geo?q={q}"}}`)

	cfg := Default()
	ApplyEnvOverlay(&cfg)

	if len(cfg.Tools.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(cfg.Tools.Providers))
	}
	if cfg.Tools.Providers["geocode"].URL != "https://example.com/geo?q={q}" {
		t.Fatalf("unexpected geocode provider: %+v", cfg.Tools.Providers["geocode"])
	}
}

func TestApplyEnvOverlay_InvalidToolProvidersDisablesTooling(t *testing.T) {
	t.Setenv("TOOL_PROVIDERS", "not json")

	cfg := Default()
	cfg.Tools.Providers = map[string]models.ToolConfig{"stale": {URL: "x"}}
	ApplyEnvOverlay(&cfg)

	if len(cfg.Tools.Providers) != 0 {
		t.Fatalf("expected providers cleared on invalid JSON, got %+v", cfg.Tools.Providers)
	}
}

func TestApplyEnvOverlay_ReplayModeOverridesYAML(t *testing.T) {
	t.Setenv("REPLAY_MODE", "full")

	cfg := Default()
	cfg.Replay.Mode = "component"
	ApplyEnvOverlay(&cfg)

	if cfg.Replay.Mode != "full" {
		t.Fatalf("Replay.Mode = %q, want full", cfg.Replay.Mode)
	}
}

func TestReservedToolName(t *testing.T) {
	for _, name := range []string{"geocode", "weather_api", "weather_api_fallback"} {
		if !ReservedToolName(name) {
			t.Fatalf("expected %q to be reserved", name)
		}
	}
	if ReservedToolName("custom_tool") {
		t.Fatal("expected custom_tool to not be reserved")
	}
}
