package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/axontrace/replayer/internal/models"
)

// Load reads path as YAML over Default(), applies the environment
// overlay, and validates the result. An empty path skips the file read
// and returns Default() with the overlay applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	ApplyEnvOverlay(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverlay overlays the environment variables spec.md §6.2 names
// explicitly (TOOL_PROVIDERS, REPLAY_MODE) plus the provider credentials
// and database DSN a deployed instance sets out-of-band from its config
// file.
//
// TOOL_PROVIDERS holds a JSON object mapping tool name -> {url,
// result_path?}. Invalid JSON disables external tooling entirely; when
// the variable is unset, the providers from the config file (none by
// default) are kept. The calculator built-in is unaffected either way,
// since it never goes through ToolRegistry.
func ApplyEnvOverlay(cfg *Config) {
	if raw := os.Getenv("TOOL_PROVIDERS"); raw != "" {
		var providers map[string]models.ToolConfig
		if err := json.Unmarshal([]byte(raw), &providers); err == nil {
			cfg.Tools.Providers = providers
		} else {
			cfg.Tools.Providers = map[string]models.ToolConfig{}
		}
	}

	if mode := os.Getenv("REPLAY_MODE"); mode != "" {
		cfg.Replay.Mode = mode
	}

	cfg.LLM.AnthropicAPIKey = envOrDefault("ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.OpenAIAPIKey = envOrDefault("OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.Database.DSN = envOrDefault("DATABASE_DSN", cfg.Database.DSN)
	cfg.Observability.OTLPEndpoint = envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Observability.OTLPEndpoint)
}
