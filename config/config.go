// Package config persists LLM provider settings to
// ~/.tee-flow-inspector/config.yaml and keeps API keys out of it entirely,
// loading them instead from ~/.tee-flow-inspector/.env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ta-061/tee-flow-inspector/llmclient"
)

// Config holds everything the analyze pipeline needs to talk to an LLM and
// to an optional retrieval store, short of the API key itself.
type Config struct {
	LLM LLMConfig `yaml:"llm"`
	RAG RAGConfig `yaml:"rag"`
}

// LLMConfig selects and tunes the active provider. APIKey is loaded from
// the environment at read time and is never marshaled to YAML.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "ollama" or "openai" (also vLLM, xAI Grok, ...)
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"baseUrl"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	TimeoutSecs int     `yaml:"timeoutSecs"`

	APIKey string `yaml:"-"`
}

// RAGConfig toggles and points at the retrieval-augmented-generation store
// consulted on the final intermediate turn before a sink (§4.5.3).
type RAGConfig struct {
	Enabled   bool   `yaml:"enabled"`
	IndexPath string `yaml:"indexPath"`
	TopK      int    `yaml:"topK"`
}

func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    string(llmclient.ProviderOllama),
			Model:       "qwen2.5-coder:32b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.2,
			MaxTokens:   4000,
			TimeoutSecs: 120,
		},
		RAG: RAGConfig{
			Enabled: false,
			TopK:    5,
		},
	}
}

// Dir returns ~/.tee-flow-inspector, creating it if absent.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".tee-flow-inspector")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func configPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func envPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".env"), nil
}

// Load reads config.yaml, falling back to defaults if it doesn't exist yet,
// then overlays the API key from .env (never from the YAML).
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, uerr)
		}
	case os.IsNotExist(err):
		// first run: defaults stand.
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := loadAPIKey(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAPIKey(cfg *Config) error {
	env, err := envPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(env); statErr == nil {
		if loadErr := godotenv.Load(env); loadErr != nil {
			return fmt.Errorf("loading %s: %w", env, loadErr)
		}
	}
	if key := os.Getenv(apiKeyEnvVar(cfg.LLM.Provider)); key != "" {
		cfg.LLM.APIKey = key
	}
	return nil
}

func apiKeyEnvVar(provider string) string {
	switch provider {
	case string(llmclient.ProviderOpenAI):
		return "TEE_FLOW_OPENAI_API_KEY"
	default:
		return "TEE_FLOW_API_KEY"
	}
}

// Save writes cfg to config.yaml (never the API key) and, if cfg.LLM.APIKey
// is set, upserts it into .env.
func Save(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if cfg.LLM.APIKey == "" {
		return nil
	}
	env, err := envPath()
	if err != nil {
		return err
	}
	existing, _ := godotenv.Read(env) // absent file is fine, existing stays nil
	if existing == nil {
		existing = map[string]string{}
	}
	existing[apiKeyEnvVar(cfg.LLM.Provider)] = cfg.LLM.APIKey
	if err := godotenv.Write(existing, env); err != nil {
		return fmt.Errorf("writing %s: %w", env, err)
	}
	return os.Chmod(env, 0o600)
}

// Validate rejects configurations the pipeline cannot act on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case string(llmclient.ProviderOllama), string(llmclient.ProviderOpenAI):
	default:
		return fmt.Errorf("unknown provider %q (want %q or %q)", c.LLM.Provider, llmclient.ProviderOllama, llmclient.ProviderOpenAI)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.baseUrl must be set")
	}
	if c.LLM.Provider == string(llmclient.ProviderOpenAI) && c.LLM.APIKey == "" {
		return fmt.Errorf("provider %q requires an API key (run `teeflow configure set %s`)", c.LLM.Provider, c.LLM.Provider)
	}
	return nil
}

// Timeout returns the configured request timeout as a Duration.
func (c *Config) Timeout() time.Duration {
	if c.LLM.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// NewClient builds the concrete ChatCompleter the configured provider calls
// for. The caller composes it further with llmclient.RateLimited and
// llmclient.Retrying; this is only concerned with wire format and model.
func (c *Config) NewClient() *llmclient.HTTPClient {
	switch c.LLM.Provider {
	case string(llmclient.ProviderOpenAI):
		client := llmclient.NewOpenAIClient(c.LLM.BaseURL, c.LLM.Model, c.LLM.APIKey)
		client.Temperature = c.LLM.Temperature
		client.MaxTokens = c.LLM.MaxTokens
		client.HTTP.Timeout = c.Timeout()
		return client
	default:
		client := llmclient.NewOllamaClient(c.LLM.BaseURL, c.LLM.Model)
		client.Temperature = c.LLM.Temperature
		client.MaxTokens = c.LLM.MaxTokens
		client.HTTP.Timeout = c.Timeout()
		return client
	}
}

// Redacted returns a copy of cfg with the API key cleared, for `configure
// export`.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.LLM.APIKey = ""
	return &cp
}
