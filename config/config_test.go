package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/llmclient"
)

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TEE_FLOW_API_KEY", "")
	t.Setenv("TEE_FLOW_OPENAI_API_KEY", "")
}

func TestLoad_ReturnsDefaultsWhenNoFileExists(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, string(llmclient.ProviderOllama), cfg.LLM.Provider)
	assert.NotEmpty(t, cfg.LLM.Model)
	assert.Equal(t, "", cfg.LLM.APIKey)
}

func TestSaveThenLoad_RoundTripsSettingsAndAPIKey(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.LLM.Provider = string(llmclient.ProviderOpenAI)
	cfg.LLM.Model = "gpt-4.1"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.APIKey = "sk-test-123"
	cfg.RAG.Enabled = true
	cfg.RAG.IndexPath = "/tmp/index"

	require.NoError(t, Save(cfg))

	reloaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", reloaded.LLM.Model)
	assert.Equal(t, "https://api.openai.com/v1", reloaded.LLM.BaseURL)
	assert.True(t, reloaded.RAG.Enabled)
	assert.Equal(t, "sk-test-123", reloaded.LLM.APIKey)
}

func TestSave_NeverWritesAPIKeyToYAML(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.LLM.APIKey = "sk-should-not-appear-in-yaml"
	require.NoError(t, Save(cfg))

	path, err := configPath()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-should-not-appear-in-yaml")
}

func TestValidate_RejectsMissingAPIKeyForOpenAI(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.Provider = string(llmclient.ProviderOpenAI)
	cfg.LLM.BaseURL = "https://api.openai.com/v1"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestValidate_AcceptsOllamaWithoutAPIKey(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.Provider = "does-not-exist"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRedacted_ClearsAPIKeyWithoutMutatingOriginal(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.APIKey = "sk-secret"

	redacted := cfg.Redacted()
	assert.Equal(t, "", redacted.LLM.APIKey)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
}

func TestNewClient_SelectsProviderWireFormat(t *testing.T) {
	cfg := defaultConfig()
	client := cfg.NewClient()
	assert.Equal(t, llmclient.ProviderOllama, client.Provider)

	cfg.LLM.Provider = string(llmclient.ProviderOpenAI)
	cfg.LLM.APIKey = "sk-test"
	client = cfg.NewClient()
	assert.Equal(t, llmclient.ProviderOpenAI, client.Provider)
	assert.Equal(t, "sk-test", client.APIKey)
}
