package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider selects the wire format HTTPClient speaks.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai" // also compatible with vLLM, xAI Grok, etc.
)

// HTTPClient is a generic Ollama/OpenAI-compatible ChatCompleter. It is the
// one concrete implementation this system ships; per-provider production
// clients live outside this design (§1 Non-goals).
type HTTPClient struct {
	Provider    Provider
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	HTTP        *http.Client
}

// NewOllamaClient returns a client speaking Ollama's /api/chat format.
func NewOllamaClient(baseURL, model string) *HTTPClient {
	return &HTTPClient{
		Provider:  ProviderOllama,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		MaxTokens: 2000,
		HTTP:      &http.Client{Timeout: 120 * time.Second},
	}
}

// NewOpenAIClient returns a client speaking the OpenAI chat-completions
// format, including any OpenAI-compatible endpoint.
func NewOpenAIClient(baseURL, model, apiKey string) *HTTPClient {
	return &HTTPClient{
		Provider:  ProviderOpenAI,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		APIKey:    apiKey,
		MaxTokens: 4000,
		HTTP:      &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *HTTPClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	switch c.Provider {
	case ProviderOllama:
		return c.chatOllama(ctx, messages)
	case ProviderOpenAI:
		return c.chatOpenAI(ctx, messages)
	default:
		return "", classify(ErrUnknown, fmt.Sprintf("unsupported provider %q", c.Provider), nil)
	}
}

func (c *HTTPClient) chatOllama(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":    c.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": c.Temperature,
			"num_predict": c.MaxTokens,
		},
	})
	if err != nil {
		return "", classify(ErrUnknown, "marshal request", err)
	}

	resp, err := c.post(ctx, c.BaseURL+"/api/chat", body, false)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return "", classify(ErrUnknown, "parse Ollama response", err)
	}
	GlobalUsage().Record(parsed.PromptEvalCount, parsed.EvalCount)
	return parsed.Message.Content, nil
}

func (c *HTTPClient) chatOpenAI(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": c.Temperature,
		"max_tokens":  c.MaxTokens,
	})
	if err != nil {
		return "", classify(ErrUnknown, "marshal request", err)
	}

	resp, err := c.post(ctx, c.BaseURL+"/chat/completions", body, true)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return "", classify(ErrUnknown, "parse OpenAI response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", classify(ErrUnknown, "no choices in response", nil)
	}
	GlobalUsage().Record(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	return parsed.Choices[0].Message.Content, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, body []byte, auth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, classify(ErrUnknown, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classify(ErrTimeout, "request timed out", err)
		}
		return nil, classify(ErrNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ErrNetwork, "read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classify(classifyStatus(resp.StatusCode), fmt.Sprintf("HTTP %d", resp.StatusCode), fmt.Errorf("%s", truncate(string(raw), 500)))
	}
	return raw, nil
}

func classifyStatus(status int) ErrorClass {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusRequestEntityTooLarge:
		return ErrTokenLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrServer
	default:
		if status >= 500 {
			return ErrServer
		}
		return ErrUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
