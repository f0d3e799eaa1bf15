package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ta-061/tee-flow-inspector/config"
	"github.com/ta-061/tee-flow-inspector/llmclient"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "View and edit the LLM provider configuration",
	Long: `configure manages the provider, model, and endpoint settings used by
` + "`teeflow analyze`" + `. API keys are kept out of config.yaml entirely and
stored in a sibling .env file.

Running 'teeflow configure' with no subcommand launches an interactive
prompt for provider, model, base URL, and (if required) API key.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInteractiveConfigure()
	},
}

var configureStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the active configuration (API key redacted)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("provider:   %s\n", cfg.LLM.Provider)
		fmt.Printf("model:      %s\n", cfg.LLM.Model)
		fmt.Printf("baseUrl:    %s\n", cfg.LLM.BaseURL)
		fmt.Printf("temperature: %.2f\n", cfg.LLM.Temperature)
		fmt.Printf("maxTokens:  %d\n", cfg.LLM.MaxTokens)
		fmt.Printf("timeout:    %ds\n", cfg.LLM.TimeoutSecs)
		if cfg.LLM.APIKey != "" {
			fmt.Println("apiKey:     ****** (set)")
		} else {
			fmt.Println("apiKey:     (not set)")
		}
		fmt.Printf("rag:        enabled=%t indexPath=%q topK=%d\n", cfg.RAG.Enabled, cfg.RAG.IndexPath, cfg.RAG.TopK)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nconfiguration is incomplete: %v\n", err)
		} else {
			fmt.Println("\nconfiguration is valid")
		}
		return nil
	},
}

var configureTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a single chat-completion round trip to verify connectivity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is incomplete, run `teeflow configure`: %w", err)
		}
		client := cfg.NewClient()
		reply, err := client.ChatCompletion(context.Background(), []llmclient.Message{
			{Role: "user", Content: "Reply with the single word OK."},
		})
		if err != nil {
			return fmt.Errorf("round trip to %s (%s) failed: %w", cfg.LLM.Provider, cfg.LLM.BaseURL, err)
		}
		fmt.Printf("connected to %s (%s), model %s\n", cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.Model)
		fmt.Printf("response: %s\n", strings.TrimSpace(reply))
		return nil
	},
}

var configureSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Switch the active provider (ollama or openai) and update its settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]
		switch provider {
		case string(llmclient.ProviderOllama), string(llmclient.ProviderOpenAI):
		default:
			return fmt.Errorf("unknown provider %q (want %q or %q)", provider, llmclient.ProviderOllama, llmclient.ProviderOpenAI)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.LLM.Provider = provider

		model, _ := cmd.Flags().GetString("model")
		baseURL, _ := cmd.Flags().GetString("base-url")
		apiKey, _ := cmd.Flags().GetString("api-key")
		temperature, _ := cmd.Flags().GetFloat64("temperature")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")
		timeoutSecs, _ := cmd.Flags().GetInt("timeout")

		if model != "" {
			cfg.LLM.Model = model
		}
		if baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
		if apiKey != "" {
			cfg.LLM.APIKey = apiKey
		}
		if cmd.Flags().Changed("temperature") {
			cfg.LLM.Temperature = temperature
		}
		if cmd.Flags().Changed("max-tokens") {
			cfg.LLM.MaxTokens = maxTokens
		}
		if cmd.Flags().Changed("timeout") {
			cfg.LLM.TimeoutSecs = timeoutSecs
		}

		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}
		fmt.Printf("provider set to %s (model %s, baseUrl %s)\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.BaseURL)
		return nil
	},
}

var configureExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the current configuration as JSON (API key redacted)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var configureImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a previously exported JSON configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		var imported config.Config
		if err := json.Unmarshal(data, &imported); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		// An exported file never carries an API key; preserve whatever is
		// already on disk for the imported provider.
		existing, err := config.Load()
		if err != nil {
			return err
		}
		if imported.LLM.Provider == existing.LLM.Provider {
			imported.LLM.APIKey = existing.LLM.APIKey
		}

		if err := config.Save(&imported); err != nil {
			return fmt.Errorf("saving imported configuration: %w", err)
		}
		fmt.Printf("imported configuration for provider %s\n", imported.LLM.Provider)
		return nil
	},
}

func runInteractiveConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reader := bufio.NewReader(os.Stdin)

	cfg.LLM.Provider = promptDefault(reader, "Provider (ollama/openai)", cfg.LLM.Provider)
	cfg.LLM.Model = promptDefault(reader, "Model", cfg.LLM.Model)
	cfg.LLM.BaseURL = promptDefault(reader, "Base URL", cfg.LLM.BaseURL)
	if cfg.LLM.Provider == string(llmclient.ProviderOpenAI) {
		key := promptDefault(reader, "API key (leave blank to keep current)", "")
		if key != "" {
			cfg.LLM.APIKey = key
		}
	}
	temp := promptDefault(reader, "Temperature", strconv.FormatFloat(cfg.LLM.Temperature, 'f', -1, 64))
	if v, err := strconv.ParseFloat(temp, 64); err == nil {
		cfg.LLM.Temperature = v
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	fmt.Println("configuration saved.")
	return nil
}

func promptDefault(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func init() {
	configureSetCmd.Flags().String("model", "", "Model name")
	configureSetCmd.Flags().String("base-url", "", "Provider base URL")
	configureSetCmd.Flags().String("api-key", "", "API key (openai only)")
	configureSetCmd.Flags().Float64("temperature", 0, "Sampling temperature")
	configureSetCmd.Flags().Int("max-tokens", 0, "Max response tokens")
	configureSetCmd.Flags().Int("timeout", 0, "Request timeout in seconds")

	configureCmd.AddCommand(configureStatusCmd)
	configureCmd.AddCommand(configureTestCmd)
	configureCmd.AddCommand(configureSetCmd)
	configureCmd.AddCommand(configureExportCmd)
	configureCmd.AddCommand(configureImportCmd)
	rootCmd.AddCommand(configureCmd)
}
