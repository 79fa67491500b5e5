package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/genai"

	"github.com/canopyai/canopy"
	"github.com/canopyai/canopy/agent"
	"github.com/canopyai/canopy/engine"
	"github.com/canopyai/canopy/logging"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "canopy",
		Short:         "Run trees of cooperating AI agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (default $HOME/.canopy.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	cobra.OnInitialize(func() { initConfig(cmd) })

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}

func initConfig(cmd *cobra.Command) {
	if cfg, _ := cmd.PersistentFlags().GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".canopy")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("CANOPY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Vendor keys keep their conventional names.
	_ = viper.BindEnv("gemini_api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")

	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))

	_ = viper.ReadInConfig()
}

func newLogger() logging.Logger {
	return logging.New(&logging.Config{
		Level:  logging.ParseLevel(viper.GetString("log_level")),
		Format: viper.GetString("log_format"),
		Output: os.Stderr,
	})
}

// buildRunner loads the tree and wires every provider a key is configured
// for.
func buildRunner(ctx context.Context, treePath string, listeners ...engine.Listener) (*engine.Runner, error) {
	root, err := agent.Load(treePath)
	if err != nil {
		return nil, err
	}

	logger := newLogger()

	var geminiClient *genai.Client
	if key := viper.GetString("gemini_api_key"); key != "" {
		geminiClient, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
	}

	var openaiClient *openaisdk.Client
	if key := viper.GetString("openai_api_key"); key != "" {
		c := openaisdk.NewClient(openaiopt.WithAPIKey(key))
		openaiClient = &c
	}

	var anthropicClient *anthropicsdk.Client
	if key := viper.GetString("anthropic_api_key"); key != "" {
		c := anthropicsdk.NewClient(anthropicopt.WithAPIKey(key))
		anthropicClient = &c
	}

	if geminiClient == nil && openaiClient == nil && anthropicClient == nil {
		return nil, fmt.Errorf("no provider configured: set GEMINI_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}

	return canopy.New(root, func(o *canopy.Options) {
		o.GeminiClient = geminiClient
		o.OpenAIClient = openaiClient
		o.AnthropicClient = anthropicClient
		o.Logger = logger
		o.Listeners = listeners
	})
}
