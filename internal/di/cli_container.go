package di

import (
	"flag"
	"fmt"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// History flags
	HistoryStore string
	HistoryFile  string

	// Output flags
	Verbose    bool
	JSONLog    bool
	JSONOutput bool
	ConfigFile string

	// Args holds the subcommand and its arguments
	Args []string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags(fs *flag.FlagSet, args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}

	// LLM provider flags
	fs.StringVar(&flags.Provider, "provider", "gemini", "LLM provider (gemini, openai, bedrock)")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 8192, "Maximum tokens for LLM response")
	fs.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for LLM generation")
	fs.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "", "Bedrock model ID (default from config)")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "", "Gemini model name (default from config)")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "", "OpenAI model name (default from config)")

	// History flags
	fs.StringVar(&flags.HistoryStore, "history-store", "file", "History store (memory, file, sqlite, mysql, postgres)")
	fs.StringVar(&flags.HistoryFile, "history-file", "", "History file for the file store (default from config)")

	// Output flags
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print results as JSON")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flags.Args = fs.Args()
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags)
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags,
// leaving unset flags at their configuration defaults
func createConfigFromFlags(flags *CLIFlags) (*config.Config, error) {
	v := config.NewEmptyViper()
	config.BindEnv(v)

	provider := strings.ToLower(flags.Provider)
	v.Set("llm.provider", provider)

	// Set provider-specific configuration
	switch provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		if flags.BedrockModelID != "" {
			v.Set("bedrock.model_id", flags.BedrockModelID)
		}
	case "gemini":
		if flags.GeminiAPIKey != "" {
			v.Set("gemini.api_key", flags.GeminiAPIKey)
		}
		if flags.GeminiModelName != "" {
			v.Set("gemini.model_name", flags.GeminiModelName)
		}
	case "openai":
		if flags.OpenAIAPIKey != "" {
			v.Set("openai.api_key", flags.OpenAIAPIKey)
		}
		if flags.OpenAIModelName != "" {
			v.Set("openai.model_name", flags.OpenAIModelName)
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", flags.Provider)
	}
	v.Set(provider+".max_tokens", flags.MaxTokens)
	v.Set(provider+".temperature", flags.Temperature)
	v.Set(provider+".top_p", flags.TopP)

	v.Set("history.store", flags.HistoryStore)
	if flags.HistoryFile != "" {
		v.Set("history.file_path", flags.HistoryFile)
	}

	return config.NewFromViper(v), nil
}
