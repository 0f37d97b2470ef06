package config

import (
	"fmt"
	"os"
	"time"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// ModelConfig is the tuning shared by every provider
type ModelConfig struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	ModelConfig
	APIKey        string
	ModelName     string
	ChatModelName string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	ModelConfig
	APIKey        string
	ModelName     string
	ChatModelName string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	ModelConfig
	Region      string
	ModelID     string
	ChatModelID string
}

// AnalysisConfig controls the analysis client and the debouncer
type AnalysisConfig struct {
	MaxContentSize int
	DebounceDelay  time.Duration
	Timeout        time.Duration
}

// HistoryConfig selects where the history log is persisted
type HistoryConfig struct {
	Store       string
	Key         string
	FilePath    string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
}

// ChatConfig holds the assistant persona
type ChatConfig struct {
	SystemInstruction  string
	Greeting           string
	FallbackMessage    string
	MaxContextMessages int
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	ListenAddress string
	CORSOrigins   []string
}

// SMTPConfig represents the mail intake configuration
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	ExtractAllLinks bool
	RejectDangerous bool
	// TrustedDomains are sender domains delivered without analysis
	TrustedDomains []string
	Relay          RelayConfig
	VerdictHeader  string
	ScoreHeader    string
}

// RelayConfig is the downstream MTA analyzed mail is forwarded to
type RelayConfig struct {
	Enabled bool
	Address string
	Port    int
}

func (c *Config) modelConfig(section string) ModelConfig {
	return ModelConfig{
		MaxTokens:   c.GetInt(section + ".max_tokens"),
		Temperature: float32(c.GetFloat64(section + ".temperature")),
		TopP:        float32(c.GetFloat64(section + ".top_p")),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		ModelConfig:   c.modelConfig("gemini"),
		APIKey:        c.GetString("gemini.api_key"),
		ModelName:     c.GetString("gemini.model_name"),
		ChatModelName: c.GetString("gemini.chat_model_name"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		ModelConfig:   c.modelConfig("openai"),
		APIKey:        c.GetString("openai.api_key"),
		ModelName:     c.GetString("openai.model_name"),
		ChatModelName: c.GetString("openai.chat_model_name"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		ModelConfig: c.modelConfig("bedrock"),
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		ChatModelID: c.GetString("bedrock.chat_model_id"),
	}
}

// GetAnalysis returns the analysis configuration
func (c *Config) GetAnalysis() (AnalysisConfig, error) {
	delay, err := c.GetDuration("analysis.debounce_delay")
	if err != nil {
		return AnalysisConfig{}, err
	}
	timeout, err := c.GetDuration("analysis.timeout")
	if err != nil {
		return AnalysisConfig{}, err
	}
	if delay <= 0 {
		return AnalysisConfig{}, fmt.Errorf("analysis.debounce_delay must be positive, got %s", delay)
	}
	return AnalysisConfig{
		MaxContentSize: c.GetInt("analysis.max_content_size"),
		DebounceDelay:  delay,
		Timeout:        timeout,
	}, nil
}

// GetHistory returns the history configuration. Paths are env-expanded.
func (c *Config) GetHistory() HistoryConfig {
	return HistoryConfig{
		Store:       c.GetString("history.store"),
		Key:         c.GetString("history.key"),
		FilePath:    os.ExpandEnv(c.GetString("history.file_path")),
		SQLitePath:  os.ExpandEnv(c.GetString("history.sqlite_path")),
		MySQLDSN:    c.GetString("history.mysql_dsn"),
		PostgresDSN: c.GetString("history.postgres_dsn"),
	}
}

// GetChat returns the chat configuration
func (c *Config) GetChat() ChatConfig {
	return ChatConfig{
		SystemInstruction:  c.GetString("chat.system_instruction"),
		Greeting:           c.GetString("chat.greeting"),
		FallbackMessage:    c.GetString("chat.fallback_message"),
		MaxContextMessages: c.GetInt("chat.max_context_messages"),
	}
}

// GetServer returns the HTTP API configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		CORSOrigins:   c.GetStringSlice("server.cors_origins"),
	}
}

// GetSMTP returns the mail intake configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:         c.GetBool("smtp.enabled"),
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		MaxMessageBytes: int64(c.GetInt("smtp.max_message_bytes")),
		ExtractAllLinks: c.GetBool("smtp.extract_all_links"),
		RejectDangerous: c.GetBool("smtp.reject_dangerous"),
		TrustedDomains:  c.GetStringSlice("smtp.trusted_domains"),
		Relay: RelayConfig{
			Enabled: c.GetBool("smtp.relay.enabled"),
			Address: c.GetString("smtp.relay.address"),
			Port:    c.GetInt("smtp.relay.port"),
		},
		VerdictHeader: c.GetString("smtp.headers.verdict"),
		ScoreHeader:   c.GetString("smtp.headers.score"),
	}
}
