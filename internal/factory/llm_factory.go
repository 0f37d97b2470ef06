package factory

import (
	"fmt"

	"github.com/mikey/llm-phish-guard/internal/adapters/bedrock"
	"github.com/mikey/llm-phish-guard/internal/adapters/gemini"
	"github.com/mikey/llm-phish-guard/internal/adapters/openai"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/ports"
	"go.uber.org/zap"
)

// LLMFactory creates model providers
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateModelProvider returns the provider selected by llm.provider
func (f *LLMFactory) CreateModelProvider() (ports.ModelProvider, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg.GetBedrock(), f.logger), nil
	case "gemini":
		return gemini.NewFactory(f.cfg.GetGemini(), f.logger), nil
	case "openai":
		return openai.NewFactory(f.cfg.GetOpenAI(), f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
