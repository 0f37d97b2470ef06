package openai

import (
	"fmt"

	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates new instances of OpenAIClient
type Factory struct {
	cfg    config.OpenAIConfig
	logger *zap.Logger
}

// NewFactory creates a new factory for OpenAIClient instances
func NewFactory(cfg config.OpenAIConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) create() (*OpenAIClient, error) {
	if f.cfg.APIKey == "" {
		return nil, fmt.Errorf("openai.api_key is not set")
	}
	return NewOpenAIClient(openai.NewClient(f.cfg.APIKey), f.cfg, f.logger), nil
}

// CreateInferrer returns the analysis model
func (f *Factory) CreateInferrer() (core.Inferrer, error) {
	return f.create()
}

// CreateChatProvider returns the conversational model
func (f *Factory) CreateChatProvider() (core.ChatProvider, error) {
	return f.create()
}
