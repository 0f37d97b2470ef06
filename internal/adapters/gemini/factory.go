package gemini

import (
	"sync"

	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"go.uber.org/zap"
)

// Factory creates Gemini-backed inferrers and chat providers sharing one client
type Factory struct {
	cfg    config.GeminiConfig
	logger *zap.Logger

	once   sync.Once
	client *GeminiClient
	err    error
}

// NewFactory creates a new factory for GeminiClient instances
func NewFactory(cfg config.GeminiConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) shared() (*GeminiClient, error) {
	f.once.Do(func() {
		f.client, f.err = NewGeminiClient(f.cfg, f.logger)
	})
	return f.client, f.err
}

// CreateInferrer returns the analysis model
func (f *Factory) CreateInferrer() (core.Inferrer, error) {
	return f.shared()
}

// CreateChatProvider returns the conversational model
func (f *Factory) CreateChatProvider() (core.ChatProvider, error) {
	return f.shared()
}
