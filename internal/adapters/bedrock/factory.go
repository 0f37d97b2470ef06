package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"go.uber.org/zap"
)

// Factory creates Bedrock clients
type Factory struct {
	cfg    config.BedrockConfig
	logger *zap.Logger
}

// NewFactory creates a new Bedrock factory
func NewFactory(cfg config.BedrockConfig, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a new Bedrock client
func (f *Factory) CreateClient() (*BedrockClient, error) {
	// Credentials come from the default AWS chain
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(f.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), f.cfg, f.logger), nil
}

// CreateInferrer returns the analysis model
func (f *Factory) CreateInferrer() (core.Inferrer, error) {
	return f.CreateClient()
}

// CreateChatProvider returns the conversational model
func (f *Factory) CreateChatProvider() (core.ChatProvider, error) {
	return f.CreateClient()
}
