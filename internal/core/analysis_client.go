package core

import (
	"context"
	"time"

	"github.com/mikey/llm-phish-guard/internal/utils"
	"go.uber.org/zap"
)

// AnalysisClient turns request descriptors into validated results through
// one model call each. It never retries.
type AnalysisClient struct {
	inferrer       Inferrer
	textProcessor  *utils.TextProcessor
	logger         *zap.Logger
	maxContentSize int
	timeout        time.Duration
}

// NewAnalysisClient creates a new analysis client. A zero timeout leaves
// the deadline to the caller's context.
func NewAnalysisClient(
	inferrer Inferrer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	maxContentSize int,
	timeout time.Duration,
) *AnalysisClient {
	return &AnalysisClient{
		inferrer:       inferrer,
		textProcessor:  textProcessor,
		logger:         logger,
		maxContentSize: maxContentSize,
		timeout:        timeout,
	}
}

// Analyze performs the model call for desc. Failures are always an
// *AnalysisFailedError wrapping a *TransportError or *InvalidResponseShapeError.
func (c *AnalysisClient) Analyze(ctx context.Context, desc RequestDescriptor) (*AnalysisResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	promptDesc := desc
	promptDesc.Content = c.textProcessor.ProcessText(desc.Content, c.maxContentSize)
	prompt := RenderPrompt(promptDesc)

	c.logger.Debug("Sending analysis request",
		zap.String("kind", string(desc.Kind)),
		zap.Int("content_size", len(desc.Content)),
		zap.Int("prompt_size", len(prompt)))

	startTime := time.Now()
	raw, err := c.inferrer.Infer(ctx, prompt, AnalysisSchema())
	if err != nil {
		c.logger.Error("Analysis request failed",
			zap.String("kind", string(desc.Kind)),
			zap.Error(err))
		return nil, newAnalysisFailed(&TransportError{Err: err})
	}

	result, err := DecodeAnalysisResult(raw)
	if err != nil {
		c.logger.Error("Analysis reply rejected",
			zap.String("kind", string(desc.Kind)),
			zap.Int("reply_size", len(raw)),
			zap.Error(err))
		return nil, newAnalysisFailed(err)
	}

	c.logger.Info("Analysis completed",
		zap.String("kind", string(desc.Kind)),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("overall_score", result.OverallScore),
		zap.Int("checks", len(result.Checks)),
		zap.Duration("duration", time.Since(startTime)))

	return &result, nil
}
