package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrEmptyResponse is returned when a reply carries no text parts
var ErrEmptyResponse = errors.New("empty response from Gemini")

// GeminiClient implements core.Inferrer and core.ChatProvider on Google Gemini
type GeminiClient struct {
	client *genai.Client
	cfg    config.GeminiConfig
	logger *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(cfg config.GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini.api_key is not set")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClient) model(name string) *genai.GenerativeModel {
	model := c.client.GenerativeModel(name)
	model.SetTemperature(c.cfg.Temperature)
	model.SetTopP(c.cfg.TopP)
	if c.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	}
	return model
}

// Infer sends prompt as one generation request constrained to schema
func (c *GeminiClient) Infer(ctx context.Context, prompt string, schema *core.Schema) (string, error) {
	model := c.model(c.cfg.ModelName)
	if schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(schema)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Gemini reply received",
		zap.String("model", c.cfg.ModelName),
		zap.Int("reply_size", len(text)))
	return text, nil
}

// StartConversation opens a chat seeded with history
func (c *GeminiClient) StartConversation(_ context.Context, systemInstruction string, history []core.ChatMessage) (core.Conversation, error) {
	model := c.model(c.cfg.ChatModelName)
	if systemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	}

	cs := model.StartChat()
	cs.History = toGenaiHistory(history)

	c.logger.Debug("Gemini chat started",
		zap.String("model", c.cfg.ChatModelName),
		zap.Int("history", len(cs.History)))
	return &conversation{session: cs}, nil
}

type conversation struct {
	session *genai.ChatSession
}

func (c *conversation) Send(ctx context.Context, text string) (string, error) {
	resp, err := c.session.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("failed to send chat message to Gemini: %w", err)
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// toGenaiHistory maps a transcript to chat history. Gemini requires the
// history to open with a user turn, so leading model messages such as the
// greeting are dropped.
func toGenaiHistory(messages []core.ChatMessage) []*genai.Content {
	start := 0
	for start < len(messages) && messages[start].Role != core.RoleUser {
		start++
	}

	history := make([]*genai.Content, 0, len(messages)-start)
	for _, m := range messages[start:] {
		role := "user"
		if m.Role == core.RoleModel {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	return history
}
