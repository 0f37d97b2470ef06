package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when a completion carries no choices
var ErrEmptyResponse = errors.New("empty response from OpenAI")

const analysisSystemMessage = "You are a phishing detection system. Respond only with JSON."

// OpenAIClient implements core.Inferrer and core.ChatProvider on OpenAI
type OpenAIClient struct {
	client *openai.Client
	cfg    config.OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(client *openai.Client, cfg config.OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (c *OpenAIClient) request(model string, messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	}
}

// Infer sends prompt as one completion constrained to schema
func (c *OpenAIClient) Infer(ctx context.Context, prompt string, schema *core.Schema) (string, error) {
	req := c.request(c.cfg.ModelName, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: analysisSystemMessage,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	})

	if schema != nil {
		def := toDefinition(schema)
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "analysis_result",
				Schema: &def,
				Strict: true,
			},
		}
	}

	text, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}

	c.logger.Debug("OpenAI reply received",
		zap.String("model", c.cfg.ModelName),
		zap.Int("reply_size", len(text)))
	return text, nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// StartConversation opens a chat replaying history after the system message
func (c *OpenAIClient) StartConversation(_ context.Context, systemInstruction string, history []core.ChatMessage) (core.Conversation, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	for _, m := range history {
		messages = append(messages, toChatMessage(m))
	}

	c.logger.Debug("OpenAI chat started",
		zap.String("model", c.cfg.ChatModelName),
		zap.Int("history", len(history)))
	return &conversation{client: c, messages: messages}, nil
}

// conversation keeps the whole exchange client-side; OpenAI completions
// are stateless
type conversation struct {
	client   *OpenAIClient
	messages []openai.ChatCompletionMessage
}

func (c *conversation) Send(ctx context.Context, text string) (string, error) {
	messages := append(c.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	reply, err := c.client.complete(ctx, c.client.request(c.client.cfg.ChatModelName, messages))
	if err != nil {
		return "", err
	}

	c.messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}

func toChatMessage(m core.ChatMessage) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if m.Role == core.RoleModel {
		role = openai.ChatMessageRoleAssistant
	}
	return openai.ChatCompletionMessage{Role: role, Content: m.Text}
}

var schemaTypes = map[core.SchemaType]jsonschema.DataType{
	core.SchemaObject:  jsonschema.Object,
	core.SchemaArray:   jsonschema.Array,
	core.SchemaString:  jsonschema.String,
	core.SchemaNumber:  jsonschema.Number,
	core.SchemaInteger: jsonschema.Integer,
	core.SchemaBoolean: jsonschema.Boolean,
}

// toDefinition converts a provider-neutral schema into a strict JSON schema.
// Strict mode requires closed objects.
func toDefinition(s *core.Schema) jsonschema.Definition {
	def := jsonschema.Definition{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Enum:        append([]string(nil), s.Enum...),
		Required:    append([]string(nil), s.Required...),
	}
	if s.Type == core.SchemaObject {
		def.AdditionalProperties = false
		def.Properties = make(map[string]jsonschema.Definition, len(s.Properties))
		for name, prop := range s.Properties {
			def.Properties[name] = toDefinition(prop)
		}
	}
	if s.Items != nil {
		items := toDefinition(s.Items)
		def.Items = &items
	}
	return def
}
