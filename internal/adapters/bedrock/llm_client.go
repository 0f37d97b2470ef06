package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

// ErrEmptyResponse is returned when a model reply carries no text
var ErrEmptyResponse = errors.New("empty response from Bedrock model")

// ModelInvoker is the part of the Bedrock runtime client used here
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient implements core.Inferrer and core.ChatProvider on Amazon Bedrock
type BedrockClient struct {
	client ModelInvoker
	cfg    config.BedrockConfig
	logger *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(client ModelInvoker, cfg config.BedrockConfig, logger *zap.Logger) *BedrockClient {
	return &BedrockClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Infer sends prompt to the analysis model. Bedrock has no uniform
// structured output, so the schema is embedded in the prompt.
func (c *BedrockClient) Infer(ctx context.Context, prompt string, schema *core.Schema) (string, error) {
	if schema != nil {
		schemaJSON, err := json.Marshal(toJSONSchema(schema))
		if err != nil {
			return "", fmt.Errorf("failed to marshal response schema: %w", err)
		}
		prompt = fmt.Sprintf("%s\n\nRespond only with a JSON object matching this JSON schema and nothing else:\n%s", prompt, schemaJSON)
	}

	text, err := c.invoke(ctx, c.cfg.ModelID, "", []core.ChatMessage{{Role: core.RoleUser, Text: prompt}})
	if err != nil {
		return "", err
	}

	c.logger.Debug("Bedrock reply received",
		zap.String("model", c.cfg.ModelID),
		zap.Int("reply_size", len(text)))
	return text, nil
}

// StartConversation opens a chat that replays history on every turn
func (c *BedrockClient) StartConversation(_ context.Context, systemInstruction string, history []core.ChatMessage) (core.Conversation, error) {
	messages := make([]core.ChatMessage, len(history))
	copy(messages, history)

	c.logger.Debug("Bedrock chat started",
		zap.String("model", c.cfg.ChatModelID),
		zap.Int("history", len(history)))
	return &conversation{client: c, system: systemInstruction, messages: messages}, nil
}

type conversation struct {
	client   *BedrockClient
	system   string
	messages []core.ChatMessage
}

func (c *conversation) Send(ctx context.Context, text string) (string, error) {
	messages := append(c.messages, core.ChatMessage{Role: core.RoleUser, Text: text})

	reply, err := c.client.invoke(ctx, c.client.cfg.ChatModelID, c.system, messages)
	if err != nil {
		return "", err
	}

	c.messages = append(messages, core.ChatMessage{Role: core.RoleModel, Text: reply})
	return reply, nil
}

func (c *BedrockClient) invoke(ctx context.Context, modelID, system string, messages []core.ChatMessage) (string, error) {
	payload, err := c.payload(modelID, system, messages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	return parseReply(modelID, resp.Body)
}

// payload builds the request body for the model family of modelID
func (c *BedrockClient) payload(modelID, system string, messages []core.ChatMessage) ([]byte, error) {
	if isAnthropicModel(modelID) {
		type message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		var msgs []message
		for _, m := range messages {
			role := "user"
			if m.Role == core.RoleModel {
				role = "assistant"
			}
			// The messages API requires the first turn to be the user's
			if len(msgs) == 0 && role != "user" {
				continue
			}
			msgs = append(msgs, message{Role: role, Content: m.Text})
		}
		body := map[string]interface{}{
			"anthropic_version": anthropicVersion,
			"max_tokens":        c.cfg.MaxTokens,
			"temperature":       c.cfg.Temperature,
			"top_p":             c.cfg.TopP,
			"messages":          msgs,
		}
		if system != "" {
			body["system"] = system
		}
		return json.Marshal(body)
	}

	prompt := renderTranscript(system, messages)

	if isAmazonTitanModel(modelID) {
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.cfg.MaxTokens,
				"temperature":   c.cfg.Temperature,
				"topP":          c.cfg.TopP,
			},
		})
	}

	return json.Marshal(map[string]interface{}{
		"prompt":      prompt,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"top_p":       c.cfg.TopP,
	})
}

// renderTranscript flattens a conversation for text-completion models.
// A single user message is sent as is.
func renderTranscript(system string, messages []core.ChatMessage) string {
	if system == "" && len(messages) == 1 && messages[0].Role == core.RoleUser {
		return messages[0].Text
	}

	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	for _, m := range messages {
		if m.Role == core.RoleModel {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

// parseReply extracts the reply text for the model family of modelID
func parseReply(modelID string, body []byte) (string, error) {
	var text string

	switch {
	case isAnthropicModel(modelID):
		var claudeResp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var b strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		text = b.String()
	case isAmazonTitanModel(modelID):
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) > 0 {
			text = titanResp.Results[0].OutputText
		}
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		switch {
		case genericResp.Output != "":
			text = genericResp.Output
		case genericResp.Text != "":
			text = genericResp.Text
		case genericResp.Response != "":
			text = genericResp.Response
		default:
			text = string(body)
		}
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// toJSONSchema renders a provider-neutral schema as a JSON schema document
func toJSONSchema(s *core.Schema) map[string]interface{} {
	out := map[string]interface{}{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]interface{}, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = toJSONSchema(prop)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = toJSONSchema(s.Items)
	}
	return out
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func isAnthropicModel(modelID string) bool {
	return strings.HasPrefix(modelID, "anthropic.claude") || strings.Contains(modelID, ".anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func isAmazonTitanModel(modelID string) bool {
	return strings.HasPrefix(modelID, "amazon.titan")
}
