package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap/zaptest"
)

// sentRequest is the part of a completion request the tests inspect
type sentRequest struct {
	Model          string                         `json:"model"`
	Messages       []openai.ChatCompletionMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// newTestClient points a client at a fake server; requests are decoded into got
func newTestClient(t *testing.T, reply string, got *[]sentRequest) *OpenAIClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req sentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*got = append(*got, req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-test",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	clientCfg := openai.DefaultConfig("test-key")
	clientCfg.BaseURL = srv.URL + "/v1"
	cfg := config.OpenAIConfig{ModelName: "analysis-model", ChatModelName: "chat-model"}
	return NewOpenAIClient(openai.NewClientWithConfig(clientCfg), cfg, zaptest.NewLogger(t))
}

func TestInfer(t *testing.T) {
	const reply = `{"verdict":"SAFE","overallScore":3,"checks":[]}`
	var requests []sentRequest
	client := newTestClient(t, reply, &requests)

	got, err := client.Infer(context.Background(), "analyze this", core.AnalysisSchema())
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if got != reply {
		t.Errorf("reply = %q", got)
	}

	if len(requests) != 1 {
		t.Fatalf("made %d requests, want 1", len(requests))
	}
	req := requests[0]
	if req.Model != "analysis-model" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "analyze this" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != string(openai.ChatCompletionResponseFormatTypeJSONSchema) {
		t.Errorf("response format = %+v", req.ResponseFormat)
	}
}

func TestConversationReplaysHistory(t *testing.T) {
	var requests []sentRequest
	client := newTestClient(t, "stay safe", &requests)

	conv, err := client.StartConversation(context.Background(), "be GuardBot", []core.ChatMessage{
		{Role: core.RoleModel, Text: "hello"},
		{Role: core.RoleUser, Text: "earlier question"},
	})
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}

	for _, text := range []string{"first", "second"} {
		if _, err := conv.Send(context.Background(), text); err != nil {
			t.Fatalf("Send(%q): %v", text, err)
		}
	}

	if len(requests) != 2 {
		t.Fatalf("made %d requests, want 2", len(requests))
	}
	last := requests[1]
	if last.Model != "chat-model" {
		t.Errorf("model = %q", last.Model)
	}
	wantRoles := []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
	}
	if len(last.Messages) != len(wantRoles) {
		t.Fatalf("second turn sent %d messages, want %d", len(last.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if last.Messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, last.Messages[i].Role, role)
		}
	}
	if last.Messages[5].Content != "second" {
		t.Errorf("last message = %q", last.Messages[5].Content)
	}
}

func TestToDefinition(t *testing.T) {
	def := toDefinition(core.AnalysisSchema())

	if def.Type != jsonschema.Object || def.AdditionalProperties != false {
		t.Errorf("root = %+v", def)
	}
	checks := def.Properties["checks"]
	if checks.Type != jsonschema.Array || checks.Items == nil {
		t.Fatalf("checks = %+v", checks)
	}
	if checks.Items.AdditionalProperties != false || len(checks.Items.Required) != 3 {
		t.Errorf("check item = %+v", checks.Items)
	}
	if got := def.Properties["verdict"].Enum; len(got) != 3 {
		t.Errorf("verdict enum = %v", got)
	}
}
