package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mikey/llm-phish-guard/internal/utils"
	"go.uber.org/zap/zaptest"
)

func TestAnalyzeSuccess(t *testing.T) {
	var gotPrompt string
	var gotSchema *Schema
	client := newTestClient(t, inferFunc(func(_ context.Context, prompt string, schema *Schema) (string, error) {
		gotPrompt, gotSchema = prompt, schema
		return validReply, nil
	}))

	desc := mustBuild(t, KindURL, "https://example.com", Options{})
	result, err := client.Analyze(context.Background(), desc)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Verdict != VerdictSafe || result.OverallScore != 10 || len(result.Checks) != 1 {
		t.Errorf("result = %+v", result)
	}
	if gotPrompt != RenderPrompt(desc) {
		t.Error("prompt differs from the rendered descriptor")
	}
	if gotSchema == nil || gotSchema.Type != SchemaObject {
		t.Errorf("schema = %+v, want the analysis schema", gotSchema)
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	client := newTestClient(t, failingInferrer(errNetwork))

	_, err := client.Analyze(context.Background(), mustBuild(t, KindEmail, "body", Options{}))

	var failed *AnalysisFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *AnalysisFailedError", err)
	}
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("error = %v, want a wrapped *TransportError", err)
	}
	if !errors.Is(err, errNetwork) {
		t.Error("original transport error is not reachable")
	}
	if strings.Contains(failed.Error(), errNetwork.Error()) {
		t.Error("user-facing message leaks the raw transport error")
	}
}

func TestAnalyzeShapeFailure(t *testing.T) {
	client := newTestClient(t, staticReply(`{"verdict":"SAFE","overallScore":10}`))

	_, err := client.Analyze(context.Background(), mustBuild(t, KindURL, "https://example.com", Options{}))

	var failed *AnalysisFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *AnalysisFailedError", err)
	}
	var shape *InvalidResponseShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("error = %v, want a wrapped *InvalidResponseShapeError", err)
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		t.Error("shape failure must not look like a transport failure")
	}
}

func TestAnalyzeCallsOnceWithoutRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, inferFunc(func(context.Context, string, *Schema) (string, error) {
		calls++
		return "", errNetwork
	}))

	_, _ = client.Analyze(context.Background(), mustBuild(t, KindURL, "https://example.com", Options{}))
	if calls != 1 {
		t.Errorf("model called %d times, want 1", calls)
	}
}

func TestAnalyzeTruncatesContentInPrompt(t *testing.T) {
	logger := zaptest.NewLogger(t)
	var gotPrompt string
	client := NewAnalysisClient(inferFunc(func(_ context.Context, prompt string, _ *Schema) (string, error) {
		gotPrompt = prompt
		return validReply, nil
	}), utils.NewTextProcessor(logger), logger, 32, 0)

	body := strings.Repeat("a", 100) + "TAIL"
	if _, err := client.Analyze(context.Background(), mustBuild(t, KindEmail, body, Options{})); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if strings.Contains(gotPrompt, "TAIL") {
		t.Error("content beyond the size limit reached the prompt")
	}
	if !strings.Contains(gotPrompt, utils.TruncationMarker) {
		t.Error("truncated content is not marked")
	}
}

func TestAnalyzeAppliesTimeout(t *testing.T) {
	logger := zaptest.NewLogger(t)
	client := NewAnalysisClient(inferFunc(func(ctx context.Context, _ string, _ *Schema) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), utils.NewTextProcessor(logger), logger, 0, 10*time.Millisecond)

	_, err := client.Analyze(context.Background(), mustBuild(t, KindURL, "https://example.com", Options{}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}
