package ports

import (
	"github.com/mikey/llm-phish-guard/internal/core"
)

// ModelProvider creates the model-side collaborators for one LLM backend
type ModelProvider interface {
	// CreateInferrer returns the structured analysis model
	CreateInferrer() (core.Inferrer, error)

	// CreateChatProvider returns the conversational model
	CreateChatProvider() (core.ChatProvider, error)
}
