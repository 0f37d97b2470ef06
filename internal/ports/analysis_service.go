package ports

import (
	"context"

	"github.com/mikey/llm-phish-guard/internal/core"
)

// AnalysisService is what presentation layers call into
type AnalysisService interface {
	// Submit analyzes content immediately
	Submit(ctx context.Context, kind core.AnalysisKind, content string, opts core.Options) (*core.AnalysisResult, error)

	// InputChanged reports typed input; URL-shaped input is analyzed once it settles
	InputChanged(in core.Input) bool

	// AutoPending reports whether an automatic analysis is scheduled or running
	AutoPending() bool

	// SelectHistoryEntry makes a past result the current one
	SelectHistoryEntry(id string) (core.HistoryEntry, error)

	// ClearHistory irreversibly empties the history
	ClearHistory(ctx context.Context)

	// History returns past analyses newest-first
	History() []core.HistoryEntry

	// SendChat forwards a message to the assistant
	SendChat(ctx context.Context, text string) (core.ChatMessage, error)

	// Transcript returns the assistant conversation so far
	Transcript() []core.ChatMessage

	// State returns the current loading/result/error state
	State() core.State

	// Subscribe registers a callback for state changes
	Subscribe(fn func(core.State))
}

var _ AnalysisService = (*core.Orchestrator)(nil)
