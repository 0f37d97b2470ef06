package core

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	DefaultSystemInstruction = `You are a friendly and helpful cybersecurity assistant for the PhishGuard AI app. Your name is GuardBot. Keep your answers concise and relevant to cybersecurity, phishing, and online safety. After answering the user's primary question, occasionally and proactively offer a short, useful security tip. Make it feel natural, not forced.`
	DefaultGreeting          = "Hi! I am GuardBot. How can I help you with your cybersecurity questions today?"
	DefaultFallbackMessage   = "Sorry, I ran into an error. Please try again."
	DefaultMaxContext        = 50
)

// ChatConfig holds the fixed parameters of a chat session
type ChatConfig struct {
	SystemInstruction string
	Greeting          string
	FallbackMessage   string
	// MaxContextMessages bounds the seed context of a new conversation
	MaxContextMessages int
}

// ChatSession is the single ongoing assistant conversation. The model-side
// handle is created lazily and dropped after any transport failure, so the
// next turn recreates it from the transcript.
type ChatSession struct {
	provider ChatProvider
	cfg      ChatConfig
	logger   *zap.Logger

	inFlight atomic.Bool

	mu         sync.Mutex
	transcript []ChatMessage
	handle     Conversation
}

// NewChatSession creates a session whose transcript opens with the greeting
func NewChatSession(provider ChatProvider, cfg ChatConfig, logger *zap.Logger) *ChatSession {
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	if cfg.MaxContextMessages <= 0 {
		cfg.MaxContextMessages = DefaultMaxContext
	}

	s := &ChatSession{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}
	if cfg.Greeting != "" {
		s.transcript = append(s.transcript, ChatMessage{Role: RoleModel, Text: cfg.Greeting})
	}
	return s
}

// Send appends the user's message, forwards it to the model and appends the
// reply. Transport failures resolve to the fallback message. A call made
// while another is outstanding fails with ErrChatBusy.
func (s *ChatSession) Send(ctx context.Context, userText string) (ChatMessage, error) {
	if strings.TrimSpace(userText) == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return ChatMessage{}, ErrChatBusy
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	prior := s.seedContextLocked()
	s.transcript = append(s.transcript, ChatMessage{Role: RoleUser, Text: userText})
	handle := s.handle
	s.mu.Unlock()

	reply, err := s.converse(ctx, handle, prior, userText)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Error("Chat turn failed, resetting conversation", zap.Error(err))
		s.handle = nil
		msg := ChatMessage{Role: RoleModel, Text: s.cfg.FallbackMessage}
		s.transcript = append(s.transcript, msg)
		return msg, nil
	}

	msg := ChatMessage{Role: RoleModel, Text: reply}
	s.transcript = append(s.transcript, msg)
	return msg, nil
}

func (s *ChatSession) converse(ctx context.Context, handle Conversation, prior []ChatMessage, userText string) (string, error) {
	if handle == nil {
		s.logger.Debug("Starting conversation", zap.Int("seed_messages", len(prior)))
		created, err := s.provider.StartConversation(ctx, s.cfg.SystemInstruction, prior)
		if err != nil {
			return "", err
		}
		handle = created
		s.mu.Lock()
		s.handle = created
		s.mu.Unlock()
	}
	return handle.Send(ctx, userText)
}

// seedContextLocked returns the bounded tail of the transcript
func (s *ChatSession) seedContextLocked() []ChatMessage {
	start := 0
	if len(s.transcript) > s.cfg.MaxContextMessages {
		start = len(s.transcript) - s.cfg.MaxContextMessages
	}
	prior := make([]ChatMessage, len(s.transcript)-start)
	copy(prior, s.transcript[start:])
	return prior
}

// Transcript returns the messages so far, oldest first
func (s *ChatSession) Transcript() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]ChatMessage, len(s.transcript))
	copy(messages, s.transcript)
	return messages
}

// Active reports whether a model-side conversation currently exists
func (s *ChatSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}
