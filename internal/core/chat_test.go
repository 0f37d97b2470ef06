package core

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

// fakeProvider records every conversation it opens
type fakeProvider struct {
	mu       sync.Mutex
	starts   [][]ChatMessage
	instr    []string
	startErr error
	reply    func(text string) (string, error)
}

func (p *fakeProvider) StartConversation(_ context.Context, systemInstruction string, history []ChatMessage) (Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	seed := make([]ChatMessage, len(history))
	copy(seed, history)
	p.starts = append(p.starts, seed)
	p.instr = append(p.instr, systemInstruction)
	return conversationFunc(func(_ context.Context, text string) (string, error) {
		return p.reply(text)
	}), nil
}

type conversationFunc func(ctx context.Context, text string) (string, error)

func (f conversationFunc) Send(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

func echoReply(text string) (string, error) { return "echo: " + text, nil }

func TestChatGreetingSeedsTranscript(t *testing.T) {
	s := NewChatSession(&fakeProvider{reply: echoReply}, ChatConfig{Greeting: DefaultGreeting}, zaptest.NewLogger(t))

	transcript := s.Transcript()
	if len(transcript) != 1 || transcript[0].Role != RoleModel || transcript[0].Text != DefaultGreeting {
		t.Errorf("transcript = %+v, want the greeting", transcript)
	}
	if s.Active() {
		t.Error("conversation created before the first message")
	}
}

func TestChatSendAppendsTurns(t *testing.T) {
	provider := &fakeProvider{reply: echoReply}
	s := NewChatSession(provider, ChatConfig{}, zaptest.NewLogger(t))
	ctx := context.Background()

	msg, err := s.Send(ctx, "what is phishing?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Role != RoleModel || msg.Text != "echo: what is phishing?" {
		t.Errorf("reply = %+v", msg)
	}
	if _, err := s.Send(ctx, "thanks"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []ChatMessage{
		{Role: RoleUser, Text: "what is phishing?"},
		{Role: RoleModel, Text: "echo: what is phishing?"},
		{Role: RoleUser, Text: "thanks"},
		{Role: RoleModel, Text: "echo: thanks"},
	}
	if !reflect.DeepEqual(s.Transcript(), want) {
		t.Errorf("transcript = %+v", s.Transcript())
	}
	if len(provider.starts) != 1 {
		t.Errorf("conversation started %d times, want 1", len(provider.starts))
	}
	if provider.instr[0] != DefaultSystemInstruction {
		t.Error("default system instruction not used")
	}
}

func TestChatFailureResetsConversation(t *testing.T) {
	fail := true
	provider := &fakeProvider{reply: func(text string) (string, error) {
		if fail {
			return "", errNetwork
		}
		return echoReply(text)
	}}
	s := NewChatSession(provider, ChatConfig{Greeting: "hello"}, zaptest.NewLogger(t))
	ctx := context.Background()

	msg, err := s.Send(ctx, "first")
	if err != nil {
		t.Fatalf("Send returned %v, want the fallback instead", err)
	}
	if msg.Text != DefaultFallbackMessage {
		t.Errorf("reply = %q, want fallback", msg.Text)
	}
	if s.Active() {
		t.Error("conversation handle kept after failure")
	}

	transcript := s.Transcript()
	if transcript[1] != (ChatMessage{Role: RoleUser, Text: "first"}) || transcript[2].Text != DefaultFallbackMessage {
		t.Errorf("transcript = %+v, want user message then fallback", transcript)
	}

	fail = false
	if _, err := s.Send(ctx, "second"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(provider.starts) != 2 {
		t.Fatalf("conversation started %d times, want 2", len(provider.starts))
	}
	if !reflect.DeepEqual(provider.starts[1], transcript) {
		t.Errorf("new conversation seeded with %+v, want %+v", provider.starts[1], transcript)
	}
}

func TestChatStartFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{startErr: errors.New("no credentials"), reply: echoReply}
	s := NewChatSession(provider, ChatConfig{FallbackMessage: "try later"}, zaptest.NewLogger(t))

	msg, err := s.Send(context.Background(), "hi")
	if err != nil || msg.Text != "try later" {
		t.Errorf("Send = %+v, %v; want the configured fallback", msg, err)
	}
}

func TestChatRejectsBlankMessage(t *testing.T) {
	s := NewChatSession(&fakeProvider{reply: echoReply}, ChatConfig{}, zaptest.NewLogger(t))
	if _, err := s.Send(context.Background(), "  \n"); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
	if len(s.Transcript()) != 0 {
		t.Error("blank message was recorded")
	}
}

func TestChatRejectsOverlappingSend(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	provider := &fakeProvider{reply: func(text string) (string, error) {
		close(entered)
		<-release
		return echoReply(text)
	}}
	s := NewChatSession(provider, ChatConfig{}, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "slow")
		done <- err
	}()
	<-entered

	if _, err := s.Send(context.Background(), "impatient"); !errors.Is(err, ErrChatBusy) {
		t.Errorf("error = %v, want ErrChatBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if n := len(s.Transcript()); n != 2 {
		t.Errorf("transcript has %d messages, want 2", n)
	}
}

func TestChatSeedContextIsBounded(t *testing.T) {
	fail := true
	provider := &fakeProvider{reply: func(text string) (string, error) {
		if fail {
			return "", errNetwork
		}
		return echoReply(text)
	}}
	s := NewChatSession(provider, ChatConfig{MaxContextMessages: 4}, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = s.Send(ctx, "again")
	}
	fail = false
	_, _ = s.Send(ctx, "last")

	seed := provider.starts[len(provider.starts)-1]
	if len(seed) != 4 {
		t.Errorf("seed context has %d messages, want 4", len(seed))
	}
}
