package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock makes entry timestamps testable
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Orchestrator owns the current analysis state and wires the request
// builder, analysis client, debouncer, history and chat together.
// Results of superseded submissions are discarded.
type Orchestrator struct {
	client    *AnalysisClient
	history   *HistoryStore
	chat      *ChatSession
	debouncer *Debouncer
	logger    *zap.Logger
	clock     Clock
	newID     func() string

	mu         sync.Mutex
	generation uint64
	state      State
	// seq numbers every state change; guarded by mu
	seq uint64

	// recordMu serializes history appends so they land in generation order
	recordMu    sync.Mutex
	recordedGen uint64

	listenersMu sync.Mutex
	listeners   []func(State)
	notifiedSeq uint64
}

// NewOrchestrator creates a new orchestrator. Typed URL input is analyzed
// after debounceDelay of quiescence.
func NewOrchestrator(
	client *AnalysisClient,
	history *HistoryStore,
	chat *ChatSession,
	logger *zap.Logger,
	debounceDelay time.Duration,
) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		history: history,
		chat:    chat,
		logger:  logger,
		clock:   SystemClock{},
		newID:   uuid.NewString,
	}
	o.debouncer = NewDebouncer(debounceDelay, o.autoSubmit, logger)
	return o
}

// Submit analyzes content immediately. On success the result becomes the
// current result and the newest history entry. If a newer submission was
// issued meanwhile, the result is dropped and ErrSuperseded is returned.
func (o *Orchestrator) Submit(ctx context.Context, kind AnalysisKind, content string, opts Options) (*AnalysisResult, error) {
	o.debouncer.Cancel()
	return o.submit(ctx, kind, content, opts)
}

func (o *Orchestrator) submit(ctx context.Context, kind AnalysisKind, content string, opts Options) (*AnalysisResult, error) {
	desc, err := BuildRequest(kind, content, opts)
	if err != nil {
		o.mu.Lock()
		o.state.Error = err.Error()
		seq, state := o.publishLocked()
		o.mu.Unlock()
		o.notify(seq, state)
		return nil, err
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.state = State{Loading: true}
	seq, state := o.publishLocked()
	o.mu.Unlock()
	o.notify(seq, state)

	result, err := o.client.Analyze(ctx, desc)

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.logger.Debug("Dropping superseded analysis",
			zap.Uint64("generation", gen),
			zap.String("kind", string(desc.Kind)))
		return nil, ErrSuperseded
	}

	if err != nil {
		o.state = State{Error: err.Error()}
		seq, state = o.publishLocked()
		o.mu.Unlock()
		o.notify(seq, state)
		return nil, err
	}

	o.state = State{Result: result}
	entry := HistoryEntry{
		ID:        o.newID(),
		CreatedAt: o.clock.Now(),
		Kind:      desc.Kind,
		Content:   desc.Content,
		Result:    *result,
	}
	seq, state = o.publishLocked()
	o.mu.Unlock()

	// The entry is persisted even if the caller has gone away
	o.record(context.WithoutCancel(ctx), gen, entry)
	o.notify(seq, state)

	return result, nil
}

// record appends entry unless a newer generation has already been
// recorded, keeping the history newest-first by submission order
func (o *Orchestrator) record(ctx context.Context, gen uint64, entry HistoryEntry) {
	o.recordMu.Lock()
	defer o.recordMu.Unlock()

	if gen <= o.recordedGen {
		o.logger.Debug("Dropping history entry of a superseded analysis",
			zap.Uint64("generation", gen),
			zap.Uint64("recorded_generation", o.recordedGen))
		return
	}
	o.recordedGen = gen
	o.history.Append(ctx, entry)
}

// InputChanged feeds a new input snapshot to the debouncer. It reports
// whether an automatic analysis is now scheduled.
func (o *Orchestrator) InputChanged(in Input) bool {
	return o.debouncer.Change(in)
}

// AutoPending reports whether an automatic analysis is scheduled or running
func (o *Orchestrator) AutoPending() bool {
	return o.debouncer.Busy()
}

func (o *Orchestrator) autoSubmit(in Input) {
	if _, err := o.submit(context.Background(), in.Kind, in.Content, in.Options); err != nil && !errors.Is(err, ErrSuperseded) {
		o.logger.Warn("Automatic analysis failed", zap.Error(err))
	}
}

// SelectHistoryEntry makes a past result the current one
func (o *Orchestrator) SelectHistoryEntry(id string) (HistoryEntry, error) {
	entry, ok := o.history.Get(id)
	if !ok {
		return HistoryEntry{}, ErrHistoryEntryNotFound
	}

	result := entry.Result.clone()
	o.mu.Lock()
	o.state.Error = ""
	o.state.Result = &result
	seq, state := o.publishLocked()
	o.mu.Unlock()
	o.notify(seq, state)

	return entry, nil
}

// ClearHistory irreversibly empties the history
func (o *Orchestrator) ClearHistory(ctx context.Context) {
	o.history.Clear(ctx)
}

// History returns past analyses newest-first
func (o *Orchestrator) History() []HistoryEntry {
	return o.history.Entries()
}

// SendChat forwards a message to the assistant
func (o *Orchestrator) SendChat(ctx context.Context, text string) (ChatMessage, error) {
	return o.chat.Send(ctx, text)
}

// Transcript returns the assistant conversation so far
func (o *Orchestrator) Transcript() []ChatMessage {
	return o.chat.Transcript()
}

// State returns the current presentation state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn to be called after state changes. States are
// delivered in order; one overtaken by a newer state is not delivered.
func (o *Orchestrator) Subscribe(fn func(State)) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Stop cancels any pending automatic analysis
func (o *Orchestrator) Stop() {
	o.debouncer.Cancel()
}

// publishLocked numbers the current state for delivery; o.mu must be held
func (o *Orchestrator) publishLocked() (uint64, State) {
	o.seq++
	return o.seq, o.state
}

// notify delivers state to the subscribers. A state older than one already
// delivered is skipped, so subscribers always end on the current state.
func (o *Orchestrator) notify(seq uint64, state State) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()

	if seq <= o.notifiedSeq {
		return
	}
	o.notifiedSeq = seq
	for _, fn := range o.listeners {
		fn(state)
	}
}
