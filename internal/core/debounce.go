package core

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounceDelay is the quiet period before a typed URL is analyzed
const DefaultDebounceDelay = time.Second

// Input is a snapshot of what the user has entered
type Input struct {
	Kind    AnalysisKind
	Content string
	Options Options
}

// DebounceState is the state of a Debouncer
type DebounceState int

const (
	DebounceIdle DebounceState = iota
	DebounceArmed
	DebounceFired
)

func (s DebounceState) String() string {
	switch s {
	case DebounceArmed:
		return "armed"
	case DebounceFired:
		return "fired"
	default:
		return "idle"
	}
}

// Timer is the part of *time.Timer the debouncer needs
type Timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer coalesces rapid input changes into at most one trailing call.
// It holds a single pending timer; every change cancels it before re-arming.
type Debouncer struct {
	mu        sync.Mutex
	delay     time.Duration
	fire      func(Input)
	afterFunc afterFunc
	logger    *zap.Logger

	timer Timer
	// seq invalidates timers that already fired but lost the race to a change
	seq   uint64
	state DebounceState
	// running counts fire calls that have not returned
	running int
}

// NewDebouncer creates a debouncer calling fire after delay of quiescence
func NewDebouncer(delay time.Duration, fire func(Input), logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{
		delay:     delay,
		fire:      fire,
		afterFunc: realAfterFunc,
		logger:    logger,
	}
}

// Change records a new input snapshot. The pending timer, if any, is
// cancelled. A new timer is armed only for URL input that looks like a URL.
// It reports whether a timer is now armed.
func (d *Debouncer) Change(in Input) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked()

	if in.Kind != KindURL || !LooksLikeURL(in.Content) {
		return false
	}

	d.seq++
	seq := d.seq
	d.timer = d.afterFunc(d.delay, func() { d.onTimer(seq, in) })
	d.state = DebounceArmed

	d.logger.Debug("Debounce armed",
		zap.Duration("delay", d.delay),
		zap.Int("content_size", len(in.Content)))
	return true
}

// Cancel drops the pending timer without firing it
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// State returns the current state
func (d *Debouncer) State() DebounceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending reports whether a timer is armed
func (d *Debouncer) Pending() bool {
	return d.State() == DebounceArmed
}

// Busy reports whether a timer is armed or a fired call is still running
func (d *Debouncer) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == DebounceArmed || d.running > 0
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.state = DebounceIdle
}

func (d *Debouncer) onTimer(seq uint64, in Input) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.state = DebounceFired
	d.running++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running--
		d.mu.Unlock()
	}()

	d.logger.Debug("Debounce fired", zap.Int("content_size", len(in.Content)))
	d.fire(in)
}
