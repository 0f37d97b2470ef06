package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mikey/llm-phish-guard/internal/utils"
	"go.uber.org/zap/zaptest"
)

const validReply = `{"verdict":"SAFE","overallScore":10,"checks":[{"name":"X","description":"Y","score":5}]}`

type inferFunc func(ctx context.Context, prompt string, schema *Schema) (string, error)

func (f inferFunc) Infer(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return f(ctx, prompt, schema)
}

func staticReply(reply string) inferFunc {
	return func(context.Context, string, *Schema) (string, error) { return reply, nil }
}

func failingInferrer(err error) inferFunc {
	return func(context.Context, string, *Schema) (string, error) { return "", err }
}

func newTestClient(t *testing.T, inferrer Inferrer) *AnalysisClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewAnalysisClient(inferrer, utils.NewTextProcessor(logger), logger, 0, 0)
}

// memKV is a KeyValueStore fake that can be told to fail writes
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	setErr  error
	sets    int
	removes int
	// setGate, when set, holds every Set until it is closed; setEntered
	// receives one value per held Set
	setGate    chan struct{}
	setEntered chan struct{}
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	if m.setGate != nil {
		m.setEntered <- struct{}{}
		<-m.setGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes++
	delete(m.data, key)
	return nil
}

func (m *memKV) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// fakeClock drives debouncer timers by hand
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, running due timers in order
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var errNetwork = errors.New("connection reset by peer")
