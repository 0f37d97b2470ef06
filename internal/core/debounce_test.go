package core

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestDebouncer(t *testing.T) (*Debouncer, *fakeClock, *[]Input) {
	t.Helper()
	clock := &fakeClock{}
	var fired []Input
	d := NewDebouncer(time.Second, func(in Input) { fired = append(fired, in) }, zaptest.NewLogger(t))
	d.afterFunc = clock.AfterFunc
	return d, clock, &fired
}

func urlInput(content string) Input {
	return Input{Kind: KindURL, Content: content, Options: Options{URL: &URLOptions{SimulationMode: SimulationDesktop}}}
}

func TestDebounceCoalescesTyping(t *testing.T) {
	d, clock, fired := newTestDebouncer(t)

	steps := []struct {
		at      time.Duration
		content string
	}{
		{0, "h"},
		{200 * time.Millisecond, "ht"},
		{400 * time.Millisecond, "http"},
		{600 * time.Millisecond, "https://"},
		{700 * time.Millisecond, "https://exa"},
		{900 * time.Millisecond, "https://example.com"},
	}

	var now time.Duration
	for _, s := range steps {
		clock.Advance(s.at - now)
		now = s.at
		d.Change(urlInput(s.content))
	}

	clock.Advance(1899*time.Millisecond - now)
	if len(*fired) != 0 {
		t.Fatalf("fired %d times before 1900ms", len(*fired))
	}

	clock.Advance(time.Millisecond)
	if len(*fired) != 1 {
		t.Fatalf("fired %d times at 1900ms, want 1", len(*fired))
	}
	if got := (*fired)[0].Content; got != "https://example.com" {
		t.Errorf("fired with %q, want the content present at 900ms", got)
	}

	clock.Advance(10 * time.Second)
	if len(*fired) != 1 {
		t.Errorf("fired %d times in total, want 1", len(*fired))
	}
	if d.State() != DebounceFired {
		t.Errorf("state = %v, want fired", d.State())
	}
}

func TestDebounceChangeResetsClock(t *testing.T) {
	d, clock, fired := newTestDebouncer(t)

	d.Change(urlInput("https://first.example"))
	clock.Advance(800 * time.Millisecond)
	d.Change(urlInput("https://second.example"))

	clock.Advance(999 * time.Millisecond)
	if len(*fired) != 0 {
		t.Fatal("first snapshot fired after being superseded")
	}
	clock.Advance(time.Millisecond)
	if len(*fired) != 1 || (*fired)[0].Content != "https://second.example" {
		t.Fatalf("fired = %+v, want only the second snapshot", *fired)
	}
}

func TestDebounceOptionChangeRearms(t *testing.T) {
	d, clock, fired := newTestDebouncer(t)

	d.Change(urlInput("https://example.com"))
	clock.Advance(600 * time.Millisecond)

	mobile := urlInput("https://example.com")
	mobile.Options.URL.SimulationMode = SimulationMobile
	d.Change(mobile)

	clock.Advance(600 * time.Millisecond)
	if len(*fired) != 0 {
		t.Fatal("fired before a full quiet period after the option change")
	}
	clock.Advance(400 * time.Millisecond)
	if len(*fired) != 1 || (*fired)[0].Options.URL.SimulationMode != SimulationMobile {
		t.Fatalf("fired = %+v, want the mobile snapshot", *fired)
	}
}

func TestDebounceSingleSlot(t *testing.T) {
	d, clock, _ := newTestDebouncer(t)

	for i := 0; i < 5; i++ {
		d.Change(urlInput("https://example.com/" + string(rune('a'+i))))
		if n := clock.Pending(); n != 1 {
			t.Fatalf("%d timers pending, want 1", n)
		}
	}
}

func TestDebounceShapeGate(t *testing.T) {
	d, clock, fired := newTestDebouncer(t)

	for _, in := range []Input{
		urlInput("example.com"),
		urlInput("https://"),
		urlInput("http://x"),
		{Kind: KindEmail, Content: "https://example.com"},
	} {
		if d.Change(in) {
			t.Errorf("Change(%+v) armed a timer", in)
		}
	}
	clock.Advance(5 * time.Second)
	if len(*fired) != 0 {
		t.Errorf("fired %d times for inputs failing the gate", len(*fired))
	}
}

func TestDebounceNonQualifyingChangeCancels(t *testing.T) {
	d, clock, fired := newTestDebouncer(t)

	d.Change(urlInput("https://example.com"))
	clock.Advance(500 * time.Millisecond)
	d.Change(urlInput("https://example"))

	if d.Pending() {
		t.Error("timer still pending after input stopped looking like a URL")
	}
	clock.Advance(5 * time.Second)
	if len(*fired) != 0 {
		t.Errorf("fired %d times, want 0", len(*fired))
	}
}

func TestDebounceCancel(t *testing.T) {
	d, clock, fired := newTestDebouncer(t)

	if !d.Change(urlInput("https://example.com")) {
		t.Fatal("qualifying input did not arm")
	}
	if d.State() != DebounceArmed {
		t.Fatalf("state = %v, want armed", d.State())
	}
	d.Cancel()
	if d.State() != DebounceIdle {
		t.Errorf("state = %v, want idle", d.State())
	}
	clock.Advance(5 * time.Second)
	if len(*fired) != 0 {
		t.Errorf("cancelled timer fired")
	}
}

func TestDebounceIgnoresStaleTimer(t *testing.T) {
	d, _, fired := newTestDebouncer(t)

	var captured func()
	d.afterFunc = func(_ time.Duration, f func()) Timer {
		captured = f
		return stopNoop{}
	}

	d.Change(urlInput("https://example.com"))
	stale := captured
	d.Change(urlInput("https://example.org"))

	// A timer whose Stop lost the race still runs; it must be ignored
	stale()
	if len(*fired) != 0 {
		t.Fatalf("stale timer fired %+v", *fired)
	}
	captured()
	if len(*fired) != 1 || (*fired)[0].Content != "https://example.org" {
		t.Errorf("fired = %+v", *fired)
	}
}

type stopNoop struct{}

func (stopNoop) Stop() bool { return false }

func TestDebounceBusyUntilFireReturns(t *testing.T) {
	clock := &fakeClock{}
	var d *Debouncer
	var busyDuringFire bool
	d = NewDebouncer(time.Second, func(Input) { busyDuringFire = d.Busy() }, zaptest.NewLogger(t))
	d.afterFunc = clock.AfterFunc

	if d.Busy() {
		t.Fatal("idle debouncer reports busy")
	}
	d.Change(urlInput("https://example.com"))
	if !d.Busy() {
		t.Fatal("armed debouncer reports not busy")
	}

	clock.Advance(time.Second)
	if !busyDuringFire {
		t.Error("debouncer reported not busy while the fired call was running")
	}
	if d.Busy() {
		t.Error("debouncer still busy after the fired call returned")
	}
}
