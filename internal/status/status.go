package status

import "sync"

// Status is the four-state transcription lifecycle. The daemon owns the
// value; every other surface observes it.
type Status int

const (
	Recording Status = iota
	Transcribing
	Finished
	Error
)

func (s Status) String() string {
	switch s {
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Finished:
		return "finished"
	case Error:
		return "error"
	}
	return "unknown"
}

// Tracker is the single source of truth for the lifecycle value. Watchers
// are invoked synchronously on every change, in registration order.
type Tracker struct {
	mu       sync.Mutex
	current  Status
	watchers []func(Status)
}

// NewTracker returns a tracker in the initial Recording state.
func NewTracker() *Tracker {
	return &Tracker{current: Recording}
}

// Current returns the current status.
func (t *Tracker) Current() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Set moves the tracker to s and notifies watchers if the value changed.
func (t *Tracker) Set(s Status) {
	t.mu.Lock()
	if t.current == s {
		t.mu.Unlock()
		return
	}
	t.current = s
	watchers := append([]func(Status){}, t.watchers...)
	t.mu.Unlock()

	for _, w := range watchers {
		w(s)
	}
}

// Reset re-enters Recording from any state. Terminal states (Finished,
// Error) are re-enterable by user action; callers clear pending text at
// this transition.
func (t *Tracker) Reset() {
	t.Set(Recording)
}

// Watch registers fn for status changes. The current value is delivered
// immediately so late subscribers converge without waiting for a change.
func (t *Tracker) Watch(fn func(Status)) {
	t.mu.Lock()
	t.watchers = append(t.watchers, fn)
	current := t.current
	t.mu.Unlock()

	fn(current)
}
