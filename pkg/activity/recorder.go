package activity

import (
	"context"
	"sync"
)

// Recorder is a Hook that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder returns a Recorder that answers every Notify with err.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

// Notify stores a normalized copy of event.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.Normalize())
	return r.err
}

// Events returns the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Verbs returns the verb of each recorded event.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, len(r.events))
	for i, e := range r.events {
		verbs[i] = e.Verb
	}
	return verbs
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
