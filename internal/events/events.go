// Package events defines the engagement event log shared by the tracker
// pipeline, the scoring harness and the event store.
package events

import (
	"errors"
	"sync"

	"github.com/banshee-data/target.range/internal/tracking"
)

// Event kinds.
const (
	KindTrack = "track" // a live track was reported for a frame
	KindHit   = "hit"   // a target was struck; scored by the harness
	KindFire  = "fire"  // a fire command was sent
	KindVeto  = "veto"  // an engagement was refused; see the reason field
)

// Well-known Fields keys.
const (
	FieldType    = "type"    // small or big (stages 1 and 2)
	FieldLabel   = "label"   // friend or enemy (stage 2)
	FieldCorrect = "correct" // true or false (stage 3)
	FieldReason  = "reason"  // why an engagement was vetoed
	FieldColor   = "color"
	FieldShape   = "shape"
)

// Event is one row of the engagement log.
type Event struct {
	T       float64           `json:"t"` // seconds since session start
	Kind    string            `json:"event"`
	TrackID int               `json:"id"`
	Box     tracking.Box      `json:"box"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Field returns Fields[key], or def when the key is absent.
func (e Event) Field(key, def string) string {
	if v, ok := e.Fields[key]; ok {
		return v
	}
	return def
}

// Recorder persists events.
type Recorder interface {
	Record(Event) error
}

// MultiRecorder fans each event out to every recorder and joins their
// errors.
type MultiRecorder []Recorder

// Record implements Recorder.
func (m MultiRecorder) Record(e Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Buffer keeps events in memory. It is safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (b *Buffer) Record(e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}
