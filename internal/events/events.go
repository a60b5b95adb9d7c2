// Package events defines the change notifications the lifecycle emits after a
// mutation commits. Transports (the WebSocket hub) implement Notifier.
package events

import "sync"

// Type names a change event.
type Type string

const (
	TaskCreated      Type = "task_created"
	TaskUpdated      Type = "task_updated"
	TaskDeleted      Type = "task_deleted"
	TasksBulkUpdated Type = "tasks_bulk_updated"
	ProjectsUpdated  Type = "projects_updated"
	ActivityCreated  Type = "activity_created"
	DocumentUpdated  Type = "document_updated"
)

// Event is one change notification. Data is the affected entity or a small
// summary object such as {"archived_done": 3}.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Notifier receives events. Notify must not block the caller for long.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(Event) {})

// Multi fans one event out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(e Event) {
		for _, n := range notifiers {
			n.Notify(e)
		}
	})
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify records e.
func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
