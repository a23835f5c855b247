package events

import (
	"sync"

	"lootpool/core/types"
)

// Event represents a structured state change emitted by the pool.
type Event interface {
	EventType() string
}

// Wire is implemented by events that can render themselves for RPC and log
// subscribers.
type Wire interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events emitted during a call so they can be published only
// once the call's state changes are committed.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	return append([]Event(nil), b.events...)
}

// Flush forwards every buffered event to the destination and resets the buffer.
func (b *Buffer) Flush(dst Emitter) {
	if b == nil {
		return
	}
	pending := b.events
	b.events = nil
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Reset drops all buffered events.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = nil
	}
}

// Fanout delivers each event to every registered subscriber in order.
type Fanout struct {
	mu   sync.RWMutex
	subs []Emitter
}

// NewFanout constructs a fan-out emitter over the supplied subscribers. Nil
// subscribers are skipped.
func NewFanout(subs ...Emitter) *Fanout {
	f := &Fanout{}
	for _, sub := range subs {
		f.Subscribe(sub)
	}
	return f
}

// Subscribe appends a subscriber.
func (f *Fanout) Subscribe(sub Emitter) {
	if f == nil || sub == nil {
		return
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
}

// Emit implements the Emitter interface.
func (f *Fanout) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.RLock()
	subs := append([]Emitter(nil), f.subs...)
	f.mu.RUnlock()
	for _, sub := range subs {
		sub.Emit(evt)
	}
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (fn EmitterFunc) Emit(evt Event) {
	if fn != nil {
		fn(evt)
	}
}
