// Package events carries library and sync notifications between the engine
// and its consumers (CLI progress display, HTTP status endpoint).
//
// Delivery is best-effort: publishing never blocks, and a subscriber that
// stops draining its channel loses events rather than stalling a sync pass.
package events

import (
	"fmt"
	"sync"
	"time"
)

// Type enumerates the event kinds the bus carries.
type Type int

const (
	SyncStarted Type = iota
	SyncProgress
	SyncCompleted
	SyncFailed
	EntityLinked
	EntitySeeded
	EntityPruned
)

func (t Type) String() string {
	switch t {
	case SyncStarted:
		return "sync_started"
	case SyncProgress:
		return "sync_progress"
	case SyncCompleted:
		return "sync_completed"
	case SyncFailed:
		return "sync_failed"
	case EntityLinked:
		return "entity_linked"
	case EntitySeeded:
		return "entity_seeded"
	case EntityPruned:
		return "entity_pruned"
	default:
		return ""
	}
}

// Event is a single notification.
type Event struct {
	Type       Type
	ProviderID string
	Message    string
	Step       int
	Total      int
	At         time.Time
	Data       any // optional event-specific payload
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// function removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Progress builds a sync progress event with a step counter message.
func Progress(providerID string, step, total int, message string) Event {
	return Event{
		Type:       SyncProgress,
		ProviderID: providerID,
		Step:       step,
		Total:      total,
		Message:    fmt.Sprintf("[%d/%d] %s", step, total, message),
	}
}
