// Package events provides the in-process event bus used to publish experiment progress.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	RunStarted        EventType = "RUN_STARTED"
	BackendSelected   EventType = "BACKEND_SELECTED"
	CostEvaluated     EventType = "COST_EVALUATED"
	RunCompleted      EventType = "RUN_COMPLETED"
	RunFailed         EventType = "RUN_FAILED"
	ArtifactsUploaded EventType = "ARTIFACTS_UPLOADED"
)

// AllTypes lists every event type.
var AllTypes = []EventType{RunStarted, BackendSelected, CostEvaluated, RunCompleted, RunFailed, ArtifactsUploaded}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON flattens the event for stream clients.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      EventType `json:"type"`
		Timestamp string    `json:"timestamp"`
		Module    string    `json:"module"`
		Data      EventData `json:"data"`
	}{e.Type, e.Timestamp.Format(time.RFC3339Nano), e.Module, e.Data})
}

// Handler receives events. Handlers run on the publishing goroutine and must not block.
type Handler func(*Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	nextID uint64
	log    zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		log:  log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers handler for eventType and returns a function that removes it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[eventType]
		for i, s := range list {
			if s.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit publishes data from module to every subscriber of its type. A nil bus drops
// events, so publishers need no guard.
func (b *Bus) Emit(module string, data EventData) {
	if b == nil || data == nil {
		return
	}
	event := &Event{Type: data.EventType(), Timestamp: time.Now(), Module: module, Data: data}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[event.Type]))
	for i, s := range b.subs[event.Type] {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Int("subscribers", len(handlers)).
		Msg("Event emitted")

	for _, h := range handlers {
		h(event)
	}
}
