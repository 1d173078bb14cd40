// Package bus is the in-process event fan-out between the engine core and
// its outward surfaces (websocket live feed, logs). Publishing never blocks
// the match loop: a subscriber that falls behind loses events rather than
// stalling scoring.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType labels an engine event.
type EventType string

const (
	EventPressureUpdated     EventType = "pressure.updated"
	EventWorkloadUpdated     EventType = "workload.updated"
	EventRecommendationReady EventType = "recommendation.ready"
	EventAnalyzerDegraded    EventType = "analyzer.degraded"
	EventMatchEvent          EventType = "match.event"
)

// Event is one engine event with its typed payload.
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

const subscriberBuffer = 64

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes it and closes its channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
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

// Publish delivers the event to every subscriber without blocking. Events
// for a full subscriber are dropped.
func (b *Bus) Publish(eventType EventType, payload any) {
	ev := Event{Type: eventType, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("event", string(eventType)).Msg("slow bus subscriber, event dropped")
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
