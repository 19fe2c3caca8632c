// Package eventbus is an in-process publish/subscribe channel.
package eventbus

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a stream of events.
type EventType string

// Event is a single notification. Payload is owned by the publisher and must
// be treated as read-only by handlers.
type Event struct {
	ID      string
	Type    EventType
	At      time.Time
	Payload any
}

// Handler receives events. Handlers run on the publisher's goroutine.
type Handler func(ctx context.Context, event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously, in subscription order, before Publish
// returns. A handler must not publish or mutate the source of the event from
// inside its callback.
type Bus struct {
	mu     sync.RWMutex
	typed  map[EventType][]subscription
	nextID atomic.Uint64
	logger *slog.Logger

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		typed:   make(map[EventType][]subscription),
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Publish fans out an event to the subscribers of its type and returns the
// delivered event. A panicking handler is recovered and logged; the remaining
// handlers still run.
func (b *Bus) Publish(ctx context.Context, event Event) Event {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = b.newID(event.At)
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.typed[event.Type]))
	copy(subs, b.typed[event.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(ctx, event, sub)
	}
	return event
}

func (b *Bus) dispatch(ctx context.Context, event Event, sub subscription) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.ErrorContext(ctx, "event handler panicked",
				"event", string(event.Type),
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	sub.handler(ctx, event)
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function; calling it more than once is harmless.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.typed[eventType]
		for i, s := range subs {
			if s.id == id {
				b.typed[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns how many handlers listen for eventType.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.typed[eventType])
}

func (b *Bus) newID(t time.Time) string {
	b.entropyMu.Lock()
	defer b.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), b.entropy).String()
}
