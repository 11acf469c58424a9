package events

import (
	"context"
	"sync"
	"time"

	"bicho/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeIngestProgress      EventType = "ingest_progress"
	EventTypeIngestCompleted     EventType = "ingest_completed"
	EventTypeHouseCacheRefreshed EventType = "house_cache_refreshed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// IngestProgressEvent reports how far an ingestion has advanced.
// Percent is non-decreasing within a run and reaches 100 exactly once.
type IngestProgressEvent struct {
	RunID     string
	House     string
	Processed int
	Expected  int
	Percent   float64
}

func (e IngestProgressEvent) Type() EventType {
	return EventTypeIngestProgress
}

// Final reports whether this is the closing 100% notification
func (e IngestProgressEvent) Final() bool {
	return e.Percent >= 100
}

// IngestCompletedEvent is published once an ingestion has committed
type IngestCompletedEvent struct {
	Result models.IngestResult
}

func (e IngestCompletedEvent) Type() EventType {
	return EventTypeIngestCompleted
}

// HouseCacheRefreshedEvent is published after the house list was fetched again
type HouseCacheRefreshedEvent struct {
	Houses    int
	FetchedAt time.Time
}

func (e HouseCacheRefreshedEvent) Type() EventType {
	return EventTypeHouseCacheRefreshed
}

// Publisher receives events
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}

// NoopPublisher discards every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Publish dispatches an event to all registered handlers on the calling
// goroutine, in subscription order
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		b.call(ctx, event, handler, i)
	}
}

func (b *Bus) call(ctx context.Context, event Event, h Handler, handlerIndex int) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": handlerIndex,
				"panic":        r,
			}).Error("Event handler panicked")
		}
	}()
	h(ctx, event)
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying publisher.
type TransactionalBus struct {
	real    Publisher
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real Publisher) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(_ context.Context, e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	for _, ev := range b.pending {
		b.real.Publish(ctx, ev)
	}
	b.pending = nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// ChannelSink forwards events to a buffered channel. Intermediate progress is
// dropped when the buffer is full; every other event waits for room.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink with the given buffer size
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receiving side of the sink
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

func (s *ChannelSink) Publish(ctx context.Context, event Event) {
	if progress, ok := event.(IngestProgressEvent); ok && !progress.Final() {
		select {
		case s.ch <- event:
		default:
			log.WithFields(log.Fields{
				"house":   progress.House,
				"percent": progress.Percent,
			}).Debug("Progress sink full, dropping intermediate update")
		}
		return
	}

	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

// Close closes the channel; Publish must not be called afterwards
func (s *ChannelSink) Close() {
	close(s.ch)
}
