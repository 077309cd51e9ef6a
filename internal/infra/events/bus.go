package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler processes events of the types it declares.
type Handler interface {
	Handles() []string
	Handle(event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	eventTypes []string
	fn         func(Event) error
}

// NewHandlerFunc creates a handler for eventTypes.
func NewHandlerFunc(eventTypes []string, fn func(Event) error) *HandlerFunc {
	return &HandlerFunc{eventTypes: eventTypes, fn: fn}
}

func (h *HandlerFunc) Handles() []string        { return h.eventTypes }
func (h *HandlerFunc) Handle(event Event) error { return h.fn(event) }

// Bus is a synchronous in-process event bus.
// Handlers must not block: progress events are published from the scheduler goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	nextID   uint64
	logger   *zap.Logger
}

type registration struct {
	id      uint64
	handler Handler
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]registration),
		logger:   logger.Named("events"),
	}
}

// Register subscribes handler and returns a function that removes it again.
func (b *Bus) Register(handler Handler) (unregister func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	for _, eventType := range handler.Handles() {
		b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, handler: handler})
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, eventType := range handler.Handles() {
			regs := b.handlers[eventType]
			for i, r := range regs {
				if r.id == id {
					b.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
					break
				}
			}
			if len(b.handlers[eventType]) == 0 {
				delete(b.handlers, eventType)
			}
		}
	}
}

// Publish dispatches event to its handlers in registration order. A failing handler
// is logged and does not stop the others.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	regs := append([]registration(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, r := range regs {
		if err := r.handler.Handle(event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err),
			)
		}
	}
}
