package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

// Handler reacts to an event using the transaction that raised it. A
// returned error aborts the whole transaction.
type Handler func(ctx context.Context, tx repository.Tx, event Event) error

// Hooks publishes events to handlers synchronously within a transaction.
type Hooks interface {
	Publish(ctx context.Context, tx repository.Tx, event Event) error
	Subscribe(eventType EventType, handler Handler)
}

type inTxDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]Handler
}

// NewHooks creates a dispatcher instance.
func NewHooks() Hooks {
	return &inTxDispatcher{
		listeners: make(map[EventType][]Handler),
	}
}

// Publish invokes handlers in subscription order and stops at the first
// error. Handlers may publish further events on the same tx.
func (d *inTxDispatcher) Publish(ctx context.Context, tx repository.Tx, event Event) error {
	d.mu.RLock()
	handlers := append([]Handler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, tx, event); err != nil {
			return fmt.Errorf("%s hook: %w", event.Type, err)
		}
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *inTxDispatcher) Subscribe(eventType EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}
