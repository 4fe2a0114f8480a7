package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher publishes domain events to the handlers subscribed to their type.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// HandlerFailure is one handler's failure while processing an event.
type HandlerFailure struct {
	Position int
	Err      error
	Panicked bool
}

// PublishError reports every handler that failed for one event. The
// remaining handlers still ran.
type PublishError struct {
	EventID  string
	Type     EventType
	Failures []HandlerFailure
}

func (e *PublishError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("handler %d: %v", f.Position, f.Err))
	}
	return fmt.Sprintf("%s %s: %s", e.Type, e.EventID, strings.Join(parts, "; "))
}

// Unwrap exposes the handler errors to errors.Is and errors.As.
func (e *PublishError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// ErrHandlerPanic wraps the value recovered from a panicking handler.
var ErrHandlerPanic = errors.New("event handler panicked")

// syncDispatcher runs handlers on the publishing goroutine, in subscription order.
type syncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &syncDispatcher{
		listeners: make(map[EventType][]EventHandler),
	}
}

// Publish invokes every handler for event.Type. A failing or panicking handler
// does not stop the others; failures come back as a *PublishError.
func (d *syncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var failures []HandlerFailure
	for i, handler := range handlers {
		if f, failed := invoke(ctx, i, handler, event); failed {
			failures = append(failures, f)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &PublishError{EventID: event.ID, Type: event.Type, Failures: failures}
}

func invoke(ctx context.Context, position int, handler EventHandler, event Event) (f HandlerFailure, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			f = HandlerFailure{Position: position, Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r), Panicked: true}
			failed = true
		}
	}()
	if err := handler(ctx, event); err != nil {
		return HandlerFailure{Position: position, Err: err}, true
	}
	return HandlerFailure{}, false
}

// Subscribe registers a handler for the given event type. Nil handlers are ignored.
func (d *syncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}
