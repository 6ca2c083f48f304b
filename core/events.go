package core

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind enumerates the client lifecycle events.
type EventKind int

const (
	EventConnect EventKind = iota + 1
	EventDisconnect
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Valid reports whether k is one of the known lifecycle events.
func (k EventKind) Valid() bool {
	return k >= EventConnect && k <= EventError
}

// ParseEventKind maps "connect", "disconnect" and "error" to their kinds.
func ParseEventKind(s string) (EventKind, bool) {
	switch s {
	case "connect":
		return EventConnect, true
	case "disconnect":
		return EventDisconnect, true
	case "error":
		return EventError, true
	}
	return 0, false
}

// Event is the payload passed to lifecycle handlers.
//
// For EventConnect, Info carries the attributes negotiated by the transport.
// For EventError, Err is the failure. For EventDisconnect, Err is nil after a
// requested Disconnect and holds the cause when the session was lost.
type Event struct {
	Kind EventKind
	Info map[string]string
	Err  error
	Time time.Time
}

// EventHandler handles a lifecycle event. A returned error or a panic is
// logged and does not stop the remaining handlers.
type EventHandler func(ev Event) error

// EventHandlerID identifies one registration made with On.
// The zero value never identifies a registration.
type EventHandlerID uint64

type registeredHandler struct {
	id EventHandlerID
	fn EventHandler
}

// handlerRegistry keeps the ordered handler lists per event kind.
type handlerRegistry struct {
	mu       sync.Mutex
	nextID   EventHandlerID
	handlers map[EventKind][]registeredHandler
	logger   *zap.Logger
}

func newHandlerRegistry(logger *zap.Logger) *handlerRegistry {
	return &handlerRegistry{
		handlers: map[EventKind][]registeredHandler{
			EventConnect:    nil,
			EventDisconnect: nil,
			EventError:      nil,
		},
		logger: logger,
	}
}

// on appends fn to the list for kind. Unknown kinds and nil handlers are
// ignored and yield the zero id.
func (r *handlerRegistry) on(kind EventKind, fn EventHandler) EventHandlerID {
	if !kind.Valid() || fn == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[kind] = append(r.handlers[kind], registeredHandler{id: r.nextID, fn: fn})
	return r.nextID
}

// off removes every entry registered under id for kind.
func (r *handlerRegistry) off(kind EventKind, id EventHandlerID) {
	if !kind.Valid() || id == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[kind]
	kept := make([]registeredHandler, 0, len(list))
	for _, h := range list {
		if h.id != id {
			kept = append(kept, h)
		}
	}
	r.handlers[kind] = kept
}

func (r *handlerRegistry) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[kind])
}

// fire invokes the handlers registered for ev.Kind in registration order.
// The list is snapshotted first so handlers may call on/off.
func (r *handlerRegistry) fire(ev Event) {
	if !ev.Kind.Valid() {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	r.mu.Lock()
	list := make([]registeredHandler, len(r.handlers[ev.Kind]))
	copy(list, r.handlers[ev.Kind])
	r.mu.Unlock()

	for _, h := range list {
		if err := invokeEventHandler(h.fn, ev); err != nil {
			r.logger.Error("lifecycle handler failed",
				zap.Stringer("event", ev.Kind),
				zap.Uint64("handler_id", uint64(h.id)),
				zap.Error(err))
		}
	}
}

func invokeEventHandler(fn EventHandler, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerError{Event: ev.Kind, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if herr := fn(ev); herr != nil {
		return &HandlerError{Event: ev.Kind, Err: herr}
	}
	return nil
}
