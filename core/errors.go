package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation needs a live session.
	ErrNotConnected = errors.New("topicmux: not connected")

	// ErrSessionClosed is returned by transports once their session has ended.
	ErrSessionClosed = errors.New("topicmux: session is closed")

	// ErrNoTransport is returned when a client is created without a transport.
	ErrNoTransport = errors.New("topicmux: transport is nil")

	// ErrEmptyAddress is returned when a client is created without a server address.
	ErrEmptyAddress = errors.New("topicmux: server address is empty")

	// ErrNilHandler is returned when subscribing with a nil callback.
	ErrNilHandler = errors.New("topicmux: handler is nil")
)

// ConnectError reports a failed session negotiation. It is recoverable:
// calling Connect again starts a fresh attempt.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("topicmux: connect %q: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// HandlerError reports a callback that panicked or returned an error.
// Event is set for lifecycle handlers, Destination and SubscriptionID for
// message callbacks.
type HandlerError struct {
	Event          EventKind
	Destination    string
	SubscriptionID string
	Err            error
}

func (e *HandlerError) Error() string {
	if e.Destination != "" {
		return fmt.Sprintf("topicmux: handler for %q (subscription %s): %v", e.Destination, e.SubscriptionID, e.Err)
	}
	return fmt.Sprintf("topicmux: %s handler: %v", e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
