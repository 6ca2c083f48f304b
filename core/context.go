package core

import (
	"context"
	"fmt"
	"sync"
)

// Context is the per-message handler context. It carries the parsed body, the
// raw message and the subscription it arrived on.
type Context interface {
	// Context returns the underlying context.Context.
	Context() context.Context

	// SetContext replaces the underlying context.Context.
	// Useful for middleware that enriches the context with values or deadlines.
	SetContext(ctx context.Context)

	// Message returns the raw transport message.
	Message() Message

	// Destination returns the destination the subscription was opened on.
	Destination() string

	// SubscriptionID returns the id of the subscription that received the message.
	SubscriptionID() string

	// Kind returns the channel family of the subscription.
	Kind() ChannelKind

	// Body returns the parsed body: map[string]any for JSON objects,
	// []any for arrays, or a scalar.
	Body() any

	// Raw returns the unparsed body.
	Raw() []byte

	// Envelope decodes the body as a {type, payload} envelope.
	Envelope() (Envelope, error)

	// Bind decodes the raw body into v using the client's Binder.
	Bind(v any) error

	// Header returns a single header value by key.
	Header(key string) string

	// Headers returns all message headers.
	Headers() map[string]string

	// Ack acknowledges the message on transports that support it.
	Ack() error

	// Nack negatively acknowledges the message on transports that support it.
	Nack() error

	// Republish sends the raw message to another destination on the same session.
	Republish(destination string) error

	// Set stores a key-value pair in the context store.
	// Used by middleware to pass data to downstream handlers.
	Set(key string, val any)

	// Get retrieves a value from the context store.
	Get(key string) (any, bool)
}

// HandlerFunc is the subscription callback.
//
//	id, err := client.SubscribeBatch(42, func(c topicmux.Context) error {
//	    env, err := c.Envelope()
//	    if err != nil {
//	        return err
//	    }
//	    if env.Type == topicmux.TypeProgressUpdate {
//	        fmt.Println(env.Payload["progress"])
//	    }
//	    return nil
//	})
type HandlerFunc func(c Context) error

// MiddlewareFunc wraps a HandlerFunc to add cross-cutting behavior.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

type messageContext struct {
	ctx     context.Context
	msg     Message
	info    SubscriptionInfo
	body    any
	binder  Binder
	session Session
	store   map[string]any
	mu      sync.RWMutex
}

// NewContext creates a Context for an inbound message whose body has already
// been parsed. The client calls it for every dispatched message.
func NewContext(ctx context.Context, msg Message, info SubscriptionInfo, body any, binder Binder, s Session) Context {
	return &messageContext{
		ctx:     ctx,
		msg:     msg,
		info:    info,
		body:    body,
		binder:  binder,
		session: s,
		store:   make(map[string]any),
	}
}

func (c *messageContext) Context() context.Context { return c.ctx }

func (c *messageContext) SetContext(ctx context.Context) { c.ctx = ctx }

func (c *messageContext) Message() Message { return c.msg }

func (c *messageContext) Destination() string { return c.info.Destination }

func (c *messageContext) SubscriptionID() string { return c.info.ID }

func (c *messageContext) Kind() ChannelKind { return c.info.Kind }

func (c *messageContext) Body() any { return c.body }

func (c *messageContext) Raw() []byte { return c.msg.Body() }

func (c *messageContext) Envelope() (Envelope, error) {
	return DecodeEnvelope(c.msg.Body())
}

func (c *messageContext) Bind(v any) error {
	if c.binder == nil {
		return fmt.Errorf("topicmux: no binder configured")
	}
	if err := c.binder.Bind(c.msg.Body(), v); err != nil {
		return fmt.Errorf("topicmux: bind: %w", err)
	}
	return nil
}

func (c *messageContext) Header(key string) string {
	return c.msg.Headers()[key]
}

func (c *messageContext) Headers() map[string]string {
	return c.msg.Headers()
}

func (c *messageContext) Ack() error {
	if err := c.msg.Ack(); err != nil {
		return fmt.Errorf("topicmux: ack: %w", err)
	}
	return nil
}

func (c *messageContext) Nack() error {
	if err := c.msg.Nack(); err != nil {
		return fmt.Errorf("topicmux: nack: %w", err)
	}
	return nil
}

func (c *messageContext) Republish(destination string) error {
	if c.session == nil {
		return ErrNotConnected
	}
	out := NewMessage(destination, c.msg.Body(), c.msg.Headers())
	if err := c.session.Publish(c.ctx, destination, out); err != nil {
		return fmt.Errorf("topicmux: republish to %q: %w", destination, err)
	}
	return nil
}

func (c *messageContext) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *messageContext) Get(key string) (any, bool) {
	c.mu.RLock()
	val, ok := c.store[key]
	c.mu.RUnlock()
	return val, ok
}
