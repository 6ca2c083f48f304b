package core

import "context"

// Message is the transport-agnostic message abstraction.
// Inbound implementations are provided by transport plugins.
type Message interface {
	Destination() string
	Body() []byte
	Headers() map[string]string
	Ack() error
	Nack() error
}

// Handler is the low-level handler used by transport subscriptions.
// Users should prefer HandlerFunc which receives a Context.
type Handler func(ctx context.Context, msg Message) error

// OutboundMessage is a Message built locally for Session.Publish.
type OutboundMessage struct {
	To     string
	Data   []byte
	Header map[string]string
}

// NewMessage builds an OutboundMessage.
func NewMessage(destination string, body []byte, headers map[string]string) *OutboundMessage {
	if headers == nil {
		headers = map[string]string{}
	}
	return &OutboundMessage{To: destination, Data: body, Header: headers}
}

func (m *OutboundMessage) Destination() string        { return m.To }
func (m *OutboundMessage) Body() []byte               { return m.Data }
func (m *OutboundMessage) Headers() map[string]string { return m.Header }

// Ack is a no-op for locally built messages.
func (m *OutboundMessage) Ack() error { return nil }

// Nack is a no-op for locally built messages.
func (m *OutboundMessage) Nack() error { return nil }
