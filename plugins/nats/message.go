package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// message adapts a core NATS or JetStream message to core.Message.
// Core messages carry no acknowledgement; Ack and Nack are no-ops for them.
type message struct {
	destination string
	data        []byte
	header      nats.Header
	js          jetstream.Msg
}

func (m *message) Destination() string { return m.destination }
func (m *message) Body() []byte        { return m.data }

func (m *message) Headers() map[string]string {
	h := make(map[string]string, len(m.header))
	for k, v := range m.header {
		if len(v) > 0 {
			h[k] = v[0]
		}
	}
	return h
}

// Ack acknowledges the message, marking it as processed.
func (m *message) Ack() error {
	if m.js == nil {
		return nil
	}
	if err := m.js.Ack(); err != nil {
		return fmt.Errorf("topicmux/nats: ack: %w", err)
	}
	return nil
}

// Nack signals that the message could not be processed.
// The server will redeliver it according to the consumer's MaxDeliver setting.
func (m *message) Nack() error {
	if m.js == nil {
		return nil
	}
	if err := m.js.Nak(); err != nil {
		return fmt.Errorf("topicmux/nats: nack: %w", err)
	}
	return nil
}
