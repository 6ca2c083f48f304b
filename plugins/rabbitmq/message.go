package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// message adapts an amqp.Delivery to core.Message.
type message struct {
	destination string
	delivery    amqp.Delivery
	requeue     bool
}

func (m *message) Destination() string { return m.destination }
func (m *message) Body() []byte        { return m.delivery.Body }

func (m *message) Headers() map[string]string {
	h := make(map[string]string, len(m.delivery.Headers)+1)
	for k, v := range m.delivery.Headers {
		if s, ok := v.(string); ok {
			h[k] = s
		} else {
			h[k] = fmt.Sprintf("%v", v)
		}
	}
	if m.delivery.ContentType != "" {
		h["content-type"] = m.delivery.ContentType
	}
	return h
}

// Ack acknowledges the message, removing it from the queue.
func (m *message) Ack() error {
	if err := m.delivery.Ack(false); err != nil {
		return fmt.Errorf("topicmux/rabbitmq: ack: %w", err)
	}
	return nil
}

// Nack negatively acknowledges the message. If requeue is enabled,
// the message is returned to the queue for redelivery.
func (m *message) Nack() error {
	if err := m.delivery.Nack(false, m.requeue); err != nil {
		return fmt.Errorf("topicmux/rabbitmq: nack: %w", err)
	}
	return nil
}
