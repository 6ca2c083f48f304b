package stomp

import (
	"fmt"

	"github.com/go-stomp/stomp/v3"
)

// message adapts a received STOMP MESSAGE frame to core.Message.
type message struct {
	msg  *stomp.Message
	conn *stomp.Conn
	auto bool
}

func (m *message) Destination() string { return m.msg.Destination }
func (m *message) Body() []byte        { return m.msg.Body }

func (m *message) Headers() map[string]string {
	h := make(map[string]string)
	if m.msg.Header != nil {
		for i := 0; i < m.msg.Header.Len(); i++ {
			k, v := m.msg.Header.GetAt(i)
			if _, dup := h[k]; !dup {
				h[k] = v
			}
		}
	}
	if m.msg.ContentType != "" {
		h["content-type"] = m.msg.ContentType
	}
	return h
}

// Ack acknowledges the message. It is a no-op in auto ack mode.
func (m *message) Ack() error {
	if m.auto {
		return nil
	}
	if err := m.conn.Ack(m.msg); err != nil {
		return fmt.Errorf("topicmux/stomp: ack: %w", err)
	}
	return nil
}

// Nack negatively acknowledges the message. It is a no-op in auto ack mode.
func (m *message) Nack() error {
	if m.auto {
		return nil
	}
	if err := m.conn.Nack(m.msg); err != nil {
		return fmt.Errorf("topicmux/stomp: nack: %w", err)
	}
	return nil
}
