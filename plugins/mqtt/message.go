package mqtt

import (
	"strconv"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// message adapts a paho message to core.Message.
type message struct {
	destination string
	msg         paho.Message
}

func (m *message) Destination() string { return m.destination }
func (m *message) Body() []byte        { return m.msg.Payload() }

func (m *message) Headers() map[string]string {
	return map[string]string{
		"topic":      m.msg.Topic(),
		"qos":        strconv.Itoa(int(m.msg.Qos())),
		"retained":   strconv.FormatBool(m.msg.Retained()),
		"message-id": strconv.Itoa(int(m.msg.MessageID())),
	}
}

// Ack acknowledges a QoS 1 or 2 delivery.
func (m *message) Ack() error {
	m.msg.Ack()
	return nil
}

// Nack is a no-op; MQTT has no negative acknowledgement.
func (m *message) Nack() error { return nil }
