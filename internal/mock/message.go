package mock

import (
	"fmt"
	"sync"
)

// Message is a core.Message double that records acknowledgements.
type Message struct {
	D       string
	B       []byte
	H       map[string]string
	AckErr  error
	NackErr error

	mu    sync.Mutex
	acks  int
	nacks int
}

// NewMessage returns a message for destination carrying body.
func NewMessage(destination, body string) *Message {
	return &Message{D: destination, B: []byte(body)}
}

// Envelope returns a message whose body is a {type, payload} envelope.
// payload must already be valid JSON.
func Envelope(destination, typ, payload string) *Message {
	return NewMessage(destination, fmt.Sprintf(`{"type":%q,"payload":%s}`, typ, payload))
}

func (m *Message) Destination() string        { return m.D }
func (m *Message) Body() []byte               { return m.B }
func (m *Message) Headers() map[string]string { return m.H }

func (m *Message) Ack() error {
	m.mu.Lock()
	m.acks++
	m.mu.Unlock()
	return m.AckErr
}

func (m *Message) Nack() error {
	m.mu.Lock()
	m.nacks++
	m.mu.Unlock()
	return m.NackErr
}

// Acks reports how many times Ack was called.
func (m *Message) Acks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acks
}

// Nacks reports how many times Nack was called.
func (m *Message) Nacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nacks
}
