package core

import (
	"context"
	"strings"
	"sync"
)

// DefaultEndpointPath is appended to the server address when opening a session.
const DefaultEndpointPath = "/ws"

// connection tracks the single transport session owned by a Client.
// connected and handle always agree: connected == (handle != nil).
type connection struct {
	address      string
	endpointPath string
	transport    Transport

	// attempt serializes connect and disconnect attempts.
	attempt sync.Mutex

	mu      sync.RWMutex
	handle  Session
	closing Session
}

func newConnection(address, endpointPath string, t Transport) *connection {
	return &connection{
		address:      address,
		endpointPath: endpointPath,
		transport:    t,
	}
}

// endpoint joins the server address and the endpoint path.
func (c *connection) endpoint() string {
	if c.endpointPath == "" {
		return c.address
	}
	return strings.TrimRight(c.address, "/") + "/" + strings.TrimLeft(c.endpointPath, "/")
}

// open negotiates a session unless one is already live. opened is false when
// the existing session was returned.
func (c *connection) open(ctx context.Context) (s Session, opened bool, err error) {
	c.attempt.Lock()
	defer c.attempt.Unlock()

	if s := c.current(); s != nil {
		return s, false, nil
	}

	endpoint := c.endpoint()
	if c.address == "" {
		return nil, false, &ConnectError{Endpoint: endpoint, Err: ErrEmptyAddress}
	}
	if c.transport == nil {
		return nil, false, &ConnectError{Endpoint: endpoint, Err: ErrNoTransport}
	}

	s, err = c.transport.Connect(ctx, endpoint)
	if err != nil {
		c.set(nil)
		return nil, false, &ConnectError{Endpoint: endpoint, Err: err}
	}
	c.set(s)
	return s, true, nil
}

// close tears the live session down. It returns the session it closed, or
// nil when there was none.
func (c *connection) close(ctx context.Context) (Session, error) {
	c.attempt.Lock()
	defer c.attempt.Unlock()

	c.mu.Lock()
	s := c.handle
	if s == nil {
		c.mu.Unlock()
		return nil, nil
	}
	c.closing = s
	c.mu.Unlock()

	err := s.Disconnect(ctx)

	c.mu.Lock()
	if c.handle == s {
		c.handle = nil
	}
	c.closing = nil
	c.mu.Unlock()
	return s, err
}

// release clears s after the transport ended it on its own. It reports false
// when s is no longer current or a requested close is in progress.
func (c *connection) release(s Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != s || c.closing == s {
		return false
	}
	c.handle = nil
	return true
}

func (c *connection) set(s Session) {
	c.mu.Lock()
	c.handle = s
	c.mu.Unlock()
}

func (c *connection) current() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

func (c *connection) isConnected() bool {
	return c.current() != nil
}
