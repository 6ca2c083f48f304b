package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/miladsoleymani/topicmux/core"
)

// Transport is a test double for core.Transport.
type Transport struct {
	// ConnectErr, when set, fails every Connect.
	ConnectErr error

	// Block, when set, holds Connect until it is closed or ctx ends.
	Block chan struct{}

	// Info is returned by every session's Info.
	Info map[string]string

	connects  atomic.Int32
	mu        sync.Mutex
	sessions  []*Session
	endpoints []string
}

func NewTransport() *Transport {
	return &Transport{Info: map[string]string{"version": "1.2"}}
}

func (t *Transport) Connect(ctx context.Context, endpoint string) (core.Session, error) {
	t.connects.Add(1)
	if t.Block != nil {
		select {
		case <-t.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}

	s := NewSession(t.Info)
	t.mu.Lock()
	t.sessions = append(t.sessions, s)
	t.endpoints = append(t.endpoints, endpoint)
	t.mu.Unlock()
	return s, nil
}

// Connects returns how many times Connect was called.
func (t *Transport) Connects() int { return int(t.connects.Load()) }

// Sessions returns how many sessions were opened successfully.
func (t *Transport) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// LastSession returns the most recently opened session, or nil.
func (t *Transport) LastSession() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

// LastEndpoint returns the endpoint passed to the most recent successful Connect.
func (t *Transport) LastEndpoint() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.endpoints) == 0 {
		return ""
	}
	return t.endpoints[len(t.endpoints)-1]
}

// PublishedMessage records a message sent through Publish.
type PublishedMessage struct {
	Destination string
	Message     core.Message
}

type subscription struct {
	session     *Session
	id          string
	destination string
	handler     core.Handler
}

func (s *subscription) ID() string          { return s.id }
func (s *subscription) Destination() string { return s.destination }

func (s *subscription) Unsubscribe() error {
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	if s.session.UnsubscribeErr != nil {
		return s.session.UnsubscribeErr
	}
	delete(s.session.subs, s.id)
	return nil
}

// Session is a test double for core.Session. Deliveries run on the caller's
// goroutine.
type Session struct {
	SubscribeErr   error
	UnsubscribeErr error
	PublishErr     error
	DisconnectErr  error

	// AfterSubscribe, when set, runs once a subscription is open and before
	// Subscribe returns, outside the session lock.
	AfterSubscribe func(id string)

	info map[string]string

	mu          sync.Mutex
	nextID      int
	subs        map[string]*subscription
	published   []PublishedMessage
	disconnects int
	err         error
	done        chan struct{}
	closeOnce   sync.Once
}

func NewSession(info map[string]string) *Session {
	return &Session{
		info: info,
		subs: make(map[string]*subscription),
		done: make(chan struct{}),
	}
}

func (s *Session) Subscribe(_ context.Context, destination string, handler core.Handler) (core.Subscription, error) {
	s.mu.Lock()
	if s.SubscribeErr != nil {
		s.mu.Unlock()
		return nil, s.SubscribeErr
	}
	if s.isClosed() {
		s.mu.Unlock()
		return nil, core.ErrSessionClosed
	}
	s.nextID++
	sub := &subscription{
		session:     s,
		id:          fmt.Sprintf("sub-%d", s.nextID),
		destination: destination,
		handler:     handler,
	}
	s.subs[sub.id] = sub
	hook := s.AfterSubscribe
	s.mu.Unlock()

	if hook != nil {
		hook(sub.id)
	}
	return sub, nil
}

func (s *Session) Publish(_ context.Context, destination string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PublishErr != nil {
		return s.PublishErr
	}
	if s.isClosed() {
		return core.ErrSessionClosed
	}
	s.published = append(s.published, PublishedMessage{Destination: destination, Message: msg})
	return nil
}

func (s *Session) Disconnect(_ context.Context) error {
	s.mu.Lock()
	s.disconnects++
	err := s.DisconnectErr
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return err
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Info() map[string]string { return s.info }

// Drop ends the session as if the broker went away.
func (s *Session) Drop(cause error) {
	s.mu.Lock()
	s.err = cause
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

// Deliver simulates an inbound message on every subscription whose
// destination equals destination. It returns how many handlers ran.
func (s *Session) Deliver(ctx context.Context, destination string, msg core.Message) int {
	s.mu.Lock()
	var targets []*subscription
	for _, sub := range s.subs {
		if sub.destination == destination {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range targets {
		_ = sub.handler(ctx, msg)
	}
	return len(targets)
}

// Published returns all messages sent via Publish.
func (s *Session) Published() []PublishedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PublishedMessage, len(s.published))
	copy(out, s.published)
	return out
}

// Active returns how many transport subscriptions are still open.
func (s *Session) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Disconnects returns how many times Disconnect was called.
func (s *Session) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
