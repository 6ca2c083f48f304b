// Package memory is an in-process transport. Every session opened from one
// Broker shares its destinations, which makes it useful for demos and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/transport"
)

func init() {
	transport.Register("memory", func(cfg transport.Config) (core.Transport, error) {
		var opts []Option
		if n, ok := cfg.Extra["buffer"].(int); ok {
			opts = append(opts, WithBuffer(n))
		}
		return NewBroker(opts...), nil
	})
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscription queue length. Publishing blocks while
// a subscriber's queue is full.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithMatcher replaces the destination matcher.
func WithMatcher(m core.TopicMatcher) Option {
	return func(b *Broker) { b.matcher = m }
}

// Broker routes published messages to matching subscriptions of all its
// sessions. Subscription destinations may use "*" for one level and "#" for
// any number of trailing levels.
type Broker struct {
	matcher core.TopicMatcher
	buffer  int

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

func NewBroker(fns ...Option) *Broker {
	b := &Broker{
		matcher:  core.DefaultMatcher{Separator: "/"},
		buffer:   64,
		sessions: make(map[*session]struct{}),
	}
	for _, fn := range fns {
		fn(b)
	}
	return b
}

// Connect opens a session. The endpoint is recorded in Info and otherwise
// ignored.
func (b *Broker) Connect(ctx context.Context, endpoint string) (core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &session{
		broker: b,
		info:   map[string]string{"endpoint": endpoint, "session": uuid.NewString()},
		subs:   make(map[string]*subscription),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

// Kill ends every open session as if the broker went away.
func (b *Broker) Kill(cause error) {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.sessions = make(map[*session]struct{})
	b.mu.Unlock()

	for _, s := range sessions {
		s.end(cause)
	}
}

// route queues msg on every subscription matching destination.
func (b *Broker) route(ctx context.Context, destination string, msg core.Message) error {
	b.mu.RLock()
	var targets []*subscription
	for s := range b.sessions {
		s.mu.Lock()
		for _, sub := range s.subs {
			if b.matcher.Match(sub.destination, destination) {
				targets = append(targets, sub)
			}
		}
		s.mu.Unlock()
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.enqueue(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) forget(s *session) {
	b.mu.Lock()
	delete(b.sessions, s)
	b.mu.Unlock()
}

type session struct {
	broker *Broker
	info   map[string]string

	mu        sync.Mutex
	subs      map[string]*subscription
	cause     error
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) Subscribe(_ context.Context, destination string, handler core.Handler) (core.Subscription, error) {
	sub := &subscription{
		session:     s,
		id:          uuid.NewString(),
		destination: destination,
		handler:     handler,
		queue:       make(chan core.Message, s.broker.buffer),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return nil, core.ErrSessionClosed
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	go sub.pump()
	return sub, nil
}

func (s *session) Publish(ctx context.Context, destination string, msg core.Message) error {
	if s.isClosed() {
		return core.ErrSessionClosed
	}
	out := core.NewMessage(destination, msg.Body(), copyHeaders(msg.Headers()))
	if err := s.broker.route(ctx, destination, out); err != nil {
		return fmt.Errorf("topicmux/memory: publish to %q: %w", destination, err)
	}
	return nil
}

func (s *session) Disconnect(_ context.Context) error {
	s.broker.forget(s)
	s.end(nil)
	return nil
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *session) Info() map[string]string { return s.info }

// end stops every subscription pump and closes done.
func (s *session) end(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cause = cause
		subs := s.subs
		s.subs = make(map[string]*subscription)
		close(s.done)
		s.mu.Unlock()

		for _, sub := range subs {
			sub.stop()
		}
	})
}

func (s *session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type subscription struct {
	session     *session
	id          string
	destination string
	handler     core.Handler
	queue       chan core.Message
	quit        chan struct{}
	stopped     chan struct{}
	once        sync.Once
}

func (s *subscription) ID() string          { return s.id }
func (s *subscription) Destination() string { return s.destination }

func (s *subscription) Unsubscribe() error {
	s.session.mu.Lock()
	delete(s.session.subs, s.id)
	s.session.mu.Unlock()
	s.stop()
	return nil
}

func (s *subscription) enqueue(ctx context.Context, msg core.Message) error {
	select {
	case s.queue <- msg:
		return nil
	case <-s.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump delivers queued messages in order until stopped.
func (s *subscription) pump() {
	defer close(s.stopped)
	ctx := context.Background()
	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.queue:
			_ = s.handler(ctx, msg)
		}
	}
}

// stop ends the pump. It does not wait when called from the pump itself.
func (s *subscription) stop() {
	s.once.Do(func() { close(s.quit) })
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
