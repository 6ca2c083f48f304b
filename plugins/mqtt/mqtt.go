package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/transport"
)

func init() {
	transport.Register("mqtt", func(cfg transport.Config) (core.Transport, error) {
		return New(cfg.Addresses, optsFromConfig(cfg)...), nil
	})
}

// Transport implements core.Transport for MQTT brokers using the paho client.
//
// Design decisions:
//   - One paho client per session with auto-reconnect disabled, so a lost
//     connection ends the session.
//   - Destinations map to topic filters: the leading "/" is dropped and "*"
//     becomes "+". "/topic/batch/42" becomes "topic/batch/42".
//   - Several subscriptions on one filter share a single broker subscription.
//   - Handlers run in order on paho's router goroutine (SetOrderMatters).
type Transport struct {
	brokers []string
	opts    options
}

// New creates an MQTT transport. brokers are URLs like tcp://host:1883;
// when empty, the client's endpoint is used.
func New(brokers []string, fns ...Option) *Transport {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Transport{brokers: brokers, opts: opts}
}

func (t *Transport) Connect(ctx context.Context, endpoint string) (core.Session, error) {
	s := &session{
		opts:    t.opts,
		filters: make(map[string]*filter),
		done:    make(chan struct{}),
	}

	clientID := t.opts.clientID
	if clientID == "" {
		clientID = "topicmux-" + uuid.NewString()
	}
	po := paho.NewClientOptions().
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectTimeout(t.opts.connectTimeout).
		SetKeepAlive(t.opts.keepAlive).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.lost(err)
		})
	brokers := t.brokers
	if len(brokers) == 0 {
		brokers = []string{endpoint}
	}
	for _, b := range brokers {
		po.AddBroker(b)
	}

	client := paho.NewClient(po)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("topicmux/mqtt: connect to %v: %w", brokers, err)
	}

	s.client = client
	s.info = map[string]string{"client_id": clientID}
	if r := client.OptionsReader(); len(r.Servers()) > 0 {
		s.info["broker"] = r.Servers()[0].String()
	}
	return s, nil
}

// filter fans one broker subscription out to every subscription on it.
type filter struct {
	subs map[string]*subscription
	// order keeps fan-out in subscription order.
	order []string
}

type session struct {
	client paho.Client
	opts   options
	info   map[string]string

	mu        sync.Mutex
	filters   map[string]*filter
	cause     error
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe registers handler for the topic filter derived from destination.
// The broker subscription is created on first use of a filter.
func (s *session) Subscribe(ctx context.Context, destination string, handler core.Handler) (core.Subscription, error) {
	if s.closed() {
		return nil, core.ErrSessionClosed
	}
	topic := Topic(destination)
	sub := &subscription{
		session:     s,
		id:          uuid.NewString(),
		destination: destination,
		topic:       topic,
		handler:     handler,
	}

	s.mu.Lock()
	f, exists := s.filters[topic]
	if !exists {
		f = &filter{subs: make(map[string]*subscription)}
		s.filters[topic] = f
	}
	f.subs[sub.id] = sub
	f.order = append(f.order, sub.id)
	s.mu.Unlock()

	if exists {
		return sub, nil
	}

	token := s.client.Subscribe(topic, s.opts.qos, func(_ paho.Client, m paho.Message) {
		s.dispatch(topic, destination, m)
	})
	if err := wait(ctx, token); err != nil {
		s.drop(sub)
		return nil, fmt.Errorf("topicmux/mqtt: subscribe to %q: %w", topic, err)
	}
	return sub, nil
}

func (s *session) dispatch(topic, destination string, m paho.Message) {
	s.mu.Lock()
	f, ok := s.filters[topic]
	var targets []*subscription
	if ok {
		for _, id := range f.order {
			targets = append(targets, f.subs[id])
		}
	}
	s.mu.Unlock()

	ctx := context.Background()
	for _, sub := range targets {
		_ = sub.handler(ctx, &message{destination: sub.destination, msg: m})
	}
}

// drop removes sub and reports whether its filter has no subscriptions left.
func (s *session) drop(sub *subscription) (last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filters[sub.topic]
	if !ok {
		return false
	}
	if _, ok := f.subs[sub.id]; !ok {
		return false
	}
	delete(f.subs, sub.id)
	for i, id := range f.order {
		if id == sub.id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	if len(f.subs) == 0 {
		delete(s.filters, sub.topic)
		return true
	}
	return false
}

// Publish sends msg to the topic derived from destination.
func (s *session) Publish(ctx context.Context, destination string, msg core.Message) error {
	if s.closed() {
		return core.ErrSessionClosed
	}
	topic := Topic(destination)
	token := s.client.Publish(topic, s.opts.qos, s.opts.retain, msg.Body())
	if err := wait(ctx, token); err != nil {
		return fmt.Errorf("topicmux/mqtt: publish to %q: %w", topic, err)
	}
	return nil
}

// Disconnect sends DISCONNECT after letting in-flight work finish.
func (s *session) Disconnect(_ context.Context) error {
	s.client.Disconnect(s.opts.quiesce)
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *session) Info() map[string]string { return s.info }

func (s *session) lost(err error) {
	if err == nil {
		err = core.ErrSessionClosed
	}
	s.mu.Lock()
	s.cause = err
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) closed() bool {
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
	topic       string
	handler     core.Handler
}

func (s *subscription) ID() string          { return s.id }
func (s *subscription) Destination() string { return s.destination }

// Unsubscribe removes the subscription and drops the broker subscription
// once no other subscription uses the same filter.
func (s *subscription) Unsubscribe() error {
	if !s.session.drop(s) {
		return nil
	}
	if s.session.closed() {
		return nil
	}
	token := s.session.client.Unsubscribe(s.topic)
	if err := wait(context.Background(), token); err != nil {
		return fmt.Errorf("topicmux/mqtt: unsubscribe %q: %w", s.topic, err)
	}
	return nil
}

// wait blocks until token completes or ctx ends.
func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Topic converts a destination into an MQTT topic filter.
func Topic(destination string) string {
	parts := strings.Split(strings.TrimPrefix(destination, "/"), "/")
	for i, p := range parts {
		if p == "*" {
			parts[i] = "+"
		}
	}
	return strings.Join(parts, "/")
}

// optsFromConfig extracts options from transport.Config.
func optsFromConfig(cfg transport.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := cfg.String("client_id"); ok {
		opts = append(opts, WithClientID(v))
	}
	if v, ok := cfg.Extra["qos"].(int); ok && v >= 0 && v <= 2 {
		opts = append(opts, WithQoS(byte(v)))
	}
	if v, ok := cfg.Extra["retain"].(bool); ok {
		opts = append(opts, WithRetain(v))
	}
	return opts
}
