package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/transport"
)

func init() {
	transport.Register("kafka", func(cfg transport.Config) (core.Transport, error) {
		return New(cfg.Addresses, cfg.Group, optsFromConfig(cfg)...)
	})
}

// Transport implements core.Transport for Apache Kafka using segmentio/kafka-go.
//
// Design decisions:
//   - One kafka.Writer per session shared across all Publish calls
//     (thread-safe by library).
//   - One kafka.Reader per subscription, each running in its own goroutine,
//     so messages of one subscription are handled in order.
//   - Inside a consumer group the offset is committed after the handler
//     succeeds; a failing handler leaves it uncommitted for redelivery.
//   - Destinations map to topic names: "/topic/batch/42" becomes "topic.batch.42".
type Transport struct {
	brokers []string
	group   string
	opts    options
}

// New creates a Kafka transport.
func New(brokers []string, group string, fns ...Option) (*Transport, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("topicmux/kafka: at least one broker address is required")
	}

	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Transport{brokers: brokers, group: group, opts: opts}, nil
}

// Connect checks that a broker is reachable and prepares the writer.
// The client endpoint is not used; brokers come from New.
func (t *Transport) Connect(ctx context.Context, _ string) (core.Session, error) {
	dialer := t.opts.dialer
	if dialer == nil {
		dialer = kafka.DefaultDialer
	}

	var (
		conn *kafka.Conn
		err  error
	)
	for _, addr := range t.brokers {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("topicmux/kafka: dial %v: %w", t.brokers, err)
	}
	b := conn.Broker()
	_ = conn.Close()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(t.brokers...),
		Balancer:               t.opts.balancer,
		BatchSize:              t.opts.batchSize,
		BatchTimeout:           t.opts.batchTimeout,
		Async:                  t.opts.async,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if t.opts.dialer != nil {
		w.Transport = &kafka.Transport{
			TLS:  t.opts.dialer.TLS,
			SASL: t.opts.dialer.SASLMechanism,
		}
	}

	return &session{
		t:      t,
		writer: w,
		subs:   make(map[string]*subscription),
		done:   make(chan struct{}),
		info: map[string]string{
			"broker":    net.JoinHostPort(b.Host, strconv.Itoa(b.Port)),
			"broker_id": strconv.Itoa(b.ID),
			"group":     t.group,
		},
	}, nil
}

type session struct {
	t      *Transport
	writer *kafka.Writer
	info   map[string]string

	mu        sync.Mutex
	subs      map[string]*subscription
	requested bool
	cause     error
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe starts a reader for the topic derived from destination.
func (s *session) Subscribe(_ context.Context, destination string, handler core.Handler) (core.Subscription, error) {
	topic, err := Topic(destination)
	if err != nil {
		return nil, err
	}

	cfg := kafka.ReaderConfig{
		Brokers:  s.t.brokers,
		Topic:    topic,
		GroupID:  s.t.group,
		MinBytes: s.t.opts.minBytes,
		MaxBytes: s.t.opts.maxBytes,
		MaxWait:  s.t.opts.maxWait,
	}
	if s.t.opts.dialer != nil {
		cfg.Dialer = s.t.opts.dialer
	}
	if s.t.group == "" {
		cfg.StartOffset = s.t.opts.startOffset
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		session:     s,
		id:          uuid.NewString(),
		destination: destination,
		reader:      kafka.NewReader(cfg),
		cancel:      cancel,
		stopped:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.closedLocked() {
		s.mu.Unlock()
		cancel()
		_ = sub.reader.Close()
		return nil, core.ErrSessionClosed
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	go sub.consumeLoop(ctx, handler, s.t.group != "")
	return sub, nil
}

// Publish sends a message to the topic derived from destination.
func (s *session) Publish(ctx context.Context, destination string, msg core.Message) error {
	if s.closed() {
		return core.ErrSessionClosed
	}
	topic, err := Topic(destination)
	if err != nil {
		return err
	}

	km := kafka.Message{
		Topic:   topic,
		Value:   msg.Body(),
		Headers: toHeaders(msg.Headers()),
	}
	if err := s.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("topicmux/kafka: publish to %q: %w", topic, err)
	}
	return nil
}

// Disconnect stops every reader, flushes the writer and ends the session.
func (s *session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.requested = true
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("topicmux/kafka: close writer: %w", err))
	}
	s.finish(nil)
	return errors.Join(errs...)
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requested {
		return nil
	}
	return s.cause
}

func (s *session) Info() map[string]string { return s.info }

// finish ends the session; cause is recorded unless Disconnect was requested.
// On an unrequested end the remaining readers and the writer are released
// in the background.
func (s *session) finish(cause error) {
	s.mu.Lock()
	lost := !s.requested
	if s.cause == nil && lost {
		s.cause = cause
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() {
		close(s.done)
		if lost {
			go s.release()
		}
	})
}

func (s *session) release() {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.stop(context.Background())
	}
	_ = s.writer.Close()
}

func (s *session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedLocked()
}

func (s *session) closedLocked() bool {
	select {
	case <-s.done:
		return true
	default:
		return s.requested
	}
}

type subscription struct {
	session     *session
	id          string
	destination string
	reader      *kafka.Reader
	cancel      context.CancelFunc
	stopped     chan struct{}
	once        sync.Once
}

func (s *subscription) ID() string          { return s.id }
func (s *subscription) Destination() string { return s.destination }

func (s *subscription) Unsubscribe() error {
	s.session.mu.Lock()
	delete(s.session.subs, s.id)
	s.session.mu.Unlock()
	return s.stop(context.Background())
}

// stop cancels the fetch loop, closes the reader and waits for the loop to exit.
func (s *subscription) stop(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.cancel()
		if cerr := s.reader.Close(); cerr != nil {
			err = fmt.Errorf("topicmux/kafka: close reader: %w", cerr)
		}
	})
	select {
	case <-s.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// consumeLoop fetches messages and dispatches them to the handler.
// A fetch failure other than shutdown ends the whole session.
func (s *subscription) consumeLoop(ctx context.Context, handler core.Handler, grouped bool) {
	defer close(s.stopped)
	for {
		raw, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // graceful shutdown
			}
			s.session.finish(fmt.Errorf("topicmux/kafka: fetch from %q: %w", s.reader.Config().Topic, err))
			return
		}

		msg := &message{destination: s.destination, raw: raw, reader: s.reader, grouped: grouped, ctx: ctx}
		if err := handler(ctx, msg); err != nil {
			// Offset is NOT committed; the message is redelivered after
			// rebalance or restart.
			continue
		}
		_ = msg.Ack()
	}
}

// Topic converts a slash-separated destination into a Kafka topic name.
// Kafka has no subscription wildcards, so "*" and "#" are rejected.
func Topic(destination string) (string, error) {
	if strings.ContainsAny(destination, "*#") {
		return "", fmt.Errorf("topicmux/kafka: wildcard destination %q is not supported", destination)
	}
	topic := strings.ReplaceAll(strings.Trim(destination, "/"), "/", ".")
	if topic == "" {
		return "", fmt.Errorf("topicmux/kafka: empty destination")
	}
	return topic, nil
}

// toHeaders converts a string map to Kafka headers.
func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	headers := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
