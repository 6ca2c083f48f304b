package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/transport"
)

func init() {
	transport.Register("nats", func(cfg transport.Config) (core.Transport, error) {
		return New(cfg.Addresses, optsFromConfig(cfg)...), nil
	})
}

// Transport implements core.Transport for NATS.
//
// Design decisions:
//   - One NATS connection per session, reconnects disabled so a lost
//     connection ends the session.
//   - Destinations map to subjects: "/topic/batch/42" becomes "topic.batch.42".
//   - Each subscription has its own delivery goroutine, so messages of one
//     subscription are handled in order.
//   - With WithJetStream, each subscription gets a stream and a consumer;
//     Nack() triggers server-side redelivery.
type Transport struct {
	urls []string
	opts options
}

// New creates a NATS transport. urls are standard NATS URLs (nats://host:port);
// when empty, the client's endpoint is dialed as given.
func New(urls []string, fns ...Option) *Transport {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Transport{urls: urls, opts: opts}
}

func (t *Transport) Connect(ctx context.Context, endpoint string) (core.Session, error) {
	url := strings.Join(t.urls, ",")
	if url == "" {
		url = endpoint
	}

	timeout := t.opts.connectTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	s := &session{opts: t.opts, done: make(chan struct{})}
	nc, err := nats.Connect(url,
		nats.Name(t.opts.name),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.setCause(err)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			s.setCause(nc.LastError())
			s.setCause(errConnectionClosed)
			s.finish()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("topicmux/nats: connect to %q: %w", url, err)
	}
	s.conn = nc

	if t.opts.jetStream {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("topicmux/nats: init jetstream: %w", err)
		}
		s.js = js
	}
	return s, nil
}

// errConnectionClosed is the loss cause when the server closed the
// connection without reporting an error.
var errConnectionClosed = errors.New("topicmux/nats: connection closed by server")

type session struct {
	conn *nats.Conn
	js   jetstream.JetStream
	opts options

	mu        sync.Mutex
	requested bool
	cause     error
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe subscribes to the subject derived from destination. With
// JetStream enabled it first creates or updates the stream and consumer.
func (s *session) Subscribe(ctx context.Context, destination string, handler core.Handler) (core.Subscription, error) {
	if s.closed() {
		return nil, core.ErrSessionClosed
	}
	subject := Subject(destination)
	id := uuid.NewString()

	if s.js != nil {
		return s.subscribeStream(ctx, id, destination, subject, handler)
	}

	// The callback context outlives Subscribe's ctx.
	cbCtx := context.Background()
	sub, err := s.conn.Subscribe(subject, func(m *nats.Msg) {
		_ = handler(cbCtx, &message{destination: destination, data: m.Data, header: m.Header})
	})
	if err != nil {
		return nil, fmt.Errorf("topicmux/nats: subscribe to %q: %w", subject, err)
	}
	return &subscription{id: id, destination: destination, stop: sub.Unsubscribe}, nil
}

func (s *session) subscribeStream(ctx context.Context, id, destination, subject string, handler core.Handler) (core.Subscription, error) {
	streamName := sanitizeStreamName(subject)
	stream, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		MaxMsgs:   s.opts.maxMsgs,
		MaxBytes:  s.opts.maxBytes,
		MaxAge:    s.opts.maxAge,
		Replicas:  s.opts.replicas,
		Retention: s.opts.retention,
		Storage:   s.opts.storage,
	})
	if err != nil {
		return nil, fmt.Errorf("topicmux/nats: create stream %q: %w", streamName, err)
	}

	cfg := jetstream.ConsumerConfig{
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       s.opts.ackWait,
		MaxDeliver:    s.opts.maxDeliver,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if s.opts.group != "" {
		cfg.Durable = s.opts.group + "-" + streamName
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("topicmux/nats: create consumer on %q: %w", streamName, err)
	}

	cbCtx := context.Background()
	cc, err := cons.Consume(func(jsMsg jetstream.Msg) {
		msg := &message{destination: destination, data: jsMsg.Data(), header: jsMsg.Headers(), js: jsMsg}
		if err := handler(cbCtx, msg); err != nil {
			_ = jsMsg.Nak()
			return
		}
		_ = jsMsg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("topicmux/nats: start consume on %q: %w", streamName, err)
	}
	return &subscription{id: id, destination: destination, stop: func() error {
		cc.Stop()
		return nil
	}}, nil
}

// Publish sends msg to the subject derived from destination.
func (s *session) Publish(ctx context.Context, destination string, msg core.Message) error {
	if s.closed() {
		return core.ErrSessionClosed
	}

	headers := nats.Header{}
	for k, v := range msg.Headers() {
		headers.Set(k, v)
	}
	nm := &nats.Msg{
		Subject: Subject(destination),
		Data:    msg.Body(),
		Header:  headers,
	}

	if s.js != nil {
		if _, err := s.js.PublishMsg(ctx, nm); err != nil {
			return fmt.Errorf("topicmux/nats: publish to %q: %w", nm.Subject, err)
		}
		return nil
	}
	if err := s.conn.PublishMsg(nm); err != nil {
		return fmt.Errorf("topicmux/nats: publish to %q: %w", nm.Subject, err)
	}
	return nil
}

// Disconnect drains the connection and waits until it is closed.
func (s *session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()

	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.conn.Close()
		return fmt.Errorf("topicmux/nats: disconnect: %w", ctx.Err())
	}
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

func (s *session) Info() map[string]string {
	return map[string]string{
		"server":     s.conn.ConnectedServerName(),
		"server_id":  s.conn.ConnectedServerId(),
		"server_url": s.conn.ConnectedUrl(),
		"version":    s.conn.ConnectedServerVersion(),
	}
}

func (s *session) setCause(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.cause == nil {
		s.cause = err
	}
	s.mu.Unlock()
}

func (s *session) finish() {
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
	id          string
	destination string
	stop        func() error
}

func (s *subscription) ID() string          { return s.id }
func (s *subscription) Destination() string { return s.destination }

func (s *subscription) Unsubscribe() error {
	if err := s.stop(); err != nil {
		return fmt.Errorf("topicmux/nats: unsubscribe %s: %w", s.id, err)
	}
	return nil
}

// Subject converts a slash-separated destination into a NATS subject.
// "#" becomes the ">" tail wildcard.
func Subject(destination string) string {
	parts := strings.Split(strings.Trim(destination, "/"), "/")
	for i, p := range parts {
		if p == "#" {
			parts[i] = ">"
		}
	}
	return strings.Join(parts, ".")
}

// sanitizeStreamName converts a subject pattern to a valid stream name
// by replacing special characters.
func sanitizeStreamName(subject string) string {
	buf := make([]byte, len(subject))
	for i := range len(subject) {
		c := subject[i]
		if c == '.' || c == '*' || c == '>' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}

// optsFromConfig extracts options from transport.Config.
func optsFromConfig(cfg transport.Config) []Option {
	var opts []Option
	if cfg.Group != "" {
		opts = append(opts, WithJetStream(cfg.Group))
	}
	if cfg.Extra == nil {
		return opts
	}
	if v, ok := cfg.Extra["jetstream"].(bool); ok && v && cfg.Group == "" {
		opts = append(opts, WithJetStream(""))
	}
	if v, ok := cfg.String("name"); ok {
		opts = append(opts, WithName(v))
	}
	if v, ok := cfg.Extra["max_deliver"].(int); ok {
		opts = append(opts, WithMaxDeliver(v))
	}
	if v, ok := cfg.Extra["replicas"].(int); ok {
		opts = append(opts, WithReplicas(v))
	}
	return opts
}
