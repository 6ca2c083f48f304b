// Package stomp is the default transport: STOMP 1.2 frames carried over a
// websocket, as spoken by SockJS/STOMP message brokers.
package stomp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/transport"
)

func init() {
	transport.Register("stomp", func(cfg transport.Config) (core.Transport, error) {
		return New(optsFromConfig(cfg)...), nil
	})
}

// Transport implements core.Transport over STOMP-on-websocket.
//
// Design decisions:
//   - http(s) endpoints are dialed as ws(s); SockJS servers are reached on
//     their raw websocket path ("<endpoint>/websocket").
//   - One websocket and one STOMP connection per session.
//   - Each subscription has a pump goroutine that hands messages to the
//     handler in the order the server sent them.
//   - Disconnect waits for the server's RECEIPT of DISCONNECT.
//   - A failed socket read ends the session with the read error as cause.
type Transport struct {
	opts options
}

func New(fns ...Option) *Transport {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Transport{opts: opts}
}

// Connect dials the websocket and negotiates the STOMP session.
func (t *Transport) Connect(ctx context.Context, endpoint string) (core.Session, error) {
	wsURL, err := WebSocketURL(endpoint, t.opts.sockJS)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.opts.handshakeTimeout,
		Subprotocols:     []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	}
	ws, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("topicmux/stomp: dial %q: %w", wsURL.String(), err)
	}

	s := &session{
		opts: t.opts,
		done: make(chan struct{}),
	}
	s.rwc = newWSConn(ws, s.lost)

	host := t.opts.host
	if host == "" {
		host = wsURL.Hostname()
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	negotiated := make(chan result, 1)
	go func() {
		conn, err := stomp.Connect(s.rwc,
			stomp.ConnOpt.Host(host),
			stomp.ConnOpt.HeartBeat(t.opts.heartBeatSend, t.opts.heartBeatRecv),
		)
		negotiated <- result{conn: conn, err: err}
	}()

	select {
	case r := <-negotiated:
		if r.err != nil {
			_ = ws.Close()
			return nil, fmt.Errorf("topicmux/stomp: negotiate session: %w", r.err)
		}
		s.conn = r.conn
	case <-ctx.Done():
		_ = ws.Close()
		return nil, ctx.Err()
	}
	return s, nil
}

type session struct {
	conn *stomp.Conn
	rwc  *wsConn
	opts options

	mu        sync.Mutex
	requested bool
	cause     error
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe sends SUBSCRIBE and starts the subscription's pump.
func (s *session) Subscribe(_ context.Context, destination string, handler core.Handler) (core.Subscription, error) {
	if s.closed() {
		return nil, core.ErrSessionClosed
	}
	sub, err := s.conn.Subscribe(destination, s.opts.ackMode)
	if err != nil {
		return nil, fmt.Errorf("topicmux/stomp: subscribe to %q: %w", destination, err)
	}

	ss := &subscription{session: s, sub: sub}
	go ss.pump(handler, s.opts.ackMode == stomp.AckAuto)
	return ss, nil
}

// Publish sends a SEND frame. The "content-type" header, when present,
// overrides the configured content type.
func (s *session) Publish(_ context.Context, destination string, msg core.Message) error {
	if s.closed() {
		return core.ErrSessionClosed
	}

	contentType := s.opts.contentType
	var sendOpts []func(*frame.Frame) error
	for k, v := range msg.Headers() {
		switch k {
		case frame.ContentType:
			contentType = v
		case frame.ContentLength, frame.Destination:
		default:
			sendOpts = append(sendOpts, stomp.SendOpt.Header(k, v))
		}
	}

	if err := s.conn.Send(destination, contentType, msg.Body(), sendOpts...); err != nil {
		return fmt.Errorf("topicmux/stomp: send to %q: %w", destination, err)
	}
	return nil
}

// Disconnect sends DISCONNECT and waits for its receipt. When ctx ends first,
// the socket is closed without waiting.
func (s *session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()
	defer s.finish()

	errc := make(chan error, 1)
	go func() { errc <- s.conn.Disconnect() }()

	select {
	case err := <-errc:
		if err != nil {
			_ = s.rwc.Close()
			return fmt.Errorf("topicmux/stomp: disconnect: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = s.rwc.Close()
		return fmt.Errorf("topicmux/stomp: disconnect: %w", ctx.Err())
	}
}

func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

func (s *session) Info() map[string]string {
	return map[string]string{
		"version": s.conn.Version().String(),
		"session": s.conn.Session(),
		"server":  s.conn.Server(),
	}
}

// lost ends the session after a read failure that Disconnect did not cause.
func (s *session) lost(err error) {
	s.mu.Lock()
	if s.requested {
		s.mu.Unlock()
		return
	}
	s.cause = err
	s.mu.Unlock()
	s.finish()
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
	session *session
	sub     *stomp.Subscription
}

func (s *subscription) ID() string          { return s.sub.Id() }
func (s *subscription) Destination() string { return s.sub.Destination() }

// Unsubscribe sends UNSUBSCRIBE and waits for the server to confirm. The pump
// keeps draining until the library closes the message channel.
func (s *subscription) Unsubscribe() error {
	if s.session.closed() {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("topicmux/stomp: unsubscribe %s: %w", s.sub.Id(), err)
	}
	return nil
}

// pump delivers messages in arrival order until the channel closes.
// Error frames are not dispatched; the session ends on its own.
func (s *subscription) pump(handler core.Handler, auto bool) {
	ctx := context.Background()
	for msg := range s.sub.C {
		if msg.Err != nil {
			continue
		}
		_ = handler(ctx, &message{msg: msg, conn: s.session.conn, auto: auto})
	}
}

// WebSocketURL maps an http(s) or ws(s) endpoint to the websocket URL to dial.
// With sockJS set, "/websocket" is appended to the path.
func WebSocketURL(endpoint string, sockJS bool) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("topicmux/stomp: parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("topicmux/stomp: unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("topicmux/stomp: endpoint %q has no host", endpoint)
	}
	if sockJS {
		u.Path = strings.TrimRight(u.Path, "/") + "/websocket"
	}
	return u, nil
}

// optsFromConfig extracts options from transport.Config.Extra.
func optsFromConfig(cfg transport.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := cfg.Extra["sockjs"].(bool); ok {
		opts = append(opts, WithSockJS(v))
	}
	if v, ok := cfg.String("host"); ok {
		opts = append(opts, WithHost(v))
	}
	if v, ok := cfg.String("content_type"); ok {
		opts = append(opts, WithContentType(v))
	}
	return opts
}
