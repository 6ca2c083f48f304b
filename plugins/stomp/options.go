package stomp

import (
	"time"

	"github.com/go-stomp/stomp/v3"
)

// Option configures the STOMP transport.
type Option func(*options)

type options struct {
	sockJS           bool
	handshakeTimeout time.Duration
	heartBeatSend    time.Duration
	heartBeatRecv    time.Duration
	host             string
	ackMode          stomp.AckMode
	contentType      string
}

func defaults() options {
	return options{
		sockJS:           true,
		handshakeTimeout: 10 * time.Second,
		heartBeatSend:    10 * time.Second,
		heartBeatRecv:    10 * time.Second,
		ackMode:          stomp.AckAuto,
		contentType:      "application/json",
	}
}

// WithSockJS controls whether "/websocket" is appended to the endpoint, which
// is where SockJS servers accept raw websocket sessions.
func WithSockJS(enabled bool) Option {
	return func(o *options) { o.sockJS = enabled }
}

// WithHandshakeTimeout bounds the websocket upgrade.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = d }
}

// WithHeartBeat sets the heart-beat intervals offered to the server.
// Zero disables that direction.
func WithHeartBeat(send, recv time.Duration) Option {
	return func(o *options) {
		o.heartBeatSend = send
		o.heartBeatRecv = recv
	}
}

// WithHost sets the STOMP host header. Defaults to the endpoint's host name.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithAckMode sets the acknowledgement mode for subscriptions.
func WithAckMode(mode stomp.AckMode) Option {
	return func(o *options) { o.ackMode = mode }
}

// WithContentType sets the content type of sent frames that carry none.
func WithContentType(ct string) Option {
	return func(o *options) { o.contentType = ct }
}
