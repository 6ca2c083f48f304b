package mqtt

import "time"

// Option configures the MQTT transport.
type Option func(*options)

type options struct {
	clientID       string
	qos            byte
	retain         bool
	connectTimeout time.Duration
	quiesce        uint
	keepAlive      time.Duration
}

func defaults() options {
	return options{
		qos:            1,
		connectTimeout: 10 * time.Second,
		quiesce:        250,
		keepAlive:      30 * time.Second,
	}
}

// WithClientID sets the MQTT client id. Empty generates a random one per session.
func WithClientID(id string) Option {
	return func(o *options) { o.clientID = id }
}

// WithQoS sets the quality of service for subscriptions and publishes.
func WithQoS(qos byte) Option {
	return func(o *options) { o.qos = qos }
}

// WithRetain marks published messages as retained.
func WithRetain(retain bool) Option {
	return func(o *options) { o.retain = retain }
}

// WithConnectTimeout bounds the network connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithQuiesce sets how many milliseconds Disconnect waits for in-flight work.
func WithQuiesce(ms uint) Option {
	return func(o *options) { o.quiesce = ms }
}

// WithKeepAlive sets the keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) { o.keepAlive = d }
}
