package core

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	transport    Transport
	logger       *zap.Logger
	binder       Binder
	endpointPath string
	now          func() time.Time
	middlewares  []MiddlewareFunc
}

func defaults() options {
	return options{
		logger:       zap.NewNop(),
		binder:       JSONBinder{},
		endpointPath: DefaultEndpointPath,
		now:          time.Now,
	}
}

// WithTransport sets the transport used to open sessions.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger sets the structured logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBinder replaces the body decoder used before dispatch and by Context.Bind.
func WithBinder(b Binder) Option {
	return func(o *options) {
		if b != nil {
			o.binder = b
		}
	}
}

// WithEndpointPath sets the path appended to the server address on connect.
// An empty path connects to the address as given.
func WithEndpointPath(path string) Option {
	return func(o *options) { o.endpointPath = path }
}

// WithClock sets the time source for announcement timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMiddleware registers subscription middleware at construction time.
func WithMiddleware(mws ...MiddlewareFunc) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}
