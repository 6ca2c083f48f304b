package core

import "context"

// Transport opens sessions against a pub/sub broker.
// Each transport plugin must implement this interface.
type Transport interface {
	Connect(ctx context.Context, endpoint string) (Session, error)
}

// Session is one negotiated connection to a broker. It is owned by a single
// Client and is never reused after Disconnect or after Done is closed.
type Session interface {
	// Subscribe opens a subscription on destination. Messages of one
	// subscription are passed to handler sequentially, in transport order.
	Subscribe(ctx context.Context, destination string, handler Handler) (Subscription, error)

	// Publish sends msg to destination.
	Publish(ctx context.Context, destination string, msg Message) error

	// Disconnect tears the session down and returns once teardown completed.
	Disconnect(ctx context.Context) error

	// Done is closed when the session ends, requested or not.
	Done() <-chan struct{}

	// Err reports why the session ended on its own. It is nil while the
	// session is alive and after a requested Disconnect.
	Err() error

	// Info returns attributes negotiated at connect time.
	Info() map[string]string
}

// Subscription is a live transport subscription.
type Subscription interface {
	ID() string
	Destination() string
	Unsubscribe() error
}
