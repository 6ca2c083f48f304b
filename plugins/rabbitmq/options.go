package rabbitmq

import (
	"time"

	"github.com/miladsoleymani/topicmux/transport"
)

// Option configures the RabbitMQ transport.
type Option func(*options)

// options control how destinations are routed and how subscription queues
// are shaped. Every subscription gets its own server-named queue, so the
// queue flags apply to each of them.
type options struct {
	exchange     string
	exchangeType string

	durable    bool
	autoDelete bool
	exclusive  bool

	prefetchCount int
	requeueOnNack bool

	dialTimeout time.Duration
}

func defaults() options {
	return options{
		exchange:      "amq.topic",
		exchangeType:  "topic",
		autoDelete:    true,
		exclusive:     true,
		prefetchCount: 10,
		dialTimeout:   10 * time.Second,
	}
}

// WithExchange routes through the named exchange. Exchanges outside the
// reserved "amq." namespace are declared durable on connect.
func WithExchange(name, kind string) Option {
	return func(o *options) {
		o.exchange = name
		o.exchangeType = kind
	}
}

// WithDurable makes subscription queues survive a broker restart.
func WithDurable(d bool) Option {
	return func(o *options) { o.durable = d }
}

// WithAutoDelete removes a subscription queue once its consumer is gone.
func WithAutoDelete(d bool) Option {
	return func(o *options) { o.autoDelete = d }
}

// WithPrefetchCount caps unacknowledged deliveries per channel.
func WithPrefetchCount(n int) Option {
	return func(o *options) { o.prefetchCount = n }
}

// WithRequeueOnNack returns deliveries whose handler failed to the queue.
// Off by default: a message the handler rejects is dropped.
func WithRequeueOnNack(requeue bool) Option {
	return func(o *options) { o.requeueOnNack = requeue }
}

// WithDialTimeout bounds the TCP dial and AMQP handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// optsFromConfig reads the rabbitmq keys of transport.Config.Extra:
// exchange, exchange_type, durable, auto_delete, prefetch_count,
// requeue_on_nack and dial_timeout.
func optsFromConfig(cfg transport.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if ex, ok := cfg.String("exchange"); ok {
		kind := "topic"
		if k, ok := cfg.String("exchange_type"); ok {
			kind = k
		}
		opts = append(opts, WithExchange(ex, kind))
	}
	if v, ok := cfg.Extra["durable"].(bool); ok {
		opts = append(opts, WithDurable(v))
	}
	if v, ok := cfg.Extra["auto_delete"].(bool); ok {
		opts = append(opts, WithAutoDelete(v))
	}
	if v, ok := cfg.Extra["prefetch_count"].(int); ok {
		opts = append(opts, WithPrefetchCount(v))
	}
	if v, ok := cfg.Extra["requeue_on_nack"].(bool); ok {
		opts = append(opts, WithRequeueOnNack(v))
	}
	if v, ok := cfg.String("dial_timeout"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithDialTimeout(d))
		}
	}
	return opts
}
