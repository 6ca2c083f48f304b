package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/topicmux/transport"
)

// Option configures the Kafka transport.
type Option func(*options)

type options struct {
	// publishing
	balancer     kafka.Balancer
	batchSize    int
	batchTimeout time.Duration
	async        bool

	// subscriptions
	minBytes    int
	maxBytes    int
	maxWait     time.Duration
	startOffset int64

	dialer *kafka.Dialer
}

// Subscriptions start at the newest offset: a client following a batch
// only cares about what happens after it subscribed. Publishes flush
// quickly since announcements are single small messages.
func defaults() options {
	return options{
		balancer:     &kafka.LeastBytes{},
		batchSize:    100,
		batchTimeout: 10 * time.Millisecond,
		minBytes:     1,
		maxBytes:     10e6,
		maxWait:      500 * time.Millisecond,
		startOffset:  kafka.LastOffset,
	}
}

// WithBalancer picks the partition for published messages.
func WithBalancer(b kafka.Balancer) Option {
	return func(o *options) { o.balancer = b }
}

// WithBatchSize caps how many messages the writer sends per request.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithBatchTimeout sets how long the writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) Option {
	return func(o *options) { o.batchTimeout = d }
}

// WithAsync makes Publish return before the broker confirms the write.
func WithAsync(async bool) Option {
	return func(o *options) { o.async = async }
}

// WithMaxBytes caps a single fetch.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxWait bounds how long a fetch waits for MinBytes to accumulate.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// WithStartOffset sets where a new subscription begins reading:
// kafka.FirstOffset or kafka.LastOffset.
func WithStartOffset(offset int64) Option {
	return func(o *options) { o.startOffset = offset }
}

// WithDialer sets the dialer used for the reachability check, readers and
// the writer transport, e.g. for TLS or SASL.
func WithDialer(d *kafka.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// optsFromConfig reads the kafka keys of transport.Config.Extra: async,
// batch_size, batch_timeout, max_bytes, max_wait and start_offset
// ("first" or "last").
func optsFromConfig(cfg transport.Config) []Option {
	if cfg.Extra == nil {
		return nil
	}
	var opts []Option
	if v, ok := cfg.Extra["async"].(bool); ok {
		opts = append(opts, WithAsync(v))
	}
	if v, ok := cfg.Extra["batch_size"].(int); ok {
		opts = append(opts, WithBatchSize(v))
	}
	if v, ok := cfg.Extra["max_bytes"].(int); ok {
		opts = append(opts, WithMaxBytes(v))
	}
	for key, apply := range map[string]func(time.Duration) Option{
		"batch_timeout": WithBatchTimeout,
		"max_wait":      WithMaxWait,
	} {
		if v, ok := cfg.String(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				opts = append(opts, apply(d))
			}
		}
	}
	if v, ok := cfg.String("start_offset"); ok {
		switch v {
		case "first":
			opts = append(opts, WithStartOffset(kafka.FirstOffset))
		case "last":
			opts = append(opts, WithStartOffset(kafka.LastOffset))
		}
	}
	return opts
}
