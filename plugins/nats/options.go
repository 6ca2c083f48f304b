package nats

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Option configures the NATS transport.
type Option func(*options)

type options struct {
	name           string
	connectTimeout time.Duration

	// JetStream. Off by default: destinations map to plain core subjects.
	jetStream bool
	group     string
	maxMsgs   int64
	maxBytes  int64
	maxAge    time.Duration
	replicas  int
	retention jetstream.RetentionPolicy
	storage   jetstream.StorageType

	// Consumer
	ackWait    time.Duration
	maxDeliver int
}

func defaults() options {
	return options{
		name:           "topicmux",
		connectTimeout: 5 * time.Second,
		maxMsgs:        -1, // unlimited
		maxBytes:       -1,
		maxAge:         0,
		replicas:       1,
		retention:      jetstream.LimitsPolicy,
		storage:        jetstream.MemoryStorage,
		ackWait:        30 * time.Second,
		maxDeliver:     5,
	}
}

// WithName sets the client name reported to the server.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithConnectTimeout bounds the initial dial when ctx carries no deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithJetStream backs every subscription with a stream and a consumer so
// messages survive until acknowledged. group names durable consumers;
// empty group creates ephemeral ones.
func WithJetStream(group string) Option {
	return func(o *options) {
		o.jetStream = true
		o.group = group
	}
}

// WithMaxMessages sets the maximum number of messages per stream.
func WithMaxMessages(n int64) Option {
	return func(o *options) { o.maxMsgs = n }
}

// WithMaxBytes sets the maximum total size of a stream.
func WithMaxBytes(n int64) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxAge sets the maximum age of messages in the stream.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithReplicas sets the stream replication factor.
func WithReplicas(n int) Option {
	return func(o *options) { o.replicas = n }
}

// WithRetention sets the stream retention policy.
func WithRetention(r jetstream.RetentionPolicy) Option {
	return func(o *options) { o.retention = r }
}

// WithStorage sets the stream storage type (file or memory).
func WithStorage(s jetstream.StorageType) Option {
	return func(o *options) { o.storage = s }
}

// WithAckWait sets how long the server waits for an ack before redelivering.
func WithAckWait(d time.Duration) Option {
	return func(o *options) { o.ackWait = d }
}

// WithMaxDeliver sets the maximum number of delivery attempts.
func WithMaxDeliver(n int) Option {
	return func(o *options) { o.maxDeliver = n }
}
