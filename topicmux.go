// Package topicmux provides the top-level API for the topicmux client.
// It re-exports core types for convenience, so users can write:
//
//	c := topicmux.New("http://localhost:8080")
//	c.Connect(ctx)
//	c.SubscribeBatch(42, handler)
//
// The client speaks STOMP over websocket unless another transport is set
// with WithTransport.
package topicmux

import (
	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/plugins/stomp"
)

// Re-export core types at the package level for ergonomic usage.
type (
	Client           = core.Client
	Option           = core.Option
	Context          = core.Context
	HandlerFunc      = core.HandlerFunc
	MiddlewareFunc   = core.MiddlewareFunc
	Event            = core.Event
	EventKind        = core.EventKind
	EventHandler     = core.EventHandler
	EventHandlerID   = core.EventHandlerID
	Channel          = core.Channel
	ChannelKind      = core.ChannelKind
	SubscriptionInfo = core.SubscriptionInfo
	Envelope         = core.Envelope
	MessageType      = core.MessageType
	Message          = core.Message
	Transport        = core.Transport
	ConnectError     = core.ConnectError
	HandlerError     = core.HandlerError
)

const (
	EventConnect    = core.EventConnect
	EventDisconnect = core.EventDisconnect
	EventError      = core.EventError
)

const (
	TypeProgressUpdate    = core.TypeProgressUpdate
	TypeStatusChange      = core.TypeStatusChange
	TypeError             = core.TypeError
	TypeTaskStarted       = core.TypeTaskStarted
	TypeTaskCompleted     = core.TypeTaskCompleted
	TypeQuestionStarted   = core.TypeQuestionStarted
	TypeQuestionCompleted = core.TypeQuestionCompleted
	TypeQuestionFailed    = core.TypeQuestionFailed
)

var (
	ErrNotConnected = core.ErrNotConnected
	ErrNilHandler   = core.ErrNilHandler
)

var (
	WithTransport    = core.WithTransport
	WithLogger       = core.WithLogger
	WithBinder       = core.WithBinder
	WithEndpointPath = core.WithEndpointPath
	WithClock        = core.WithClock
	WithMiddleware   = core.WithMiddleware
)

// New creates a client for serverAddress. No connection is made until Connect.
func New(serverAddress string, opts ...Option) *Client {
	return core.New(serverAddress, append([]Option{core.WithTransport(stomp.New())}, opts...)...)
}
