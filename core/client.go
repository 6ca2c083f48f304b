package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Client keeps one session to a pub/sub broker, routes inbound topic messages
// to registered callbacks and reports lifecycle events.
//
// Construction performs no network activity; call Connect first. Subscribing
// requires a live session and fails fast with ErrNotConnected otherwise.
type Client struct {
	opts     options
	logger   *zap.Logger
	conn     *connection
	handlers *handlerRegistry
	subs     *subscriptionRegistry

	mu          sync.RWMutex
	middlewares []MiddlewareFunc

	watchers sync.WaitGroup
}

// New creates a Client for serverAddress (for example "http://localhost:8080").
func New(serverAddress string, fns ...Option) *Client {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	logger := opts.logger.With(zap.String("server", serverAddress))
	return &Client{
		opts:        opts,
		logger:      logger,
		conn:        newConnection(serverAddress, opts.endpointPath, opts.transport),
		handlers:    newHandlerRegistry(logger),
		subs:        newSubscriptionRegistry(),
		middlewares: append([]MiddlewareFunc(nil), opts.middlewares...),
	}
}

// Use registers subscription middleware. Middleware is applied in
// registration order (first registered wraps outermost) and is captured when
// a subscription is created.
func (c *Client) Use(m MiddlewareFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, m)
}

// Connect opens the session and blocks until negotiation completes.
// It is a no-op when already connected. On failure the error handlers fire
// and a *ConnectError is returned; the client stays usable.
func (c *Client) Connect(ctx context.Context) error {
	s, opened, err := c.conn.open(ctx)
	if err != nil {
		c.logger.Warn("connect failed", zap.Error(err))
		c.handlers.fire(Event{Kind: EventError, Err: err, Time: c.opts.now()})
		return err
	}
	if !opened {
		return nil
	}

	c.logger.Info("connected", zap.String("endpoint", c.conn.endpoint()))
	c.handlers.fire(Event{Kind: EventConnect, Info: s.Info(), Time: c.opts.now()})

	// The watcher starts after the connect handlers so a session that ends
	// right away still reports connect before error and disconnect.
	c.watchers.Add(1)
	go c.watch(s)
	return nil
}

// ConnectAsync starts Connect and returns a channel that receives its result
// exactly once.
func (c *Client) ConnectAsync(ctx context.Context) <-chan error {
	return resolve(func() error { return c.Connect(ctx) })
}

// Disconnect tears the session down, waits for the transport to confirm and
// then fires the disconnect handlers. It is a no-op when not connected.
// Every subscription is dropped from the registry.
func (c *Client) Disconnect(ctx context.Context) error {
	s, err := c.conn.close(ctx)
	if s == nil {
		return nil
	}

	c.purge()
	if err != nil {
		c.logger.Warn("disconnect finished with error", zap.Error(err))
		err = fmt.Errorf("topicmux: disconnect: %w", err)
	} else {
		c.logger.Info("disconnected")
	}
	c.handlers.fire(Event{Kind: EventDisconnect, Time: c.opts.now()})
	return err
}

// DisconnectAsync starts Disconnect and returns a channel that receives its
// result exactly once.
func (c *Client) DisconnectAsync(ctx context.Context) <-chan error {
	return resolve(func() error { return c.Disconnect(ctx) })
}

// Wait blocks until every session watcher started by Connect has exited.
func (c *Client) Wait() {
	c.watchers.Wait()
}

// IsConnected reports whether a session is live.
func (c *Client) IsConnected() bool {
	return c.conn.isConnected()
}

// On registers h for kind and returns the id to pass to Off. Unknown kinds
// are ignored and return the zero id.
func (c *Client) On(kind EventKind, h EventHandler) EventHandlerID {
	return c.handlers.on(kind, h)
}

// Off removes the registration id from kind. Unknown ids are ignored.
// Functions are not comparable, so a handler registered twice is removed by
// passing both ids.
func (c *Client) Off(kind EventKind, id EventHandlerID) {
	c.handlers.off(kind, id)
}

// Subscribe opens a subscription on ch.Destination and, when ch.Announce is
// set, sends a best-effort announcement there. It returns the
// transport-assigned subscription id.
func (c *Client) Subscribe(ch Channel, h HandlerFunc) (string, error) {
	if h == nil {
		return "", ErrNilHandler
	}
	s := c.conn.current()
	if s == nil {
		return "", ErrNotConnected
	}

	entry := newSubscriptionEntry(ch, h, c.opts.now())
	entry.handler = c.chain(h)

	sub, err := s.Subscribe(context.Background(), ch.Destination, c.dispatcher(entry, s))
	if err != nil {
		entry.markRemoved()
		return "", fmt.Errorf("topicmux: subscribe %q: %w", ch.Destination, err)
	}
	entry.info.ID = sub.ID()
	entry.handle = sub

	live := func() bool { return c.conn.current() == s }
	if err := c.subs.add(entry, live); err != nil {
		entry.markRemoved()
		if uerr := sub.Unsubscribe(); uerr != nil {
			c.logger.Debug("rollback unsubscribe failed", zap.String("destination", ch.Destination), zap.Error(uerr))
		}
		return "", err
	}
	entry.markReady()

	c.logger.Debug("subscribed",
		zap.String("destination", ch.Destination),
		zap.String("subscription_id", entry.info.ID))

	c.announce(s, ch)
	return entry.info.ID, nil
}

// SubscribeBatch subscribes to /topic/batch/{batchID}.
func (c *Client) SubscribeBatch(batchID int64, h HandlerFunc) (string, error) {
	return c.Subscribe(BatchChannel(batchID), h)
}

// SubscribeRun subscribes to /topic/run/{runID}.
func (c *Client) SubscribeRun(runID int64, h HandlerFunc) (string, error) {
	return c.Subscribe(RunChannel(runID), h)
}

// SubscribeGlobal subscribes to /topic/global.
func (c *Client) SubscribeGlobal(h HandlerFunc) (string, error) {
	return c.Subscribe(GlobalChannel(), h)
}

// SubscribeRunProgress subscribes to /topic/progress/run/{runID}.
func (c *Client) SubscribeRunProgress(runID int64, h HandlerFunc) (string, error) {
	return c.Subscribe(RunProgressChannel(runID), h)
}

// SubscribeStatus subscribes to /topic/status/{entityID}.
func (c *Client) SubscribeStatus(entityID int64, h HandlerFunc) (string, error) {
	return c.Subscribe(StatusChannel(entityID), h)
}

// SubscribeEntityErrors subscribes to /topic/error/{entityID}.
func (c *Client) SubscribeEntityErrors(entityID int64, h HandlerFunc) (string, error) {
	return c.Subscribe(EntityErrorsChannel(entityID), h)
}

// SubscribeErrors subscribes to /topic/errors.
func (c *Client) SubscribeErrors(h HandlerFunc) (string, error) {
	return c.Subscribe(ErrorsChannel(), h)
}

// SubscribeBatchesOverview subscribes to /topic/batches/all.
func (c *Client) SubscribeBatchesOverview(h HandlerFunc) (string, error) {
	return c.Subscribe(BatchesOverviewChannel(), h)
}

// SubscribeUserQueue subscribes to /user/queue/messages.
func (c *Client) SubscribeUserQueue(h HandlerFunc) (string, error) {
	return c.Subscribe(UserQueueChannel(), h)
}

// SubscribeDestination subscribes to an arbitrary destination without announcement.
func (c *Client) SubscribeDestination(destination string, h HandlerFunc) (string, error) {
	return c.Subscribe(DestinationChannel(destination), h)
}

// Unsubscribe closes the subscription id and drops it from the registry.
// It is a no-op when not connected or when id is unknown.
func (c *Client) Unsubscribe(id string) error {
	if !c.conn.isConnected() {
		return nil
	}
	entry, ok := c.subs.remove(id)
	if !ok {
		return nil
	}
	entry.markRemoved()

	if err := entry.handle.Unsubscribe(); err != nil {
		c.logger.Warn("transport unsubscribe failed",
			zap.String("destination", entry.info.Destination),
			zap.String("subscription_id", id),
			zap.Error(err))
		return fmt.Errorf("topicmux: unsubscribe %q: %w", id, err)
	}
	c.logger.Debug("unsubscribed",
		zap.String("destination", entry.info.Destination),
		zap.String("subscription_id", id))
	return nil
}

// Lookup returns the active subscription registered under id.
func (c *Client) Lookup(id string) (SubscriptionInfo, bool) {
	entry, ok := c.subs.lookup(id)
	if !ok {
		return SubscriptionInfo{}, false
	}
	return entry.info, true
}

// Subscriptions lists active subscriptions in creation order.
func (c *Client) Subscriptions() []SubscriptionInfo {
	return c.subs.list()
}

// Publish encodes v as JSON ([]byte and json.RawMessage are sent as is) and
// sends it to destination.
func (c *Client) Publish(ctx context.Context, destination string, v any) error {
	s := c.conn.current()
	if s == nil {
		return ErrNotConnected
	}

	var body []byte
	switch b := v.(type) {
	case []byte:
		body = b
	case json.RawMessage:
		body = b
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("topicmux: encode message for %q: %w", destination, err)
		}
		body = encoded
	}

	msg := NewMessage(destination, body, map[string]string{"content-type": "application/json"})
	if err := s.Publish(ctx, destination, msg); err != nil {
		return fmt.Errorf("topicmux: publish to %q: %w", destination, err)
	}
	return nil
}

// announce sends the subscription announcement for ch. Failures are logged
// and never undo the subscription.
func (c *Client) announce(s Session, ch Channel) {
	if ch.Announce == "" {
		return
	}
	body, err := json.Marshal(ch.announcement(c.opts.now()))
	if err != nil {
		c.logger.Warn("encode announcement failed", zap.String("destination", ch.Announce), zap.Error(err))
		return
	}
	msg := NewMessage(ch.Announce, body, map[string]string{"content-type": "application/json"})
	if err := s.Publish(context.Background(), ch.Announce, msg); err != nil {
		c.logger.Warn("announcement failed", zap.String("destination", ch.Announce), zap.Error(err))
	}
}

// dispatcher bridges the transport Handler to the subscription's HandlerFunc:
// it parses the body, builds the Context and isolates callback faults.
func (c *Client) dispatcher(entry *subscriptionEntry, s Session) Handler {
	return func(ctx context.Context, msg Message) error {
		select {
		case <-entry.ready:
		case <-entry.removed:
			return nil
		}
		if entry.isRemoved() {
			return nil
		}

		body, err := decodeBody(c.opts.binder, msg.Body())
		if err != nil {
			return c.reportFault(entry, fmt.Errorf("decode body: %w", err))
		}

		mc := NewContext(ctx, msg, entry.info, body, c.opts.binder, s)
		if err := invokeHandler(entry.handler, mc); err != nil {
			return c.reportFault(entry, err)
		}
		return nil
	}
}

func (c *Client) reportFault(entry *subscriptionEntry, err error) error {
	herr := &HandlerError{
		Destination:    entry.info.Destination,
		SubscriptionID: entry.info.ID,
		Err:            err,
	}
	c.logger.Error("message handler failed",
		zap.String("destination", entry.info.Destination),
		zap.String("subscription_id", entry.info.ID),
		zap.Error(err))
	c.handlers.fire(Event{Kind: EventError, Err: herr, Time: c.opts.now()})
	return herr
}

func invokeHandler(h HandlerFunc, mc Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(mc)
}

// watch waits for s to end. When the transport ended it on its own, the
// client is marked disconnected, subscriptions are purged, and the error and
// disconnect handlers fire once.
func (c *Client) watch(s Session) {
	defer c.watchers.Done()
	<-s.Done()

	if !c.conn.release(s) {
		return
	}
	cause := s.Err()
	if cause == nil {
		cause = ErrSessionClosed
	}
	c.purge()
	c.logger.Warn("session lost", zap.Error(cause))

	now := c.opts.now()
	c.handlers.fire(Event{Kind: EventError, Err: cause, Time: now})
	c.handlers.fire(Event{Kind: EventDisconnect, Err: cause, Time: now})
}

// purge drops every subscription; they died with the session.
func (c *Client) purge() {
	entries := c.subs.drain()
	for _, e := range entries {
		e.markRemoved()
	}
	if len(entries) > 0 {
		c.logger.Debug("subscriptions purged", zap.Int("count", len(entries)))
	}
}

// chain wraps h with the current middleware.
func (c *Client) chain(h HandlerFunc) HandlerFunc {
	c.mu.RLock()
	mws := make([]MiddlewareFunc, len(c.middlewares))
	copy(mws, c.middlewares)
	c.mu.RUnlock()
	return applyMiddleware(h, mws)
}

// applyMiddleware wraps a handler with middleware in reverse order.
// Given middleware [A, B, C], the call order is A -> B -> C -> handler.
func applyMiddleware(h HandlerFunc, mws []MiddlewareFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// resolve runs fn in the background and delivers its result exactly once.
func resolve(fn func() error) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- fn()
		close(out)
	}()
	return out
}
