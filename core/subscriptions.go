package core

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// SubscriptionInfo describes an active subscription.
type SubscriptionInfo struct {
	ID          string
	Destination string
	Kind        ChannelKind
	CreatedAt   time.Time
}

// subscriptionEntry is the registry record for one subscription. The dispatch
// wrapper waits on ready before delivering and stops once removed is closed.
type subscriptionEntry struct {
	info    SubscriptionInfo
	handler HandlerFunc
	handle  Subscription
	seq     uint64

	ready       chan struct{}
	removed     chan struct{}
	readyOnce   sync.Once
	removedOnce sync.Once
}

func newSubscriptionEntry(ch Channel, h HandlerFunc, at time.Time) *subscriptionEntry {
	return &subscriptionEntry{
		info: SubscriptionInfo{
			Destination: ch.Destination,
			Kind:        ch.Kind,
			CreatedAt:   at,
		},
		handler: h,
		ready:   make(chan struct{}),
		removed: make(chan struct{}),
	}
}

func (e *subscriptionEntry) markReady() {
	e.readyOnce.Do(func() { close(e.ready) })
}

func (e *subscriptionEntry) markRemoved() {
	e.removedOnce.Do(func() { close(e.removed) })
}

func (e *subscriptionEntry) isRemoved() bool {
	select {
	case <-e.removed:
		return true
	default:
		return false
	}
}

// subscriptionRegistry maps subscription ids to their entries.
type subscriptionRegistry struct {
	mu      sync.RWMutex
	entries map[string]*subscriptionEntry
	seq     uint64
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{entries: make(map[string]*subscriptionEntry)}
}

// add stores e under e.info.ID. Ids must be unique among active entries.
// live is checked under the registry lock: purge runs after the session is
// released, so an entry either lands before the purge drains it or is
// refused with ErrNotConnected.
func (r *subscriptionRegistry) add(e *subscriptionEntry, live func() bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if live != nil && !live() {
		return ErrNotConnected
	}
	if e.info.ID == "" {
		return fmt.Errorf("topicmux: transport returned an empty subscription id for %q", e.info.Destination)
	}
	if _, exists := r.entries[e.info.ID]; exists {
		return fmt.Errorf("topicmux: duplicate subscription id %q", e.info.ID)
	}
	r.seq++
	e.seq = r.seq
	r.entries[e.info.ID] = e
	return nil
}

func (r *subscriptionRegistry) lookup(id string) (*subscriptionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *subscriptionRegistry) remove(id string) (*subscriptionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return e, ok
}

// drain empties the registry and returns what it held.
func (r *subscriptionRegistry) drain() []*subscriptionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subscriptionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.entries = make(map[string]*subscriptionEntry)
	return out
}

func (r *subscriptionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// list returns the active subscriptions in the order they were added.
func (r *subscriptionRegistry) list() []SubscriptionInfo {
	r.mu.RLock()
	entries := make([]*subscriptionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]SubscriptionInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}
	return out
}
