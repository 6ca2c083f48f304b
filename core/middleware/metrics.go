package middleware

import (
	"sort"
	"sync"
	"time"

	"github.com/miladsoleymani/topicmux/core"
)

// Sample describes one handled message.
type Sample struct {
	Kind           core.ChannelKind
	Destination    string
	SubscriptionID string
	Duration       time.Duration
	Err            error
}

// MetricsCollector receives one Sample per handled message. Implementations
// must be safe for concurrent use: subscriptions dispatch independently.
type MetricsCollector interface {
	Observe(s Sample)
}

// Metrics returns middleware that times each handler call and reports it to
// the collector.
func Metrics(collector MetricsCollector) core.MiddlewareFunc {
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) error {
			start := time.Now()
			err := next(c)
			collector.Observe(Sample{
				Kind:           c.Kind(),
				Destination:    c.Destination(),
				SubscriptionID: c.SubscriptionID(),
				Duration:       time.Since(start),
				Err:            err,
			})
			return err
		}
	}
}

// DestinationStats aggregates the samples of one destination.
type DestinationStats struct {
	Kind        core.ChannelKind
	Destination string
	Messages    int
	Failures    int
	Total       time.Duration
	Max         time.Duration
}

// Counters is an in-process MetricsCollector keyed by destination.
type Counters struct {
	mu    sync.Mutex
	stats map[string]*DestinationStats
}

// NewCounters returns an empty collector.
func NewCounters() *Counters {
	return &Counters{stats: make(map[string]*DestinationStats)}
}

func (c *Counters) Observe(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stats[s.Destination]
	if !ok {
		st = &DestinationStats{Kind: s.Kind, Destination: s.Destination}
		c.stats[s.Destination] = st
	}
	st.Messages++
	if s.Err != nil {
		st.Failures++
	}
	st.Total += s.Duration
	if s.Duration > st.Max {
		st.Max = s.Duration
	}
}

// Snapshot returns a copy of the current stats sorted by destination.
func (c *Counters) Snapshot() []DestinationStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DestinationStats, 0, len(c.stats))
	for _, st := range c.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}
