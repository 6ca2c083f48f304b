package transport

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/miladsoleymani/topicmux/core"
)

// ErrUnknownTransport is returned by Create for names nobody registered.
var ErrUnknownTransport = errors.New("topicmux: unknown transport")

// Factory creates a Transport from the given Config.
type Factory func(cfg Config) (core.Transport, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named transport factory. Plugins call this from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates a transport by name using the registered factory.
func Create(name string, cfg Config) (core.Transport, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTransport, name)
	}
	return f(cfg)
}

// Names lists the registered transports in alphabetical order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
