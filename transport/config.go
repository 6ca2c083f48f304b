package transport

// Config holds transport-agnostic configuration.
// Transport plugins extract the fields they need.
type Config struct {
	// Addresses lists broker addresses (e.g., "localhost:9092"). Transports
	// that dial the client's endpoint directly ignore it.
	Addresses []string

	// Group is the consumer group ID for transports that have one.
	Group string

	// Extra holds plugin-specific configuration.
	Extra map[string]any
}

// String returns Extra[key] when it is a non-empty string.
func (c Config) String(key string) (string, bool) {
	v, ok := c.Extra[key].(string)
	return v, ok && v != ""
}
