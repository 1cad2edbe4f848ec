package bus

import "time"

// Event is a domain event published on the bus. Kind is dot-namespaced,
// e.g. "connectivity.changed" or "chat.message".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
