package status

import (
	"sync"
	"time"

	"github.com/matheus3301/sightings/internal/bus"
)

// Mode is the client's connectivity mode.
type Mode string

const (
	Online  Mode = "ONLINE"
	Offline Mode = "OFFLINE"
)

// Signal is an input to the tracker, from either the environment's network
// presence or the real-time transport.
type Signal string

const (
	EnvironmentLost       Signal = "environment_lost"
	EnvironmentRestored   Signal = "environment_restored"
	TransportConnected    Signal = "transport_connected"
	TransportDisconnected Signal = "transport_disconnected"
)

// Bus event kinds published by the tracker.
const (
	KindChanged = "connectivity.changed"
	KindAlert   = "connectivity.alert"
)

// DisconnectedAlert is the alert text raised when the transport drops.
const DisconnectedAlert = "You are disconnected"

// signalTargets maps a signal to the mode it forces. Network presence alone
// never makes the client online; only a transport handshake does.
var signalTargets = map[Signal]Mode{
	EnvironmentLost:       Offline,
	TransportConnected:    Online,
	TransportDisconnected: Offline,
}

// Tracker folds environment and transport signals into a single mode.
type Tracker struct {
	mu      sync.RWMutex
	current Mode
	bus     *bus.Bus
}

// NewTracker creates a tracker starting in Offline.
func NewTracker(b *bus.Bus) *Tracker {
	return &Tracker{
		current: Offline,
		bus:     b,
	}
}

// Current returns the current mode.
func (t *Tracker) Current() Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Online reports whether the current mode is Online.
func (t *Tracker) Online() bool {
	return t.Current() == Online
}

// Observe applies a signal and reports whether the mode changed.
func (t *Tracker) Observe(sig Signal) bool {
	t.mu.Lock()
	from := t.current
	to, ok := signalTargets[sig]
	changed := ok && to != from
	if changed {
		t.current = to
	}
	t.mu.Unlock()

	if changed {
		t.bus.Publish(bus.Event{
			Kind:      KindChanged,
			Timestamp: time.Now(),
			Payload:   Change{From: from, To: to, Cause: sig},
		})
	}
	if sig == TransportDisconnected {
		t.bus.Publish(bus.Event{
			Kind:      KindAlert,
			Timestamp: time.Now(),
			Payload:   Alert{Message: DisconnectedAlert},
		})
	}
	return changed
}

// EnvironmentLost reports that the OS lost network presence.
func (t *Tracker) EnvironmentLost() { t.Observe(EnvironmentLost) }

// EnvironmentRestored reports that the OS regained network presence.
func (t *Tracker) EnvironmentRestored() { t.Observe(EnvironmentRestored) }

// TransportConnected reports a completed real-time handshake.
func (t *Tracker) TransportConnected() { t.Observe(TransportConnected) }

// TransportDisconnected reports that the real-time transport dropped.
func (t *Tracker) TransportDisconnected() { t.Observe(TransportDisconnected) }

// Change is the payload for connectivity.changed events.
type Change struct {
	From  Mode
	To    Mode
	Cause Signal
}

// Alert is the payload for connectivity.alert events.
type Alert struct {
	Message string
}
