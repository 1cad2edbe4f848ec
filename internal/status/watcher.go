package status

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// PresenceFunc reports whether the host currently has network presence.
type PresenceFunc func() bool

// InterfacesUp reports whether any non-loopback interface is up with an address.
func InterfacesUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Watcher polls network presence and feeds changes to a Tracker as
// environment signals.
type Watcher struct {
	tracker  *Tracker
	presence PresenceFunc
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewWatcher creates a watcher. A nil presence func uses InterfacesUp.
func NewWatcher(t *Tracker, presence PresenceFunc, interval time.Duration, logger *zap.Logger) *Watcher {
	if presence == nil {
		presence = InterfacesUp
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		tracker:  t,
		presence: presence,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

// Stop stops polling.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.presence()
	if !last {
		w.tracker.EnvironmentLost()
	}

	for {
		select {
		case <-ticker.C:
			up := w.presence()
			if up == last {
				continue
			}
			last = up
			if up {
				w.logger.Info("network presence restored")
				w.tracker.EnvironmentRestored()
			} else {
				w.logger.Warn("network presence lost")
				w.tracker.EnvironmentLost()
			}
		case <-ctx.Done():
			return
		}
	}
}
