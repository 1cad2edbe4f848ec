// Package relay forwards sighting and chat events from the in-process bus to
// an external message broker.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/matheus3301/sightings/internal/bus"
	"go.uber.org/zap"
)

// Namespaces are the bus prefixes forwarded downstream.
var Namespaces = []string{"sight.", "chat."}

type Relay struct {
	bus    *bus.Bus
	pub    Publisher
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a relay. A nil publisher makes Start a no-op.
func New(b *bus.Bus, pub Publisher, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{bus: b, pub: pub, logger: logger}
}

func (r *Relay) Enabled() bool { return r.pub != nil }

// Start subscribes to the bus and publishes until Stop is called.
func (r *Relay) Start(ctx context.Context) {
	if r.pub == nil {
		r.logger.Info("event relay disabled")
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	events, unsub := r.bus.SubscribeAll(256, Namespaces...)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				r.forward(ctx, evt)
			}
		}
	}()
	r.logger.Info("event relay started", zap.Strings("namespaces", Namespaces))
}

func (r *Relay) forward(ctx context.Context, evt bus.Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		r.logger.Error("encode event payload", zap.String("kind", evt.Kind), zap.Error(err))
		return
	}
	body, err := json.Marshal(Message{Kind: evt.Kind, Timestamp: evt.Timestamp, Payload: payload})
	if err != nil {
		r.logger.Error("encode event", zap.String("kind", evt.Kind), zap.Error(err))
		return
	}
	if err := r.pub.Publish(ctx, evt.Kind, body); err != nil {
		r.logger.Warn("relay publish failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// Stop ends the forwarding loop and closes the publisher.
func (r *Relay) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	if r.pub != nil {
		return r.pub.Close()
	}
	return nil
}
