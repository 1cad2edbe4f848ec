package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"

	"github.com/matheus3301/sightings/internal/api"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/realtime"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/status"
	"github.com/matheus3301/sightings/internal/store"
	"go.uber.org/zap"
)

// Bus kinds published by the reconciler.
const (
	KindSightingsFlushed = "sync.sightings_flushed"
	KindCompleted        = "sync.completed"
)

// LocalStore is the subset of the durable store the reconciler drives.
type LocalStore interface {
	PendingMessages(ctx context.Context) ([]store.PendingMessage, error)
	ClearPendingMessages(ctx context.Context) error
	DeletePendingMessage(ctx context.Context, id string) error
	PendingSightings(ctx context.Context) ([]sighting.Sighting, error)
	ClearPendingSightings(ctx context.Context) error
	ReplaceCachedSightings(ctx context.Context, snapshot []json.RawMessage) (int, error)
	CachedSightings(ctx context.Context) ([]sighting.Sighting, error)
}

type Remote interface {
	FetchSightings(ctx context.Context) (api.Snapshot, error)
	BulkInsert(ctx context.Context, list []sighting.Sighting) error
}

type MessageSender interface {
	SendMessage(ctx context.Context, msg realtime.SendMessage) error
}

type Connectivity interface {
	Online() bool
}

type Options struct {
	// AckedMessageFlush deletes each pending message only after its send
	// completes and stops at the first failure. Without it the queue is
	// sent in one pass and then cleared, so a mid-flush drop loses the rest.
	AckedMessageFlush bool
}

// Outcome describes one reconciliation pass.
type Outcome struct {
	Mode             status.Mode
	View             []sighting.Sighting
	FlushedMessages  int
	FlushedSightings int
	// Fallback is set when the client believed it was online but the
	// fetch failed or was answered from the offline cache.
	Fallback bool
	Reloaded bool
}

// Reconciler merges the local queues with the server. Runs are serialized.
type Reconciler struct {
	local  LocalStore
	remote Remote
	sender MessageSender
	conn   Connectivity
	bus    *bus.Bus
	opts   Options
	logger *zap.Logger

	mu gosync.Mutex
}

func NewReconciler(local LocalStore, remote Remote, sender MessageSender, conn Connectivity, b *bus.Bus, opts Options, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		local:  local,
		remote: remote,
		sender: sender,
		conn:   conn,
		bus:    b,
		opts:   opts,
		logger: logger,
	}
}

// Run performs one pass: online it flushes queued messages, refreshes the
// cached sighting list and flushes queued sightings; offline it only builds
// the merged view. Queues are cleared only after the network confirms.
func (r *Reconciler) Run(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.conn.Online() {
		return r.offline(ctx, Outcome{Mode: status.Offline})
	}

	out := Outcome{Mode: status.Online}
	n, err := r.flushMessages(ctx)
	out.FlushedMessages = n
	if err != nil {
		r.logger.Warn("message flush incomplete", zap.Int("sent", n), zap.Error(err))
	}

	snap, err := r.remote.FetchSightings(ctx)
	if err != nil || snap.Stale {
		if err != nil {
			r.logger.Warn("fetch sightings failed, using local view", zap.Error(err))
		} else {
			r.logger.Info("sightings served from offline cache, using local view")
		}
		out.Fallback = true
		return r.offline(ctx, out)
	}

	view, err := r.refresh(ctx, snap)
	if err != nil {
		return out, err
	}
	out.View = view

	pending, err := r.local.PendingSightings(ctx)
	if err != nil {
		return out, fmt.Errorf("read pending sightings: %w", err)
	}
	if len(pending) > 0 {
		if err := r.remote.BulkInsert(ctx, pending); err != nil {
			r.logger.Warn("bulk insert failed, keeping queue", zap.Int("pending", len(pending)), zap.Error(err))
			out.View = OfflineView(view, pending)
		} else {
			out.FlushedSightings = len(pending)
			r.bus.Emit(KindSightingsFlushed, len(pending))
			r.logger.Info("pending sightings synced", zap.Int("count", len(pending)))

			if snap, err := r.remote.FetchSightings(ctx); err == nil && !snap.Stale {
				if view, err := r.refresh(ctx, snap); err == nil {
					out.View = view
					out.Reloaded = true
				}
			}
			if !out.Reloaded {
				out.View = append(view, pending...)
			}
			if err := r.local.ClearPendingSightings(ctx); err != nil {
				r.logger.Error("clear pending sightings", zap.Error(err))
			}
		}
	}

	r.bus.Emit(KindCompleted, out)
	return out, nil
}

func (r *Reconciler) offline(ctx context.Context, out Outcome) (Outcome, error) {
	cached, err := r.local.CachedSightings(ctx)
	if err != nil {
		return out, fmt.Errorf("read cached sightings: %w", err)
	}
	pending, err := r.local.PendingSightings(ctx)
	if err != nil {
		return out, fmt.Errorf("read pending sightings: %w", err)
	}
	out.View = OfflineView(cached, pending)
	r.bus.Emit(KindCompleted, out)
	return out, nil
}

// refresh replaces the local cache with snap and decodes it for display.
func (r *Reconciler) refresh(ctx context.Context, snap api.Snapshot) ([]sighting.Sighting, error) {
	stored, err := r.local.ReplaceCachedSightings(ctx, snap.Sightings)
	if err != nil {
		r.logger.Warn("cache replace incomplete",
			zap.Int("stored", stored),
			zap.Int("fetched", len(snap.Sightings)),
			zap.Error(err),
		)
	}
	view := make([]sighting.Sighting, 0, len(snap.Sightings))
	for _, raw := range snap.Sightings {
		var s sighting.Sighting
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode sighting: %w", err)
		}
		view = append(view, s)
	}
	return view, nil
}

func (r *Reconciler) flushMessages(ctx context.Context) (int, error) {
	pending, err := r.local.PendingMessages(ctx)
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	sent := 0
	if r.opts.AckedMessageFlush {
		for _, m := range pending {
			if err := r.sender.SendMessage(ctx, toWire(m)); err != nil {
				return sent, fmt.Errorf("send %s: %w", m.ID, err)
			}
			if err := r.local.DeletePendingMessage(ctx, m.ID); err != nil {
				return sent, fmt.Errorf("delete %s: %w", m.ID, err)
			}
			sent++
		}
		return sent, nil
	}

	var firstErr error
	for _, m := range pending {
		if err := r.sender.SendMessage(ctx, toWire(m)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}
	if dropped := len(pending) - sent; dropped > 0 {
		r.logger.Warn("pending messages dropped during flush", zap.Int("dropped", dropped))
	}
	if err := r.local.ClearPendingMessages(ctx); err != nil {
		return sent, fmt.Errorf("clear pending messages: %w", err)
	}
	return sent, firstErr
}

func toWire(m store.PendingMessage) realtime.SendMessage {
	return realtime.SendMessage{SightID: m.SightID, Message: m.Message, Sender: m.Sender}
}

// OfflineView merges the cached server list with locally queued sightings:
// queued ones first, newest on top, then the cached list in server order.
func OfflineView(cached, pending []sighting.Sighting) []sighting.Sighting {
	out := make([]sighting.Sighting, 0, len(cached)+len(pending))
	for i := len(pending) - 1; i >= 0; i-- {
		out = append(out, pending[i])
	}
	return append(out, cached...)
}
