// Package outbox is the field client's write path. New sightings and chat
// messages go to the server when possible and to the local queues otherwise.
package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/realtime"
	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/matheus3301/sightings/internal/store"
	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("message text is empty")

// SavedLocallyNotice is shown when a message is queued instead of sent.
const SavedLocallyNotice = "You are offline. The message was saved locally and will be sent when you are back online."

// KindSightQueued is published after a sighting lands in the pending queue.
const KindSightQueued = "sight.queued"

// Delivery says what happened to a submitted message.
type Delivery int

const (
	Sent Delivery = iota
	Queued
)

func (d Delivery) String() string {
	if d == Queued {
		return "queued"
	}
	return "sent"
}

// Queue is the local storage the composer writes to.
type Queue interface {
	QueueSighting(ctx context.Context, s sighting.Sighting) (sighting.Sighting, error)
	PendingSightings(ctx context.Context) ([]sighting.Sighting, error)
	QueueMessage(ctx context.Context, m store.PendingMessage) (store.PendingMessage, error)
	PendingMessages(ctx context.Context) ([]store.PendingMessage, error)
}

type MessageSender interface {
	SendMessage(ctx context.Context, msg realtime.SendMessage) error
}

type Connectivity interface {
	Online() bool
}

// Trigger requests a reconciliation pass.
type Trigger interface {
	Trigger()
}

type Composer struct {
	queue  Queue
	sender MessageSender
	conn   Connectivity
	sync   Trigger
	bus    *bus.Bus
	logger *zap.Logger

	retryEvery time.Duration
	cancel     context.CancelFunc
}

// NewComposer creates a composer. retryEvery is the period of the background
// check that re-triggers reconciliation while sightings stay queued.
func NewComposer(q Queue, sender MessageSender, conn Connectivity, sync Trigger, b *bus.Bus, retryEvery time.Duration, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryEvery <= 0 {
		retryEvery = 30 * time.Second
	}
	return &Composer{
		queue:      q,
		sender:     sender,
		conn:       conn,
		sync:       sync,
		bus:        b,
		logger:     logger,
		retryEvery: retryEvery,
	}
}

// SubmitSighting always queues s locally first and asks for a sync when
// online, so a sighting is never lost to a failed upload.
func (c *Composer) SubmitSighting(ctx context.Context, s sighting.Sighting) (sighting.Sighting, error) {
	if s.SeenAt.IsZero() {
		s.SeenAt = time.Now()
	}
	queued, err := c.queue.QueueSighting(ctx, s)
	if err != nil {
		return s, err
	}
	c.bus.Emit(KindSightQueued, queued)
	c.logger.Info("sighting queued", zap.String("sight_id", queued.ID), zap.Bool("online", c.conn.Online()))
	if c.conn.Online() {
		c.sync.Trigger()
	}
	return queued, nil
}

// SubmitMessage sends text over the real-time channel when online. Offline,
// or when the send fails, the message is queued for the next online pass.
func (c *Composer) SubmitMessage(ctx context.Context, sightID, text, sender string) (Delivery, error) {
	if strings.TrimSpace(text) == "" {
		return Queued, ErrEmptyMessage
	}
	msg := realtime.SendMessage{SightID: sightID, Message: text, Sender: sender}

	if c.conn.Online() {
		err := c.sender.SendMessage(ctx, msg)
		if err == nil {
			return Sent, nil
		}
		c.logger.Warn("send failed, queueing message", zap.String("sight_id", sightID), zap.Error(err))
	}

	if _, err := c.queue.QueueMessage(ctx, store.PendingMessage{SightID: sightID, Message: text, Sender: sender}); err != nil {
		return Queued, err
	}
	return Queued, nil
}

// PendingThread returns the queued messages of one sighting, for display
// while offline.
func (c *Composer) PendingThread(ctx context.Context, sightID string) ([]store.PendingMessage, error) {
	all, err := c.queue.PendingMessages(ctx)
	if err != nil {
		return nil, err
	}
	var out []store.PendingMessage
	for _, m := range all {
		if m.SightID == sightID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Start begins the periodic retry check.
func (c *Composer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.loop(ctx)
}

// Stop stops the retry loop.
func (c *Composer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Composer) loop(ctx context.Context) {
	ticker := time.NewTicker(c.retryEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.retryPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Composer) retryPending(ctx context.Context) {
	if !c.conn.Online() {
		return
	}
	pending, err := c.queue.PendingSightings(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotReady) {
			c.logger.Warn("read pending sightings", zap.Error(err))
		}
		return
	}
	msgs, err := c.queue.PendingMessages(ctx)
	if err != nil {
		return
	}
	if len(pending) > 0 || len(msgs) > 0 {
		c.logger.Debug("retrying queued work", zap.Int("sightings", len(pending)), zap.Int("messages", len(msgs)))
		c.sync.Trigger()
	}
}
