package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/hub"
	"github.com/matheus3301/sightings/internal/realtime"
	"github.com/matheus3301/sightings/internal/sighting"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage = errors.New("message text is empty")
	ErrMissingSight = errors.New("sighting id is required")
)

// KindMessage is published on the bus after a message is persisted.
const KindMessage = "chat.message"

// Store persists chat messages.
type Store interface {
	CreateMessage(ctx context.Context, m *sighting.Message) error
	ListMessages(ctx context.Context, sightID string) ([]sighting.Message, error)
}

// Service runs the chat protocol over a session registry: joins get the
// history, sends are persisted and the full list is pushed to every
// subscriber of the sighting.
type Service struct {
	registry *hub.Registry
	store    Store
	bus      *bus.Bus
	logger   *zap.Logger
}

func NewService(registry *hub.Registry, store Store, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, store: store, bus: b, logger: logger}
}

// Join subscribes c to sightID and replies to c alone with the sighting's
// current history. Other subscribers are not notified.
func (s *Service) Join(ctx context.Context, sightID string, c hub.Conn) error {
	if sightID == "" {
		return ErrMissingSight
	}
	if moved := s.registry.Join(sightID, c); len(moved) > 0 {
		s.logger.Info("connection moved between sessions",
			zap.String("conn_id", c.ID()),
			zap.Strings("from", moved),
			zap.String("to", sightID),
		)
	}

	history, err := s.store.ListMessages(ctx, sightID)
	if err != nil {
		return fmt.Errorf("load history for %s: %w", sightID, err)
	}
	if history == nil {
		history = []sighting.Message{}
	}
	if err := c.Send(ctx, realtime.EventUpdateMessages, history); err != nil {
		return fmt.Errorf("send history to %s: %w", c.ID(), err)
	}
	return nil
}

// Send persists a message, re-reads the sighting's history, and pushes it to
// each subscriber individually. A failed delivery is logged and skipped. A
// persistence failure aborts the broadcast and is returned; callers must not
// retry it automatically.
func (s *Service) Send(ctx context.Context, msg realtime.SendMessage) (int, error) {
	if msg.SightID == "" {
		return 0, ErrMissingSight
	}
	if strings.TrimSpace(msg.Message) == "" {
		return 0, ErrEmptyMessage
	}

	m := &sighting.Message{SightID: msg.SightID, Sender: msg.Sender, Message: msg.Message}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return 0, fmt.Errorf("persist message: %w", err)
	}
	s.bus.Emit(KindMessage, *m)

	history, err := s.store.ListMessages(ctx, msg.SightID)
	if err != nil {
		return 0, fmt.Errorf("reload history for %s: %w", msg.SightID, err)
	}

	delivered := 0
	for _, d := range s.registry.Broadcast(ctx, msg.SightID, realtime.EventUpdateMessages, history) {
		if d.Err != nil {
			s.logger.Warn("delivery to subscriber failed",
				zap.String("sight_id", msg.SightID),
				zap.String("conn_id", d.ConnID),
				zap.Error(d.Err),
			)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Leave drops every subscription held by connID.
func (s *Service) Leave(connID string) {
	if left := s.registry.Leave(connID); len(left) > 0 {
		s.logger.Info("connection left sessions", zap.String("conn_id", connID), zap.Strings("sight_ids", left))
	}
}
