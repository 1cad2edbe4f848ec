package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/sightings/internal/sighting"
)

// PendingMessage is a chat message composed while offline.
type PendingMessage struct {
	ID      string `json:"id"`
	SightID string `json:"sightId"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// QueueSighting stores s in the pending sighting queue, assigning an id when
// it has none.
func (s *Store) QueueSighting(ctx context.Context, sg sighting.Sighting) (sighting.Sighting, error) {
	if sg.ID == "" {
		sg.ID = NewID()
	}
	rec, err := NewRecord(sg.ID, sg)
	if err != nil {
		return sg, err
	}
	return sg, s.Put(ctx, Sights, rec).Err(ctx)
}

// PendingSightings returns the queued sightings, oldest first.
func (s *Store) PendingSightings(ctx context.Context) ([]sighting.Sighting, error) {
	return decodeAll[sighting.Sighting](ctx, s, Sights)
}

// ClearPendingSightings empties the pending sighting queue.
func (s *Store) ClearPendingSightings(ctx context.Context) error {
	return s.Clear(ctx, Sights).Err(ctx)
}

// QueueMessage stores m in the pending message queue, assigning an id when it has none.
func (s *Store) QueueMessage(ctx context.Context, m PendingMessage) (PendingMessage, error) {
	if m.ID == "" {
		m.ID = NewID()
	}
	rec, err := NewRecord(m.ID, m)
	if err != nil {
		return m, err
	}
	return m, s.Put(ctx, Messages, rec).Err(ctx)
}

// PendingMessages returns the queued chat messages, oldest first.
func (s *Store) PendingMessages(ctx context.Context) ([]PendingMessage, error) {
	return decodeAll[PendingMessage](ctx, s, Messages)
}

// ClearPendingMessages empties the pending message queue.
func (s *Store) ClearPendingMessages(ctx context.Context) error {
	return s.Clear(ctx, Messages).Err(ctx)
}

// DeletePendingMessage removes one queued message.
func (s *Store) DeletePendingMessage(ctx context.Context, id string) error {
	return s.Delete(ctx, Messages, id).Err(ctx)
}

// ReplaceCachedSightings swaps the cached snapshot for snapshot: the cache is
// cleared, then every record is written with its own put, in snapshot order.
// It returns how many puts committed together with the failures, if any.
func (s *Store) ReplaceCachedSightings(ctx context.Context, snapshot []json.RawMessage) (int, error) {
	if err := s.Clear(ctx, AllSights).Err(ctx); err != nil {
		return 0, err
	}

	var (
		stored int
		errs   []error
	)
	for _, raw := range snapshot {
		// Each put is awaited so seq follows snapshot order.
		if err := s.Put(ctx, AllSights, Record{ID: NewID(), Data: raw}).Err(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		stored++
	}
	if len(errs) > 0 {
		return stored, fmt.Errorf("cached %d of %d sightings: %w", stored, len(snapshot), errors.Join(errs...))
	}
	return stored, nil
}

// CachedSightings returns the last server snapshot in the order it was received.
func (s *Store) CachedSightings(ctx context.Context) ([]sighting.Sighting, error) {
	return decodeAll[sighting.Sighting](ctx, s, AllSights)
}

func decodeAll[T any](ctx context.Context, s *Store, c Collection) ([]T, error) {
	recs, err := s.GetAll(ctx, c).Await(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		var v T
		if err := r.Decode(&v); err != nil {
			return nil, &Error{Op: "decode", Collection: c, Err: fmt.Errorf("record %s: %w", r.ID, err)}
		}
		out = append(out, v)
	}
	return out, nil
}
