package store

import (
	"encoding/json"
	"fmt"
)

// Collection names a record collection in the local store.
type Collection string

const (
	// Sights queues sightings created on this device until the server accepts them.
	Sights Collection = "sights"
	// Messages queues chat messages composed while offline.
	Messages Collection = "messages"
	// AllSights caches the last server snapshot of every sighting.
	AllSights Collection = "all_sights"
)

// Collections lists every record collection in schema order.
var Collections = []Collection{Sights, Messages, AllSights}

// Valid reports whether c is part of the schema. Collection names end up in
// SQL text, so only these are accepted.
func (c Collection) Valid() bool {
	switch c {
	case Sights, Messages, AllSights:
		return true
	}
	return false
}

// Record is one stored document, keyed by a caller-supplied unique id.
type Record struct {
	ID   string
	Data json.RawMessage
}

// NewRecord encodes v as a record with the given id.
func NewRecord(id string, v any) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("record id is required")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("encode record %s: %w", id, err)
	}
	return Record{ID: id, Data: data}, nil
}

// Decode unmarshals the record payload into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}
